// Package engine decides per-channel allowed power for an AP against a set of
// fixed-service receivers. Every operation is a pure function of its inputs.
package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/antenna"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/geo"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/linkbudget"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/propagation"
)

// AP is one transmitter position. EIRPDBm is only used by multi-AP aggregation;
// nil means the regulatory cap.
type AP struct {
	ID       string
	Location model.LatLon
	HeightM  *float64
	EIRPDBm  *float64
}

type Engine struct {
	cfg Config
	sel propagation.Selector
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	sel, err := propagation.NewSelector(cfg.Propagation)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{cfg: cfg, sel: sel}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// With returns an engine with per-inquiry overrides applied; e is unchanged.
func (e *Engine) With(o Overrides) (*Engine, error) {
	return New(o.apply(e.cfg))
}

// capDBm is the regulatory ceiling for a channel of the given bandwidth.
func (e *Engine) capDBm(bandwidthMHz float64) float64 {
	c := e.cfg.RegulatoryCapDBm
	if e.cfg.PSDCapDBmPerMHz != nil {
		c = math.Min(c, linkbudget.EIRPFromPSD(*e.cfg.PSDCapDBmPerMHz, bandwidthMHz))
	}
	return c
}

// Evaluate scores one (AP, receiver, channel) triple. A malformed receiver
// yields a *model.DataError.
func (e *Engine) Evaluate(ap AP, rx model.ReceiverPoint, ch model.Channel) (model.InterferenceResult, error) {
	if err := rx.Validate(); err != nil {
		return model.InterferenceResult{}, err
	}
	d := e.cfg.Receiver

	dist := geo.ClampDistance(geo.DistanceM(ap.Location, rx.Location))
	loss := e.sel.Loss(dist, ch.CenterMHz)

	gain := valueOr(rx.GainDBi, d.GainDBi)
	geom := antenna.OffAxis(ap.Location, rx.Location, rx.AzimuthDeg, ap.HeightM, rx.HeightM)
	disc := antenna.Discriminate(gain, rx.Pattern, e.cfg.Envelope, geom)

	offset := math.Abs(ch.CenterMHz - rx.CenterMHz)
	regime, acirDB := model.RegimeCoChannel, 0.0
	if offset > 0 && !overlaps(ch, rx) {
		regime = model.RegimeAdjacent
		acirDB = e.cfg.Masks.ACIRDB(offset)
	}

	nbMHz := noiseBandwidthMHz(rx, d.NoiseBandwidthMHz)
	nf := valueOr(rx.NoiseFigureDB, d.NoiseFigureDB(rx.CenterMHz))
	noise, err := linkbudget.NoiseFloorDBm(nbMHz*1e6, nf)
	if err != nil {
		return model.InterferenceResult{}, &model.DataError{ReceiverID: rx.ID, Field: "noise", Reason: err.Error()}
	}

	budget := linkbudget.Budget{
		PathLossDB:         loss.TotalDB(),
		RxGainDBi:          disc.EffectiveGainDBi,
		RxLossDB:           valueOr(rx.LossDB, d.LossDB),
		PolarizationLossDB: valueOr(rx.PolarizationLossDB, d.PolarizationLossDB),
		ACIRDB:             acirDB,
	}
	ref := e.cfg.RegulatoryCapDBm
	i := budget.InterferenceDBm(ref)
	return model.InterferenceResult{
		ReceiverID:       rx.ID,
		ChannelID:        ch.ID(),
		DistanceM:        dist,
		PathLossDB:       budget.PathLossDB,
		DiscriminationDB: disc.TotalDB(gain),
		Regime:           regime,
		OffsetMHz:        offset,
		ACIRDB:           acirDB,
		ReferenceEIRPDBm: ref,
		InterferenceDBm:  i,
		NoiseDBm:         noise,
		MarginDB:         e.cfg.Protection.Headroom(noise, i),
		TolerableEIRPDBm: linkbudget.SolveEIRP(budget, e.cfg.Protection, noise),
	}, nil
}

func overlaps(ch model.Channel, rx model.ReceiverPoint) bool {
	return ch.LowMHz() < rx.HighMHz() && rx.LowMHz() < ch.HighMHz()
}

func valueOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

var designatorRE = regexp.MustCompile(`(?i)([0-9]{1,3})([HKMG])([0-9])`)

// ParseEmissionDesignator extracts the necessary bandwidth in MHz from an ITU
// emission designator such as "25M0F7W" or "200K0F3E".
func ParseEmissionDesignator(s string) (float64, bool) {
	m := designatorRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	whole, _ := strconv.Atoi(m[1])
	frac, _ := strconv.Atoi(m[3])
	v := float64(whole) + float64(frac)/10
	switch strings.ToUpper(m[2]) {
	case "H":
		v /= 1e6
	case "K":
		v /= 1e3
	case "G":
		v *= 1e3
	}
	return v, v > 0
}

// noiseBandwidthMHz prefers the emission designator, then the explicit value.
func noiseBandwidthMHz(rx model.ReceiverPoint, def float64) float64 {
	if bw, ok := ParseEmissionDesignator(rx.EmissionDesignator); ok {
		return bw
	}
	return valueOr(rx.NoiseBandwidthMHz, def)
}
