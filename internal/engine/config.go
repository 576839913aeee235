package engine

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/acir"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/antenna"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/linkbudget"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/propagation"
)

// ReceiverDefaults fill optional incumbent fields.
type ReceiverDefaults struct {
	GainDBi             float64 `yaml:"gain_dbi"`
	LossDB              float64 `yaml:"loss_db"`
	PolarizationLossDB  float64 `yaml:"polarization_loss_db"`
	NoiseBandwidthMHz   float64 `yaml:"noise_bandwidth_mhz"`
	NoiseFigureLowDB    float64 `yaml:"noise_figure_low_db"`
	NoiseFigureHighDB   float64 `yaml:"noise_figure_high_db"`
	NoiseFigureSplitMHz float64 `yaml:"noise_figure_split_mhz"`
}

func DefaultReceiver() ReceiverDefaults {
	return ReceiverDefaults{
		GainDBi:             30,
		LossDB:              1,
		PolarizationLossDB:  0,
		NoiseBandwidthMHz:   20,
		NoiseFigureLowDB:    4.0,
		NoiseFigureHighDB:   4.5,
		NoiseFigureSplitMHz: 6425,
	}
}

// NoiseFigureDB is band keyed: the low value at or below the split frequency.
func (d ReceiverDefaults) NoiseFigureDB(centerMHz float64) float64 {
	if centerMHz <= d.NoiseFigureSplitMHz {
		return d.NoiseFigureLowDB
	}
	return d.NoiseFigureHighDB
}

// DeviceLimits are the AP's minimum usable power levels; nil means unset.
type DeviceLimits struct {
	MinEIRPDBm      *float64
	MinPSDDBmPerMHz *float64
}

// Config is immutable once handed to New.
type Config struct {
	RegulatoryCapDBm float64

	// PSDCapDBmPerMHz further caps EIRP at PSDcap + 10log10(bw) when set.
	PSDCapDBmPerMHz *float64

	// MinGrantEIRPDBm is the allowed EIRP at or above which a channel is granted.
	MinGrantEIRPDBm float64

	Protection  linkbudget.Protection
	Propagation propagation.Config
	Masks       acir.Masks
	Envelope    antenna.Envelope
	Receiver    ReceiverDefaults
	Device      DeviceLimits
	Workers     int
}

func DefaultConfig() Config {
	return Config{
		RegulatoryCapDBm: 36,
		MinGrantEIRPDBm:  0,
		Protection:       linkbudget.Protection{ThresholdDB: -6},
		Propagation:      propagation.DefaultConfig(),
		Masks:            acir.DefaultMasks(),
		Envelope:         antenna.DefaultEnvelope(),
		Receiver:         DefaultReceiver(),
		Workers:          runtime.GOMAXPROCS(0),
	}
}

func (c Config) Validate() error {
	var errs []error
	check := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite", name))
		}
	}
	check("regulatory cap", c.RegulatoryCapDBm)
	check("min grant eirp", c.MinGrantEIRPDBm)
	check("protection threshold", c.Protection.ThresholdDB)
	check("protection margin", c.Protection.MarginDB)
	check("receiver gain", c.Receiver.GainDBi)
	check("receiver loss", c.Receiver.LossDB)
	check("polarization loss", c.Receiver.PolarizationLossDB)
	check("noise figure low", c.Receiver.NoiseFigureLowDB)
	check("noise figure high", c.Receiver.NoiseFigureHighDB)
	if c.PSDCapDBmPerMHz != nil {
		check("psd cap", *c.PSDCapDBmPerMHz)
	}
	if c.Device.MinEIRPDBm != nil {
		check("device min eirp", *c.Device.MinEIRPDBm)
	}
	if c.Device.MinPSDDBmPerMHz != nil {
		check("device min psd", *c.Device.MinPSDDBmPerMHz)
	}
	if !(c.Receiver.NoiseBandwidthMHz > 0) {
		errs = append(errs, errors.New("default noise bandwidth must be positive"))
	}
	if len(c.Masks.Tx) == 0 || len(c.Masks.Rx) == 0 {
		errs = append(errs, acir.ErrEmptyMask)
	}
	return errors.Join(errs...)
}

// Overrides are per-inquiry adjustments layered over the base configuration.
type Overrides struct {
	PathModel          *propagation.Kind
	Environment        *propagation.Environment
	Indoor             *bool
	PenetrationDB      *float64
	ProtectionMarginDB *float64
	Device             DeviceLimits
}

func (o Overrides) apply(c Config) Config {
	if o.PathModel != nil {
		c.Propagation.Kind = *o.PathModel
	}
	if o.Environment != nil {
		c.Propagation.Environment = *o.Environment
	}
	if o.Indoor != nil {
		c.Propagation.Indoor = *o.Indoor
	}
	if o.PenetrationDB != nil {
		v := *o.PenetrationDB
		c.Propagation.PenetrationDB = &v
	}
	if o.ProtectionMarginDB != nil {
		c.Protection.MarginDB = *o.ProtectionMarginDB
	}
	if o.Device.MinEIRPDBm != nil {
		c.Device.MinEIRPDBm = o.Device.MinEIRPDBm
	}
	if o.Device.MinPSDDBmPerMHz != nil {
		c.Device.MinPSDDBmPerMHz = o.Device.MinPSDDBmPerMHz
	}
	return c
}
