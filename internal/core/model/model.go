// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
	"strconv"
)

type LatLon struct {
	Lat float64 `json:"latitude" yaml:"lat"`
	Lon float64 `json:"longitude" yaml:"lon"`
}

func (p LatLon) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

func (p LatLon) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

type ReceiverKind uint8

const (
	KindPrimary ReceiverKind = iota
	KindPassive
)

func (k ReceiverKind) String() string {
	if k == KindPassive {
		return "passive"
	}
	return "primary"
}

// PatternSample is one (angle, attenuation relative to boresight) point of an RPE table.
type PatternSample struct {
	AngleDeg      float64 `json:"angle" yaml:"angle"`
	AttenuationDB float64 `json:"attenuation" yaml:"attenuation"`
}

// Pattern holds optional per-plane radiation pattern tables.
type Pattern struct {
	Azimuth   []PatternSample `json:"azimuth,omitempty" yaml:"azimuth,omitempty"`
	Elevation []PatternSample `json:"elevation,omitempty" yaml:"elevation,omitempty"`
}

// RxParams are the optional receive-side parameters shared by incumbents and
// passive sites. Nil means "use the configured default".
type RxParams struct {
	GainDBi            *float64 `json:"gainDbi,omitempty" yaml:"gain_dbi,omitempty"`
	AzimuthDeg         *float64 `json:"azimuthDeg,omitempty" yaml:"azimuth_deg,omitempty"`
	HeightM            *float64 `json:"heightM,omitempty" yaml:"height_m,omitempty"`
	Polarization       string   `json:"polarization,omitempty" yaml:"polarization,omitempty"`
	Pattern            *Pattern `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	LossDB             *float64 `json:"lossDb,omitempty" yaml:"loss_db,omitempty"`
	PolarizationLossDB *float64 `json:"polarizationLossDb,omitempty" yaml:"polarization_loss_db,omitempty"`
	NoiseFigureDB      *float64 `json:"noiseFigureDb,omitempty" yaml:"noise_figure_db,omitempty"`
	NoiseBandwidthMHz  *float64 `json:"noiseBandwidthMhz,omitempty" yaml:"noise_bandwidth_mhz,omitempty"`
	EmissionDesignator string   `json:"emissionDesignator,omitempty" yaml:"emission_designator,omitempty"`
}

// ReceiverPoint is the unit the evaluator scores. Primary incumbents and their
// passive sites both flatten into this shape.
type ReceiverPoint struct {
	ID           string
	Kind         ReceiverKind
	ParentID     string
	CenterMHz    float64
	BandwidthMHz float64
	Location     LatLon
	RxParams
}

func (r ReceiverPoint) LowMHz() float64  { return r.CenterMHz - r.BandwidthMHz/2 }
func (r ReceiverPoint) HighMHz() float64 { return r.CenterMHz + r.BandwidthMHz/2 }

// Validate reports the first malformed field as a *DataError.
func (r ReceiverPoint) Validate() error {
	switch {
	case r.ID == "":
		return &DataError{ReceiverID: r.ID, Field: "id", Reason: "empty"}
	case !finite(r.CenterMHz) || r.CenterMHz <= 0:
		return &DataError{ReceiverID: r.ID, Field: "center_mhz", Reason: "must be finite and positive"}
	case !finite(r.BandwidthMHz) || r.BandwidthMHz <= 0:
		return &DataError{ReceiverID: r.ID, Field: "bandwidth_mhz", Reason: "must be finite and positive"}
	case !r.Location.Valid():
		return &DataError{ReceiverID: r.ID, Field: "location", Reason: "non-finite or out of range coordinates"}
	}
	for name, v := range map[string]*float64{
		"gain_dbi":             r.GainDBi,
		"azimuth_deg":          r.AzimuthDeg,
		"height_m":             r.HeightM,
		"loss_db":              r.LossDB,
		"polarization_loss_db": r.PolarizationLossDB,
		"noise_figure_db":      r.NoiseFigureDB,
	} {
		if v != nil && !finite(*v) {
			return &DataError{ReceiverID: r.ID, Field: name, Reason: "non-finite"}
		}
	}
	if r.NoiseBandwidthMHz != nil && (!finite(*r.NoiseBandwidthMHz) || *r.NoiseBandwidthMHz <= 0) {
		return &DataError{ReceiverID: r.ID, Field: "noise_bandwidth_mhz", Reason: "must be finite and positive"}
	}
	if r.Pattern != nil {
		for _, s := range append(append([]PatternSample(nil), r.Pattern.Azimuth...), r.Pattern.Elevation...) {
			if !finite(s.AngleDeg) || !finite(s.AttenuationDB) {
				return &DataError{ReceiverID: r.ID, Field: "pattern", Reason: "non-finite sample"}
			}
		}
	}
	return nil
}

// PassiveSite is a relay receive point owned by an incumbent. Unset fields
// inherit the parent's values.
type PassiveSite struct {
	Location LatLon `json:"location" yaml:"location"`
	RxParams `json:",inline" yaml:",inline"`
}

// Incumbent is a fixed-service receiver record as delivered by the loader.
type Incumbent struct {
	ID           string        `json:"id" yaml:"id"`
	CenterMHz    float64       `json:"centerMhz" yaml:"center_mhz"`
	BandwidthMHz float64       `json:"bandwidthMhz" yaml:"bandwidth_mhz"`
	Location     LatLon        `json:"location" yaml:"location"`
	RxParams     `json:",inline" yaml:",inline"`
	PassiveSites []PassiveSite `json:"passiveSites,omitempty" yaml:"passive_sites,omitempty"`
}

// PassiveSiteSep joins an incumbent id and a passive site ordinal.
const PassiveSiteSep = ":PS"

// Receivers flattens the incumbent and its passive sites. Passive site ids are
// "<incumbent>:PS<n>" with n starting at 1.
func (inc Incumbent) Receivers() []ReceiverPoint {
	out := make([]ReceiverPoint, 0, 1+len(inc.PassiveSites))
	out = append(out, ReceiverPoint{
		ID:           inc.ID,
		Kind:         KindPrimary,
		CenterMHz:    inc.CenterMHz,
		BandwidthMHz: inc.BandwidthMHz,
		Location:     inc.Location,
		RxParams:     inc.RxParams,
	})
	for i, ps := range inc.PassiveSites {
		out = append(out, ReceiverPoint{
			ID:           inc.ID + PassiveSiteSep + strconv.Itoa(i+1),
			Kind:         KindPassive,
			ParentID:     inc.ID,
			CenterMHz:    inc.CenterMHz,
			BandwidthMHz: inc.BandwidthMHz,
			Location:     ps.Location,
			RxParams:     inheritRx(ps.RxParams, inc.RxParams),
		})
	}
	return out
}

func inheritRx(child, parent RxParams) RxParams {
	pick := func(c, p *float64) *float64 {
		if c != nil {
			return c
		}
		return p
	}
	out := RxParams{
		GainDBi:            pick(child.GainDBi, parent.GainDBi),
		AzimuthDeg:         pick(child.AzimuthDeg, parent.AzimuthDeg),
		HeightM:            pick(child.HeightM, parent.HeightM),
		LossDB:             pick(child.LossDB, parent.LossDB),
		PolarizationLossDB: pick(child.PolarizationLossDB, parent.PolarizationLossDB),
		NoiseFigureDB:      pick(child.NoiseFigureDB, parent.NoiseFigureDB),
		NoiseBandwidthMHz:  pick(child.NoiseBandwidthMHz, parent.NoiseBandwidthMHz),
		Polarization:       child.Polarization,
		Pattern:            child.Pattern,
		EmissionDesignator: child.EmissionDesignator,
	}
	if out.Polarization == "" {
		out.Polarization = parent.Polarization
	}
	if out.Pattern == nil {
		out.Pattern = parent.Pattern
	}
	if out.EmissionDesignator == "" {
		out.EmissionDesignator = parent.EmissionDesignator
	}
	return out
}

// DataError marks a malformed incumbent or pattern record. The receiver is
// excluded from aggregation; other receivers are unaffected.
type DataError struct {
	ReceiverID string
	Field      string
	Reason     string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("receiver %q: invalid %s: %s", e.ReceiverID, e.Field, e.Reason)
}

// Float returns a pointer to v; handy for optional fields.
func Float(v float64) *float64 { return &v }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
