// Package linkbudget computes noise floors, received interference and the
// I/N protection margin, and solves the budget for the tolerable EIRP.
package linkbudget

import (
	"errors"
	"fmt"
	"math"
)

const ThermalNoiseDBmPerHz = -174.0

var (
	ErrInvalidBandwidth     = errors.New("linkbudget: bandwidth must be positive")
	ErrNonFiniteNoiseFigure = errors.New("linkbudget: noise figure must be finite")
)

// NoiseFloorDBm returns -174 + 10log10(B_Hz) + NF.
func NoiseFloorDBm(bandwidthHz, noiseFigureDB float64) (float64, error) {
	if !(bandwidthHz > 0) || math.IsInf(bandwidthHz, 0) {
		return 0, fmt.Errorf("%w: %v Hz", ErrInvalidBandwidth, bandwidthHz)
	}
	if math.IsNaN(noiseFigureDB) || math.IsInf(noiseFigureDB, 0) {
		return 0, ErrNonFiniteNoiseFigure
	}
	return ThermalNoiseDBmPerHz + 10*math.Log10(bandwidthHz) + noiseFigureDB, nil
}

// Budget holds every term of the interference equation except the transmit power.
type Budget struct {
	PathLossDB         float64
	RxGainDBi          float64 // effective gain toward the AP (boresight gain minus discrimination)
	RxLossDB           float64
	PolarizationLossDB float64
	ACIRDB             float64 // 0 for co-channel
}

// InterferenceDBm is EIRP - PL + G - L_rx - L_pol - ACIR.
func (b Budget) InterferenceDBm(eirpDBm float64) float64 {
	return eirpDBm - b.PathLossDB + b.RxGainDBi - b.RxLossDB - b.PolarizationLossDB - b.ACIRDB
}

// Protection is the I/N criterion: thresholdDB (default -6) tightened by marginDB.
type Protection struct {
	ThresholdDB float64
	MarginDB    float64
}

// LimitDBm is the highest interference that still satisfies the criterion.
func (p Protection) LimitDBm(noiseDBm float64) float64 {
	return noiseDBm + p.ThresholdDB - p.MarginDB
}

// Headroom is (N + threshold - margin) - I; non-negative means protected.
func (p Protection) Headroom(noiseDBm, interferenceDBm float64) float64 {
	return p.LimitDBm(noiseDBm) - interferenceDBm
}

// SolveEIRP returns the EIRP at which the margin is exactly zero.
func SolveEIRP(b Budget, p Protection, noiseDBm float64) float64 {
	return p.LimitDBm(noiseDBm) + b.PathLossDB - b.RxGainDBi + b.RxLossDB + b.PolarizationLossDB + b.ACIRDB
}

// PSDFromEIRP converts EIRP over bandwidthMHz into dBm/MHz.
func PSDFromEIRP(eirpDBm, bandwidthMHz float64) float64 {
	return eirpDBm - 10*math.Log10(bandwidthMHz)
}

// EIRPFromPSD is the inverse of PSDFromEIRP.
func EIRPFromPSD(psdDBmPerMHz, bandwidthMHz float64) float64 {
	return psdDBmPerMHz + 10*math.Log10(bandwidthMHz)
}

func DBmToMilliwatt(dbm float64) float64 { return math.Pow(10, dbm/10) }

func MilliwattToDBm(mw float64) float64 {
	if mw <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(mw)
}

// SumDBm adds powers in the linear domain.
func SumDBm(vals ...float64) float64 {
	var mw float64
	for _, v := range vals {
		mw += DBmToMilliwatt(v)
	}
	return MilliwattToDBm(mw)
}
