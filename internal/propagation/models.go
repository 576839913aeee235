// Package propagation provides the path-loss strategies and the selector that
// picks one per path. Every model is a pure function of distance and frequency.
package propagation

import (
	"math"
	"strings"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/geo"
)

const SpeedOfLight = 2.99792458e8

type Kind string

const (
	KindAuto        Kind = "auto"
	KindFreeSpace   Kind = "fspl"
	KindLogDistance Kind = "winner2"
	KindTwoSlope    Kind = "two_slope"
	KindITM         Kind = "itm"
)

// Model is the closed set of path-loss strategies in this package.
type Model interface {
	Kind() Kind
	LossDB(distanceM, freqMHz float64) float64
}

// FSPLdB is 20log10(4*pi*d*f/c) with d clamped to geo.MinDistanceM.
func FSPLdB(distanceM, freqMHz float64) float64 {
	d := geo.ClampDistance(distanceM)
	return 20 * math.Log10(4*math.Pi*d*freqMHz*1e6/SpeedOfLight)
}

// DistanceForFSPL inverts FSPLdB.
func DistanceForFSPL(lossDB, freqMHz float64) float64 {
	return math.Pow(10, lossDB/20) * SpeedOfLight / (4 * math.Pi * freqMHz * 1e6)
}

type FreeSpace struct{}

func (FreeSpace) Kind() Kind { return KindFreeSpace }

func (FreeSpace) LossDB(distanceM, freqMHz float64) float64 { return FSPLdB(distanceM, freqMHz) }

// LogDistance is a WINNER-II style log-distance model anchored at free space
// loss at the reference distance.
type LogDistance struct {
	Exponent   float64
	ReferenceM float64
}

func DefaultLogDistance() LogDistance { return LogDistance{Exponent: 2.1, ReferenceM: 1} }

func (LogDistance) Kind() Kind { return KindLogDistance }

func (m LogDistance) LossDB(distanceM, freqMHz float64) float64 {
	d0 := math.Max(m.ReferenceM, 1e-3)
	d := math.Max(geo.ClampDistance(distanceM), d0)
	return fsplRaw(d0, freqMHz) + 10*m.Exponent*math.Log10(d/d0)
}

// TwoSlope uses exponent N1 up to BreakpointM and N2 beyond it.
type TwoSlope struct {
	BreakpointM float64
	N1, N2      float64
}

func DefaultTwoSlope() TwoSlope { return TwoSlope{BreakpointM: 100, N1: 2.0, N2: 3.5} }

func (TwoSlope) Kind() Kind { return KindTwoSlope }

func (m TwoSlope) LossDB(distanceM, freqMHz float64) float64 {
	d := geo.ClampDistance(distanceM)
	pl0 := fsplRaw(1, freqMHz)
	if d <= m.BreakpointM {
		return pl0 + 10*m.N1*math.Log10(d)
	}
	return pl0 + 10*m.N1*math.Log10(m.BreakpointM) + 10*m.N2*math.Log10(d/m.BreakpointM)
}

// IrregularTerrain stands in for a Longley-Rice binding: free space loss plus a
// heuristic excess that never reduces the loss below free space.
type IrregularTerrain struct {
	Obstructed bool
	Climate    string
	TxHeightM  float64
	RxHeightM  float64
}

func (IrregularTerrain) Kind() Kind { return KindITM }

func (m IrregularTerrain) LossDB(distanceM, freqMHz float64) float64 {
	d := geo.ClampDistance(distanceM)
	excess := 0.1 * 10 * math.Log10(d)
	if m.Obstructed {
		excess += 6
	}
	excess += climateExcessDB(m.Climate)
	if m.TxHeightM > 0 && m.RxHeightM > 0 {
		excess -= 2 * math.Log10(math.Max(1, m.TxHeightM)*math.Max(1, m.RxHeightM))
	}
	return FSPLdB(d, freqMHz) + math.Max(0, excess)
}

func climateExcessDB(c string) float64 {
	c = strings.ToLower(strings.TrimSpace(c))
	switch {
	case c == "":
		return 0
	case strings.Contains(c, "mar"):
		return 2
	case strings.Contains(c, "tropic"):
		return 1
	default:
		return 3
	}
}

func fsplRaw(d, freqMHz float64) float64 {
	return 20 * math.Log10(4*math.Pi*d*freqMHz*1e6/SpeedOfLight)
}
