// Package acir combines transmit leakage and receive selectivity masks into an
// adjacent-channel interference ratio.
package acir

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrEmptyMask = errors.New("acir: mask has no points")

// Point is one (offset, attenuation) mask sample.
type Point struct {
	OffsetMHz     float64 `yaml:"offset_mhz" json:"offsetMhz"`
	AttenuationDB float64 `yaml:"attenuation_db" json:"attenuationDb"`
}

// Mask is sorted by offset with unique offsets.
type Mask []Point

// NewMask sorts points and keeps the last value for duplicate offsets.
func NewMask(points []Point) (Mask, error) {
	if len(points) == 0 {
		return nil, ErrEmptyMask
	}
	pts := append([]Point(nil), points...)
	for _, p := range pts {
		if !finite(p.OffsetMHz) || !finite(p.AttenuationDB) || p.OffsetMHz < 0 {
			return nil, fmt.Errorf("acir: invalid mask point %+v", p)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].OffsetMHz < pts[j].OffsetMHz })
	out := pts[:0]
	for _, p := range pts {
		if n := len(out); n > 0 && math.Abs(out[n-1].OffsetMHz-p.OffsetMHz) < 1e-9 {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return Mask(out), nil
}

// FromMap builds a mask from an offset->attenuation table.
func FromMap(m map[float64]float64) (Mask, error) {
	pts := make([]Point, 0, len(m))
	for k, v := range m {
		pts = append(pts, Point{OffsetMHz: k, AttenuationDB: v})
	}
	return NewMask(pts)
}

// AttenuationDB interpolates linearly and holds the edge value outside the mask.
func (m Mask) AttenuationDB(offsetMHz float64) float64 {
	if len(m) == 0 {
		return 0
	}
	x := math.Abs(offsetMHz)
	if x <= m[0].OffsetMHz {
		return m[0].AttenuationDB
	}
	if last := m[len(m)-1]; x >= last.OffsetMHz {
		return last.AttenuationDB
	}
	i := sort.Search(len(m), func(i int) bool { return m[i].OffsetMHz >= x })
	a, b := m[i-1], m[i]
	f := (x - a.OffsetMHz) / (b.OffsetMHz - a.OffsetMHz)
	return a.AttenuationDB + f*(b.AttenuationDB-a.AttenuationDB)
}

// CombineDB returns 10log10(1 / (10^(-tx/10) + 10^(-rx/10))).
func CombineDB(txDB, rxDB float64) float64 {
	return -10 * math.Log10(math.Pow(10, -txDB/10)+math.Pow(10, -rxDB/10))
}

// SplitEvenly returns the per-side attenuation that reproduces a combined ACIR
// when tx and rx contribute equally. Placeholder policy until a real split is known.
func SplitEvenly(combinedDB float64) float64 {
	return combinedDB + 10*math.Log10(2)
}

// Masks is the pair used by the evaluator.
type Masks struct {
	Tx Mask
	Rx Mask
}

func DefaultTx() map[float64]float64 {
	return map[float64]float64{10: 20, 20: 30, 30: 33, 40: 35, 80: 45, 120: 50}
}

func DefaultRx() map[float64]float64 {
	return map[float64]float64{10: 18, 20: 30, 30: 32, 40: 35, 80: 43, 120: 48}
}

func DefaultMasks() Masks {
	tx, _ := FromMap(DefaultTx())
	rx, _ := FromMap(DefaultRx())
	return Masks{Tx: tx, Rx: rx}
}

// Overrides are user-supplied tables layered over the defaults per offset.
// Combined entries apply only at offsets where neither Tx nor Rx is given.
type Overrides struct {
	Tx       map[float64]float64 `yaml:"tx"`
	Rx       map[float64]float64 `yaml:"rx"`
	Combined map[float64]float64 `yaml:"combined"`
}

// Build merges overrides over the default masks.
func Build(o Overrides) (Masks, error) {
	tx, rx := DefaultTx(), DefaultRx()
	for k, v := range o.Combined {
		_, hasTx := o.Tx[k]
		_, hasRx := o.Rx[k]
		if hasTx || hasRx {
			continue
		}
		side := SplitEvenly(v)
		tx[k], rx[k] = side, side
	}
	for k, v := range o.Tx {
		tx[k] = v
	}
	for k, v := range o.Rx {
		rx[k] = v
	}
	txm, err := FromMap(tx)
	if err != nil {
		return Masks{}, fmt.Errorf("tx mask: %w", err)
	}
	rxm, err := FromMap(rx)
	if err != nil {
		return Masks{}, fmt.Errorf("rx mask: %w", err)
	}
	return Masks{Tx: txm, Rx: rxm}, nil
}

// ACIRDB at the given center-frequency offset. Always finite for finite masks.
func (m Masks) ACIRDB(offsetMHz float64) float64 {
	return CombineDB(m.Tx.AttenuationDB(offsetMHz), m.Rx.AttenuationDB(offsetMHz))
}

// Profile evaluates ACIR at each offset.
func (m Masks) Profile(offsetsMHz ...float64) []Point {
	out := make([]Point, 0, len(offsetsMHz))
	for _, off := range offsetsMHz {
		out = append(out, Point{OffsetMHz: off, AttenuationDB: m.ACIRDB(off)})
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
