package h3mapper

import (
	"errors"
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/geo"
)

const (
	// ellipseVertices is the number of boundary samples taken around an ellipse.
	ellipseVertices = 16
	// maxPolyfillCells bounds the cells one polyfill may produce.
	maxPolyfillCells = 4096
	// res0CellAreaM2 is the mean H3 cell area at resolution 0. Each finer
	// resolution divides it by seven.
	res0CellAreaM2 = 4.357449416078383e12
)

var ErrEmptyRegion = errors.New("region has no shape")

// Mapper samples a region into its boundary vertices plus the centers of the
// H3 cells covering its interior.
type Mapper struct {
	res       int
	maxPoints int
}

func New(res, maxPoints int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if maxPoints < 1 {
		return nil, fmt.Errorf("max points must be >= 1, got %d", maxPoints)
	}
	return &Mapper{res: res, maxPoints: maxPoints}, nil
}

func (m *Mapper) EvaluationPoints(r model.Region) ([]model.LatLon, error) {
	switch r.Shapes() {
	case 0:
		return nil, ErrEmptyRegion
	case 1:
	default:
		return nil, fmt.Errorf("region has %d shapes, want 1", r.Shapes())
	}
	if r.Point != nil {
		if !r.Point.Valid() {
			return nil, fmt.Errorf("invalid point %v", *r.Point)
		}
		return []model.LatLon{*r.Point}, nil
	}

	var (
		anchor []model.LatLon
		ring   []model.LatLon
		err    error
	)
	switch {
	case r.Ellipse != nil:
		anchor = []model.LatLon{r.Ellipse.Center}
		ring, err = ellipseRing(*r.Ellipse)
	case r.Radial != nil:
		anchor = []model.LatLon{r.Radial.Center}
		ring, err = radialRing(*r.Radial)
	default:
		ring, err = linearRing(*r.Linear)
	}
	if err != nil {
		return nil, err
	}

	cells, err := polyfillOne(toLoop(ring), fillRes(ring, m.res))
	if err != nil {
		return nil, err
	}
	budget := m.maxPoints - len(anchor) - len(ring)
	cells, err = coarsen(cells, budget)
	if err != nil {
		return nil, err
	}

	out := make([]model.LatLon, 0, len(anchor)+len(ring)+len(cells))
	out = append(out, anchor...)
	out = append(out, ring...)
	for _, c := range cells {
		ll, err := c.LatLng()
		if err != nil {
			return nil, fmt.Errorf("h3 cell center: %w", err)
		}
		out = append(out, model.LatLon{Lat: ll.Lat, Lon: ll.Lng})
	}
	if len(out) > m.maxPoints {
		out = out[:m.maxPoints]
	}
	return out, nil
}

// --- helpers ---

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// fillRes lowers res until a disk covering the ring fits in maxPolyfillCells.
func fillRes(ring []model.LatLon, res int) int {
	var r float64
	for _, p := range ring[1:] {
		r = max(r, geo.DistanceM(ring[0], p))
	}
	area := math.Pi * r * r
	for res > 0 && area*math.Pow(7, float64(res))/res0CellAreaM2 > maxPolyfillCells {
		res--
	}
	return res
}

func ellipseRing(e model.Ellipse) ([]model.LatLon, error) {
	if !e.Center.Valid() {
		return nil, fmt.Errorf("invalid ellipse center %v", e.Center)
	}
	if !(e.MajorAxisM > 0) || !(e.MinorAxisM > 0) || e.MinorAxisM > e.MajorAxisM || math.IsInf(e.MajorAxisM, 0) {
		return nil, fmt.Errorf("invalid ellipse axes %v/%v", e.MajorAxisM, e.MinorAxisM)
	}
	ring := make([]model.LatLon, 0, ellipseVertices)
	for i := range ellipseVertices {
		t := 2 * math.Pi * float64(i) / ellipseVertices
		along, across := e.MajorAxisM*math.Cos(t), e.MinorAxisM*math.Sin(t)
		dist := math.Hypot(along, across)
		brg := e.OrientationDeg + math.Atan2(across, along)*180/math.Pi
		ring = append(ring, geo.Destination(e.Center, geo.NormalizeDeg(brg), dist))
	}
	return ring, nil
}

func radialRing(r model.RadialPolygon) ([]model.LatLon, error) {
	if !r.Center.Valid() {
		return nil, fmt.Errorf("invalid radial polygon center %v", r.Center)
	}
	if len(r.OuterBoundary) < 3 {
		return nil, errors.New("radial polygon needs >= 3 vertices")
	}
	ring := make([]model.LatLon, 0, len(r.OuterBoundary))
	for i, v := range r.OuterBoundary {
		if v.LengthM < 0 || math.IsNaN(v.LengthM) || math.IsInf(v.LengthM, 0) || math.IsNaN(v.AngleDeg) {
			return nil, fmt.Errorf("radial vertex %d invalid", i)
		}
		ring = append(ring, geo.Destination(r.Center, geo.NormalizeDeg(v.AngleDeg), v.LengthM))
	}
	return ring, nil
}

func linearRing(p model.LinearPolygon) ([]model.LatLon, error) {
	ring := append([]model.LatLon(nil), p.OuterBoundary...)
	// drop duplicated closing vertex if present
	if n := len(ring); n >= 2 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	if len(ring) < 3 {
		return nil, errors.New("linear polygon needs >= 3 distinct vertices")
	}
	for i, v := range ring {
		if !v.Valid() {
			return nil, fmt.Errorf("linear polygon vertex %d invalid", i)
		}
	}
	return ring, nil
}

func toLoop(ring []model.LatLon) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p.Lat, Lng: p.Lon})
	}
	return loop
}

// polyfillOne returns unique cells sorted for determinism.
func polyfillOne(outer h3.GeoLoop, res int) ([]h3.Cell, error) {
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	return uniqueSorted(cells), nil
}
