package h3mapper

import (
	"reflect"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/geo"
)

func TestNew_RejectsBadRes(t *testing.T) {
	if _, err := New(16, 10); err == nil {
		t.Fatal("expected error for res 16")
	}
	if _, err := New(9, 0); err == nil {
		t.Fatal("expected error for zero max points")
	}
}

func TestPoint_ReturnsItself(t *testing.T) {
	m, _ := New(9, 64)
	p := model.LatLon{Lat: 40, Lon: -75}
	pts, err := m.EvaluationPoints(model.Region{Point: &p})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if len(pts) != 1 || pts[0] != p {
		t.Fatalf("got %v", pts)
	}
}

func TestEllipse_PointsInsideAndCapped(t *testing.T) {
	m, _ := New(10, 40)
	c := model.LatLon{Lat: 59.33, Lon: 18.06}
	e := &model.Ellipse{Center: c, MajorAxisM: 500, MinorAxisM: 200, OrientationDeg: 30}
	pts, err := m.EvaluationPoints(model.Region{Ellipse: e})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if len(pts) == 0 || len(pts) > 40 {
		t.Fatalf("point count %d", len(pts))
	}
	if pts[0] != c {
		t.Fatalf("first point should be the center, got %v", pts[0])
	}
	for _, p := range pts {
		if d := geo.DistanceM(c, p); d > 500+200 {
			t.Fatalf("point %v is %f m from center", p, d)
		}
	}

	again, _ := m.EvaluationPoints(model.Region{Ellipse: e})
	if !reflect.DeepEqual(pts, again) {
		t.Fatal("expected deterministic output")
	}
}

func TestFillRes_CoarsensLargeRegions(t *testing.T) {
	c := model.LatLon{Lat: 40, Lon: -75}
	small, _ := ellipseRing(model.Ellipse{Center: c, MajorAxisM: 100, MinorAxisM: 50})
	if got := fillRes(small, 9); got != 9 {
		t.Fatalf("small region res=%d want 9", got)
	}
	huge, _ := ellipseRing(model.Ellipse{Center: c, MajorAxisM: 800_000, MinorAxisM: 800_000})
	if got := fillRes(huge, 9); got >= 9 {
		t.Fatalf("huge region res=%d want coarser than 9", got)
	}

	m, _ := New(9, 64)
	pts, err := m.EvaluationPoints(model.Region{Ellipse: &model.Ellipse{Center: c, MajorAxisM: 800_000, MinorAxisM: 800_000}})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if len(pts) == 0 || len(pts) > 64 {
		t.Fatalf("point count %d", len(pts))
	}
}

func TestLinearPolygon_ClosedRingAccepted(t *testing.T) {
	m, _ := New(9, 64)
	ring := []model.LatLon{
		{Lat: 59.32, Lon: 18.00}, {Lat: 59.32, Lon: 18.02}, {Lat: 59.34, Lon: 18.02}, {Lat: 59.34, Lon: 18.00}, {Lat: 59.32, Lon: 18.00},
	}
	pts, err := m.EvaluationPoints(model.Region{Linear: &model.LinearPolygon{OuterBoundary: ring}})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if len(pts) < 4 {
		t.Fatalf("expected vertices plus interior, got %d", len(pts))
	}
	for i := range 4 {
		if pts[i] != ring[i] {
			t.Fatalf("vertex %d = %v want %v", i, pts[i], ring[i])
		}
	}
}

func TestRegion_ShapeCount(t *testing.T) {
	m, _ := New(9, 64)
	p := model.LatLon{Lat: 1, Lon: 1}
	if _, err := m.EvaluationPoints(model.Region{}); err != ErrEmptyRegion {
		t.Fatalf("want ErrEmptyRegion, got %v", err)
	}
	r := model.Region{Point: &p, Ellipse: &model.Ellipse{Center: p, MajorAxisM: 1, MinorAxisM: 1}}
	if _, err := m.EvaluationPoints(r); err == nil {
		t.Fatal("expected error for two shapes")
	}
}

func TestCoarsen_ReducesToBudget(t *testing.T) {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 59.3293, Lng: 18.0686}, 7)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	kids, err := cell.Children(9)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	out, err := coarsen(kids, 10)
	if err != nil {
		t.Fatalf("coarsen: %v", err)
	}
	if len(out) != 7 || out[0].Resolution() != 8 {
		t.Fatalf("got %d cells at res %d", len(out), out[0].Resolution())
	}
	if got, _ := coarsen(kids, 0); got != nil {
		t.Fatalf("zero budget should drop cells, got %d", len(got))
	}
}
