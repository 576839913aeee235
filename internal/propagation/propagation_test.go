package propagation

import (
	"math"
	"testing"
)

func TestFSPLdB_KnownValue(t *testing.T) {
	// 1 km at 1000 MHz is about 92.45 dB.
	got := FSPLdB(1000, 1000)
	if math.Abs(got-92.4478) > 1e-3 {
		t.Fatalf("got %v want about 92.448", got)
	}
	if d := DistanceForFSPL(got, 1000); math.Abs(d-1000) > 1e-6 {
		t.Fatalf("inverse got %v want 1000", d)
	}
}

func TestFSPLdB_ClampsTinyDistance(t *testing.T) {
	if a, b := FSPLdB(0, 6000), FSPLdB(1, 6000); a != b || math.IsInf(a, 0) {
		t.Fatalf("clamp failed: %v vs %v", a, b)
	}
}

func TestModels_MonotonicInDistance(t *testing.T) {
	models := []Model{FreeSpace{}, DefaultLogDistance(), DefaultTwoSlope(), IrregularTerrain{}, IrregularTerrain{Obstructed: true, Climate: "maritime"}}
	for _, m := range models {
		prev := math.Inf(-1)
		for d := 1.0; d < 200_000; d *= 1.37 {
			l := m.LossDB(d, 6175)
			if l < prev {
				t.Fatalf("%s: loss decreased at %v m", m.Kind(), d)
			}
			prev = l
		}
	}
}

func TestTwoSlope_ContinuousAtBreakpoint(t *testing.T) {
	m := DefaultTwoSlope()
	a := m.LossDB(m.BreakpointM, 6000)
	b := m.LossDB(m.BreakpointM+1e-9, 6000)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("discontinuity %v vs %v", a, b)
	}
}

func TestSelector_AutoWindow(t *testing.T) {
	s, err := NewSelector(DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if k := s.Model(4999).Kind(); k != KindLogDistance {
		t.Fatalf("short range model %s", k)
	}
	if k := s.Model(5000).Kind(); k != KindITM {
		t.Fatalf("long range model %s", k)
	}
}

func TestSelector_EnvironmentAndPenetration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = KindFreeSpace
	cfg.Environment = EnvUrban
	cfg.Indoor = true
	s, err := NewSelector(cfg)
	if err != nil {
		t.Fatal(err)
	}
	l := s.Loss(10_000, 6175)
	if l.ClutterDB != 8 || l.PenetrationDB != 12 {
		t.Fatalf("offsets=%+v", l)
	}
	if math.Abs(l.TotalDB()-(FSPLdB(10_000, 6175)+20)) > 1e-9 {
		t.Fatalf("total=%v", l.TotalDB())
	}

	neg := -3.0
	cfg.PenetrationDB = &neg
	s, _ = NewSelector(cfg)
	if s.PenetrationDB() != 0 {
		t.Fatalf("negative penetration should clamp to 0, got %v", s.PenetrationDB())
	}
}

func TestParse(t *testing.T) {
	if k, err := ParseKind("FSPL"); err != nil || k != KindFreeSpace {
		t.Fatalf("got %v %v", k, err)
	}
	if _, err := ParseKind("hata"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ParseEnvironment("desert"); err == nil {
		t.Fatal("expected error")
	}
	if e, err := ParseEnvironment("Rural"); err != nil || e != EnvRural {
		t.Fatalf("got %v %v", e, err)
	}
}
