package linkbudget

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestNoiseFloorDBm(t *testing.T) {
	n, err := NoiseFloorDBm(20e6, 4)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	want := -174 + 10*math.Log10(20e6) + 4
	if math.Abs(n-want) > 1e-12 {
		t.Fatalf("got %v want %v", n, want)
	}
	if math.Abs(n-(-96.98970004336019)) > 1e-9 {
		t.Fatalf("got %v want about -96.99", n)
	}
}

func TestNoiseFloorDBm_Errors(t *testing.T) {
	if _, err := NoiseFloorDBm(0, 4); !errors.Is(err, ErrInvalidBandwidth) {
		t.Fatalf("want ErrInvalidBandwidth, got %v", err)
	}
	if _, err := NoiseFloorDBm(-5, 4); !errors.Is(err, ErrInvalidBandwidth) {
		t.Fatalf("want ErrInvalidBandwidth, got %v", err)
	}
	if _, err := NoiseFloorDBm(1e6, math.NaN()); !errors.Is(err, ErrNonFiniteNoiseFigure) {
		t.Fatalf("want ErrNonFiniteNoiseFigure, got %v", err)
	}
	if _, err := NoiseFloorDBm(1e6, math.Inf(1)); !errors.Is(err, ErrNonFiniteNoiseFigure) {
		t.Fatalf("want ErrNonFiniteNoiseFigure, got %v", err)
	}
}

func TestSolveEIRP_ZeroesMargin(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		b := Budget{
			PathLossDB:         60 + r.Float64()*100,
			RxGainDBi:          r.Float64() * 40,
			RxLossDB:           r.Float64() * 3,
			PolarizationLossDB: r.Float64() * 3,
			ACIRDB:             r.Float64() * 50,
		}
		p := Protection{ThresholdDB: -6, MarginDB: r.Float64() * 5}
		noise := -100 + r.Float64()*10
		eirp := SolveEIRP(b, p, noise)
		if m := p.Headroom(noise, b.InterferenceDBm(eirp)); math.Abs(m) > 1e-9 {
			t.Fatalf("margin at solved eirp=%v, want 0", m)
		}
	}
}

func TestPSDRoundTrip(t *testing.T) {
	for _, bw := range []float64{1, 20, 40, 80, 160, 320} {
		for _, eirp := range []float64{-10, 0, 23.5, 36} {
			got := EIRPFromPSD(PSDFromEIRP(eirp, bw), bw)
			if math.Abs(got-eirp) > 1e-9 {
				t.Fatalf("bw=%v eirp=%v round trip=%v", bw, eirp, got)
			}
		}
	}
}

func TestSumDBm(t *testing.T) {
	if got := SumDBm(0, 0); math.Abs(got-10*math.Log10(2)) > 1e-12 {
		t.Fatalf("got %v", got)
	}
	if !math.IsInf(SumDBm(), -1) {
		t.Fatal("empty sum should be -Inf")
	}
}
