package engine

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/acir"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/geo"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/linkbudget"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/propagation"
)

var (
	rxSite = model.LatLon{Lat: 40.0, Lon: -75.0}
	ch6175 = model.Channel{Band: model.BandUNII5, OperatingClass: 131, Index: 45, CenterMHz: 6175, BandwidthMHz: 20}
)

func freeSpaceEngine(t *testing.T, mut ...func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Propagation.Kind = propagation.KindFreeSpace
	for _, m := range mut {
		m(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func apAt(bearing, dist float64) AP {
	return AP{ID: "ap", Location: geo.Destination(rxSite, bearing, dist)}
}

func fsAt(id string, loc model.LatLon) model.ReceiverPoint {
	return model.ReceiverPoint{ID: id, CenterMHz: 6175, BandwidthMHz: 20, Location: loc}
}

func TestScenario1_FreeSpaceTenKilometres(t *testing.T) {
	e := freeSpaceEngine(t)
	ap := apAt(0, 10_000)
	rec := e.GrantChannel([]AP{ap}, []model.ReceiverPoint{fsAt("FS1", rxSite)}, ch6175)

	d := geo.DistanceM(ap.Location, rxSite)
	noise, _ := linkbudget.NoiseFloorDBm(20e6, 4)
	want := noise - 6 + propagation.FSPLdB(d, 6175) - 30 + 1
	if math.Abs(rec.AllowedEIRPDBm-want) > 1e-9 {
		t.Fatalf("allowed=%v want %v", rec.AllowedEIRPDBm, want)
	}
	if math.Abs(rec.AllowedEIRPDBm-(-3.729)) > 0.01 {
		t.Fatalf("allowed=%v want about -3.73", rec.AllowedEIRPDBm)
	}
	if rec.Decision != model.Deny || rec.Trace.Cause != model.CauseCoChannel || rec.Trace.LimitingReceiverID != "FS1" {
		t.Fatalf("record=%+v", rec)
	}
	if math.Abs(rec.AllowedPSDDBmPerMHz-(rec.AllowedEIRPDBm-10*math.Log10(20))) > 1e-12 {
		t.Fatalf("psd=%v", rec.AllowedPSDDBmPerMHz)
	}
	if m := rec.Limiting.MarginDB; math.Abs(m-(want-36)) > 1e-9 {
		t.Fatalf("margin at cap=%v want %v", m, want-36)
	}
}

func TestScenario4_DeviceMinimumOverridesCause(t *testing.T) {
	e := freeSpaceEngine(t)
	ap := apAt(0, 60_000)
	rx := []model.ReceiverPoint{fsAt("FS1", rxSite)}
	base := e.GrantChannel([]AP{ap}, rx, ch6175)
	if base.Decision != model.Grant {
		t.Fatalf("precondition: want grant, got %+v", base)
	}

	strict, err := e.With(Overrides{Device: DeviceLimits{MinEIRPDBm: model.Float(base.AllowedEIRPDBm + 1)}})
	if err != nil {
		t.Fatal(err)
	}
	rec := strict.GrantChannel([]AP{ap}, rx, ch6175)
	if rec.Decision != model.Deny || rec.Trace.Cause != model.CauseDeviceMinimum {
		t.Fatalf("want deny/device-minimum, got %s/%s", rec.Decision, rec.Trace.Cause)
	}
	if rec.AllowedEIRPDBm != base.AllowedEIRPDBm {
		t.Fatalf("allowed changed: %v vs %v", rec.AllowedEIRPDBm, base.AllowedEIRPDBm)
	}

	psdStrict, _ := e.With(Overrides{Device: DeviceLimits{MinPSDDBmPerMHz: model.Float(base.AllowedPSDDBmPerMHz + 0.5)}})
	if rec := psdStrict.GrantChannel([]AP{ap}, rx, ch6175); rec.Trace.Cause != model.CauseDeviceMinimum {
		t.Fatalf("psd minimum ignored: %+v", rec.Trace)
	}
}

func TestScenario5_PassiveSiteBecomesLimiting(t *testing.T) {
	e := freeSpaceEngine(t)
	ap := apAt(0, 30_000)
	inc := model.Incumbent{ID: "FS1", CenterMHz: 6175, BandwidthMHz: 20, Location: rxSite}
	before := e.GrantChannel([]AP{ap}, Flatten([]model.Incumbent{inc}), ch6175)

	inc.PassiveSites = []model.PassiveSite{{Location: geo.Destination(rxSite, 0, 25_000)}}
	after := e.GrantChannel([]AP{ap}, Flatten([]model.Incumbent{inc}), ch6175)

	if !(after.AllowedEIRPDBm < before.AllowedEIRPDBm) {
		t.Fatalf("passive site should tighten: before=%v after=%v", before.AllowedEIRPDBm, after.AllowedEIRPDBm)
	}
	if after.Trace.LimitingReceiverID != "FS1:PS1" {
		t.Fatalf("limiting=%q want FS1:PS1", after.Trace.LimitingReceiverID)
	}
}

func TestRegulatoryCapBinds(t *testing.T) {
	e := freeSpaceEngine(t)
	rec := e.GrantChannel([]AP{apAt(0, 2_000_000)}, []model.ReceiverPoint{fsAt("FS1", rxSite)}, ch6175)
	if rec.AllowedEIRPDBm != 36 || rec.Trace.Cause != model.CauseRegulatoryCap || rec.Decision != model.Grant {
		t.Fatalf("record=%+v", rec)
	}

	e = freeSpaceEngine(t, func(c *Config) { c.PSDCapDBmPerMHz = model.Float(5) })
	rec = e.GrantChannel([]AP{apAt(0, 2_000_000)}, []model.ReceiverPoint{fsAt("FS1", rxSite)}, ch6175)
	if want := 5 + 10*math.Log10(20); math.Abs(rec.AllowedEIRPDBm-want) > 1e-12 {
		t.Fatalf("psd cap: allowed=%v want %v", rec.AllowedEIRPDBm, want)
	}
}

func TestNoReceivers_CapAndGrant(t *testing.T) {
	e := freeSpaceEngine(t)
	rec := e.GrantChannel([]AP{apAt(0, 1000)}, nil, ch6175)
	if rec.AllowedEIRPDBm != 36 || rec.Limiting != nil || rec.Decision != model.Grant {
		t.Fatalf("record=%+v", rec)
	}
}

func TestRegime(t *testing.T) {
	e := freeSpaceEngine(t)
	ap := apAt(0, 20_000)

	co, err := e.Evaluate(ap, fsAt("FS1", rxSite), ch6175)
	if err != nil {
		t.Fatal(err)
	}
	if co.Regime != model.RegimeCoChannel || co.ACIRDB != 0 {
		t.Fatalf("co=%+v", co)
	}

	adjCh := model.Channel{OperatingClass: 131, Index: 49, CenterMHz: 6195, BandwidthMHz: 20}
	adj, err := e.Evaluate(ap, fsAt("FS1", rxSite), adjCh)
	if err != nil {
		t.Fatal(err)
	}
	if adj.Regime != model.RegimeAdjacent || adj.OffsetMHz != 20 {
		t.Fatalf("adj=%+v", adj)
	}
	if want := acir.CombineDB(30, 30); math.Abs(adj.ACIRDB-want) > 1e-12 {
		t.Fatalf("acir=%v want %v", adj.ACIRDB, want)
	}
	// path loss differs slightly with frequency; compare the ACIR contribution
	diff := adj.TolerableEIRPDBm - co.TolerableEIRPDBm - (adj.PathLossDB - co.PathLossDB)
	if math.Abs(diff-adj.ACIRDB) > 1e-9 {
		t.Fatalf("adjacent tolerable should rise by ACIR, diff=%v", diff)
	}

	wide := fsAt("FS2", rxSite)
	wide.CenterMHz, wide.BandwidthMHz = 6180, 30
	ov, _ := e.Evaluate(ap, wide, ch6175)
	if ov.Regime != model.RegimeCoChannel || ov.OffsetMHz != 5 {
		t.Fatalf("overlapping channel should be co-channel: %+v", ov)
	}
}

func TestDataErrorExcludesOnlyThatReceiver(t *testing.T) {
	e := freeSpaceEngine(t)
	ap := apAt(0, 10_000)
	good := fsAt("GOOD", rxSite)
	bad := fsAt("BAD", geo.Destination(rxSite, 0, 9_000))
	bad.BandwidthMHz = 0
	nan := fsAt("NAN", model.LatLon{Lat: math.NaN(), Lon: 0})

	rec := e.GrantChannel([]AP{ap}, []model.ReceiverPoint{bad, good, nan}, ch6175)
	only := e.GrantChannel([]AP{ap}, []model.ReceiverPoint{good}, ch6175)
	if rec.AllowedEIRPDBm != only.AllowedEIRPDBm || rec.Trace.LimitingReceiverID != "GOOD" {
		t.Fatalf("exclusion changed result: %+v", rec)
	}
	if len(rec.Excluded) != 2 || rec.Excluded[0].ReceiverID != "BAD" || rec.Excluded[1].ReceiverID != "NAN" {
		t.Fatalf("excluded=%+v", rec.Excluded)
	}

	if _, err := e.Evaluate(ap, bad, ch6175); !errors.As(err, new(*model.DataError)) {
		t.Fatalf("want DataError, got %v", err)
	}
}

func TestDataErrorKeepsValidReceiverWithSameID(t *testing.T) {
	e := freeSpaceEngine(t)
	ap := apAt(0, 10_000)
	good := fsAt("A:PS1", rxSite)
	bad := fsAt("A:PS1", geo.Destination(rxSite, 0, 9_000))
	bad.BandwidthMHz = 0

	rec := e.GrantChannel([]AP{ap}, []model.ReceiverPoint{good, bad}, ch6175)
	only := e.GrantChannel([]AP{ap}, []model.ReceiverPoint{good}, ch6175)
	if rec.AllowedEIRPDBm != only.AllowedEIRPDBm || rec.Trace.LimitingReceiverID != "A:PS1" {
		t.Fatalf("valid receiver dropped: %+v", rec)
	}
	if len(rec.Excluded) != 1 {
		t.Fatalf("excluded=%+v", rec.Excluded)
	}
}

func TestNoiseBandwidthPrecedence(t *testing.T) {
	e := freeSpaceEngine(t)
	ap := apAt(0, 10_000)
	rx := fsAt("FS1", rxSite)
	rx.NoiseBandwidthMHz = model.Float(10)
	a, _ := e.Evaluate(ap, rx, ch6175)
	want, _ := linkbudget.NoiseFloorDBm(10e6, 4)
	if a.NoiseDBm != want {
		t.Fatalf("explicit bandwidth ignored: %v", a.NoiseDBm)
	}
	rx.EmissionDesignator = "30M0D7W"
	b, _ := e.Evaluate(ap, rx, ch6175)
	want, _ = linkbudget.NoiseFloorDBm(30e6, 4)
	if b.NoiseDBm != want {
		t.Fatalf("designator should win: %v", b.NoiseDBm)
	}

	rx = fsAt("FS2", rxSite)
	rx.CenterMHz = 6600
	c, _ := e.Evaluate(ap, rx, model.Channel{CenterMHz: 6600, BandwidthMHz: 20})
	want, _ = linkbudget.NoiseFloorDBm(20e6, 4.5)
	if c.NoiseDBm != want {
		t.Fatalf("high band noise figure: %v want %v", c.NoiseDBm, want)
	}
}

func TestParseEmissionDesignator(t *testing.T) {
	cases := map[string]float64{"25M0F7W": 25, "200K0F3E": 0.2, "5M50D7W": 5.5, "1G20W7D": 1200}
	for in, want := range cases {
		got, ok := ParseEmissionDesignator(in)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Fatalf("%s: got %v %v want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseEmissionDesignator("F7W"); ok {
		t.Fatal("expected no match")
	}
}

func randomReceiver(r *rand.Rand, id string) model.ReceiverPoint {
	rx := model.ReceiverPoint{
		ID:           id,
		CenterMHz:    5950 + r.Float64()*1150,
		BandwidthMHz: []float64{10, 20, 30, 40, 60}[r.IntN(5)],
		Location:     geo.Destination(rxSite, r.Float64()*360, 100+r.Float64()*80_000),
	}
	if r.IntN(2) == 0 {
		rx.AzimuthDeg = model.Float(r.Float64() * 360)
	}
	if r.IntN(3) == 0 {
		rx.GainDBi = model.Float(20 + r.Float64()*25)
	}
	return rx
}

func TestProperty_AllowedNeverExceedsCap(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 1))
	kinds := []propagation.Kind{propagation.KindAuto, propagation.KindFreeSpace, propagation.KindTwoSlope, propagation.KindITM}
	for i := range 200 {
		capDBm := 20 + r.Float64()*20
		e := freeSpaceEngine(t, func(c *Config) {
			c.RegulatoryCapDBm = capDBm
			c.Propagation.Kind = kinds[i%len(kinds)]
			c.Protection.MarginDB = r.Float64() * 3
		})
		var rxs []model.ReceiverPoint
		for j := range 1 + r.IntN(4) {
			rxs = append(rxs, randomReceiver(r, string(rune('A'+j))))
		}
		ch := model.Channel{OperatingClass: 131, Index: 1, CenterMHz: 5955 + 20*float64(r.IntN(50)), BandwidthMHz: 20}
		rec := e.GrantChannel([]AP{{Location: rxSite}}, rxs, ch)
		if rec.AllowedEIRPDBm > capDBm+1e-12 {
			t.Fatalf("allowed %v exceeds cap %v", rec.AllowedEIRPDBm, capDBm)
		}
		if math.IsNaN(rec.AllowedEIRPDBm) || math.IsInf(rec.AllowedEIRPDBm, 0) {
			t.Fatalf("non-finite allowed %v", rec.AllowedEIRPDBm)
		}
	}
}

func TestProperty_TolerableMonotonicInDistance(t *testing.T) {
	for _, kind := range []propagation.Kind{propagation.KindAuto, propagation.KindFreeSpace, propagation.KindLogDistance, propagation.KindTwoSlope, propagation.KindITM} {
		e := freeSpaceEngine(t, func(c *Config) { c.Propagation.Kind = kind })
		rx := fsAt("FS1", rxSite)
		rx.AzimuthDeg = model.Float(10)
		prev := math.Inf(-1)
		for d := 10.0; d < 150_000; d *= 1.21 {
			ev, err := e.Evaluate(apAt(33, d), rx, ch6175)
			if err != nil {
				t.Fatal(err)
			}
			if ev.TolerableEIRPDBm < prev-1e-9 {
				t.Fatalf("%s: tolerable dropped at %v m (%v < %v)", kind, d, ev.TolerableEIRPDBm, prev)
			}
			prev = ev.TolerableEIRPDBm
		}
	}
}

func TestProperty_AggregateIsMinimum(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 9))
	e := freeSpaceEngine(t, func(c *Config) { c.RegulatoryCapDBm = 80 })
	ap := AP{Location: geo.Destination(rxSite, 45, 2_000)}
	for range 100 {
		var rxs []model.ReceiverPoint
		prevAllowed := math.Inf(1)
		for j := range 1 + r.IntN(6) {
			rxs = append(rxs, randomReceiver(r, string(rune('a'+j))))
			rec := e.GrantChannel([]AP{ap}, rxs, ch6175)

			want := 80.0
			for _, rx := range rxs {
				ev, _ := e.Evaluate(ap, rx, ch6175)
				want = math.Min(want, ev.TolerableEIRPDBm)
			}
			if rec.AllowedEIRPDBm != want {
				t.Fatalf("allowed %v != min %v", rec.AllowedEIRPDBm, want)
			}
			if rec.AllowedEIRPDBm > prevAllowed {
				t.Fatalf("adding a receiver increased allowed: %v > %v", rec.AllowedEIRPDBm, prevAllowed)
			}
			prevAllowed = rec.AllowedEIRPDBm
		}
	}
}

func TestReduce_OrderIndependentTieBreak(t *testing.T) {
	e := freeSpaceEngine(t)
	evs := []model.InterferenceResult{
		{ReceiverID: "B", TolerableEIRPDBm: 10},
		{ReceiverID: "A", TolerableEIRPDBm: 10, Regime: model.RegimeAdjacent},
		{ReceiverID: "C", TolerableEIRPDBm: 20},
	}
	a := e.Reduce(ch6175, evs, nil)
	b := e.Reduce(ch6175, []model.InterferenceResult{evs[2], evs[1], evs[0]}, nil)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("order dependent: %+v vs %+v", a, b)
	}
	if a.Trace.LimitingReceiverID != "A" || a.Trace.Cause != model.CauseAdjacent {
		t.Fatalf("trace=%+v", a.Trace)
	}
}

func TestGrant_ParallelMatchesSerialAndOrder(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 5))
	var rxs []model.ReceiverPoint
	for j := range 8 {
		rxs = append(rxs, randomReceiver(r, string(rune('A'+j))))
	}
	var chs []model.Channel
	for i := range 30 {
		chs = append(chs, model.Channel{OperatingClass: 131, Index: 1 + 4*i, CenterMHz: 5955 + 20*float64(i), BandwidthMHz: 20})
	}
	in := Inquiry{Points: []AP{{Location: rxSite}}, Receivers: rxs, Channels: chs}

	serial := freeSpaceEngine(t, func(c *Config) { c.Workers = 1 })
	par := freeSpaceEngine(t, func(c *Config) { c.Workers = 8 })
	a, err := serial.Grant(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := par.Grant(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("parallel result differs from serial")
	}
	for i := range chs {
		if a[i].Channel != chs[i] {
			t.Fatalf("record %d out of order", i)
		}
	}
}

func TestGrant_Errors(t *testing.T) {
	e := freeSpaceEngine(t)
	if _, err := e.Grant(context.Background(), Inquiry{Channels: []model.Channel{ch6175}}); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("want ErrNoPoints, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := Inquiry{Points: []AP{{Location: rxSite}}, Channels: []model.Channel{ch6175, ch6175, ch6175}}
	if _, err := e.Grant(ctx, in); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestRegionPoints_StrictestGoverns(t *testing.T) {
	e := freeSpaceEngine(t)
	rx := []model.ReceiverPoint{fsAt("FS1", rxSite)}
	near, far := apAt(0, 8_000), apAt(0, 12_000)
	both := e.GrantChannel([]AP{far, near}, rx, ch6175)
	only := e.GrantChannel([]AP{near}, rx, ch6175)
	if both.AllowedEIRPDBm != only.AllowedEIRPDBm {
		t.Fatalf("region min %v want %v", both.AllowedEIRPDBm, only.AllowedEIRPDBm)
	}
}

func TestAggregateAPs(t *testing.T) {
	e := freeSpaceEngine(t)
	rx := []model.ReceiverPoint{fsAt("FS1", rxSite)}
	near := AP{ID: "near", Location: geo.Destination(rxSite, 0, 10_000)}
	far := AP{ID: "far", Location: geo.Destination(rxSite, 180, 200_000), EIRPDBm: model.Float(10)}

	res, err := e.AggregateAPs(context.Background(), []AP{far, near}, rx, []model.Channel{ch6175})
	if err != nil {
		t.Fatal(err)
	}
	got := res[0]
	if got.WorstAPID != "near" || got.WorstReceiverID != "FS1" || got.Pass {
		t.Fatalf("result=%+v", got)
	}
	single, _ := e.Evaluate(near, rx[0], ch6175)
	if math.Abs(got.WorstMarginDB-single.MarginDB) > 1e-9 {
		t.Fatalf("worst margin %v want %v", got.WorstMarginDB, single.MarginDB)
	}
	if got.AggregateINRDB < single.InterferenceDBm-single.NoiseDBm {
		t.Fatalf("aggregate INR %v below single AP INR", got.AggregateINRDB)
	}
	if got.AggregatePass {
		t.Fatal("aggregate should fail")
	}

	ok, _ := e.AggregateAPs(context.Background(), []AP{far}, rx, []model.Channel{ch6175})
	if !ok[0].Pass || !ok[0].AggregatePass {
		t.Fatalf("far AP alone should pass: %+v", ok[0])
	}
}

func TestWith_DoesNotMutateBase(t *testing.T) {
	e := freeSpaceEngine(t)
	env := propagation.EnvUrban
	o, err := e.With(Overrides{Environment: &env, ProtectionMarginDB: model.Float(3)})
	if err != nil {
		t.Fatal(err)
	}
	if e.Config().Propagation.Environment != propagation.EnvNone || e.Config().Protection.MarginDB != 0 {
		t.Fatal("base engine mutated")
	}
	ap := apAt(0, 10_000)
	a, _ := e.Evaluate(ap, fsAt("FS1", rxSite), ch6175)
	b, _ := o.Evaluate(ap, fsAt("FS1", rxSite), ch6175)
	if math.Abs((b.TolerableEIRPDBm-a.TolerableEIRPDBm)-(8-3)) > 1e-9 {
		t.Fatalf("urban clutter +8 and margin 3 should net +5 dB, got %v", b.TolerableEIRPDBm-a.TolerableEIRPDBm)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RegulatoryCapDBm = math.NaN()
	cfg.Receiver.NoiseBandwidthMHz = 0
	if _, err := New(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}
