package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/acir"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/engine"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/propagation"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"ADDR", "H3_RES", "MAX_REGION_EXTENT_M", "CACHE_DRIVER", "KAFKA_BROKERS", "STRICT_SCHEMA", "AVAILABILITY_TTL"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8090" || c.H3Res != 9 || c.MaxEvalPoints != 64 || c.MaxRegionExtentM != 5000 || c.EngineWorkers != 8 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Cache.Driver != "none" || c.Cache.TTL != time.Minute || c.Cache.OpTimeout != 250*time.Millisecond {
		t.Fatalf("cache defaults: %+v", c.Cache)
	}
	if !c.StrictSchema || c.AvailabilityTTL != 15*time.Minute {
		t.Fatalf("protocol defaults: strict=%v ttl=%v", c.StrictSchema, c.AvailabilityTTL)
	}
	if c.Invalidation.Topic != "incumbent-updates" || len(c.Invalidation.Brokers) != 1 {
		t.Fatalf("invalidation defaults: %+v", c.Invalidation)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("H3_RES", "22")
	t.Setenv("CACHE_DRIVER", "Redis")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("STRICT_SCHEMA", "no")
	t.Setenv("CACHE_TTL", "bogus")

	c := FromEnv()
	if c.H3Res != 9 {
		t.Fatalf("out of range res should fall back, got %d", c.H3Res)
	}
	if c.Cache.Driver != "redis" {
		t.Fatalf("driver=%q want redis", c.Cache.Driver)
	}
	if len(c.Invalidation.Brokers) != 2 || c.Invalidation.Brokers[1] != "b:9092" {
		t.Fatalf("brokers=%v", c.Invalidation.Brokers)
	}
	if c.StrictSchema {
		t.Fatal("STRICT_SCHEMA=no should disable strict mode")
	}
	if c.Cache.TTL != time.Minute {
		t.Fatalf("bad duration should keep default, got %v", c.Cache.TTL)
	}
}

func TestFromEnv_DotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LRU_SIZE=77\nADDR=:1111\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ADDR", ":2222")
	t.Setenv("LRU_SIZE", "")
	os.Unsetenv("LRU_SIZE")

	c := FromEnv()
	if c.Cache.LRUSize != 77 {
		t.Fatalf("lru size=%d want 77 from .env", c.Cache.LRUSize)
	}
	if c.Addr != ":2222" {
		t.Fatalf("addr=%q, process env must win", c.Addr)
	}
}

const engineYAML = `
regulatory_cap_dbm: 30
psd_cap_dbm_per_mhz: 23
protection:
  threshold_db: -10
  margin_db: 2
propagation:
  model: free_space
  environment: suburban
device:
  min_eirp_dbm: 5
receiver:
  gain_dbi: 38
acir:
  combined:
    10: 20
  tx:
    20: 31
certification:
  certified: [FCC-A]
  disallowed: [FCC-X]
  disallowed_pairs:
    - certification_id: FCC-A
      serial_number: SN-1
`

func TestEngineFile_Apply(t *testing.T) {
	f, err := ParseEngineFile([]byte(engineYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c, err := f.Apply(engine.DefaultConfig())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.RegulatoryCapDBm != 30 || c.PSDCapDBmPerMHz == nil || *c.PSDCapDBmPerMHz != 23 {
		t.Fatalf("caps: %v %v", c.RegulatoryCapDBm, c.PSDCapDBmPerMHz)
	}
	if c.Protection.ThresholdDB != -10 || c.Protection.MarginDB != 2 {
		t.Fatalf("protection: %+v", c.Protection)
	}
	if c.Propagation.Kind != propagation.KindFreeSpace || c.Propagation.Environment != propagation.EnvSuburban {
		t.Fatalf("propagation: %+v", c.Propagation)
	}
	if c.Device.MinEIRPDBm == nil || *c.Device.MinEIRPDBm != 5 {
		t.Fatalf("device: %+v", c.Device)
	}
	if c.Receiver.GainDBi != 38 || c.Receiver.NoiseBandwidthMHz != 20 {
		t.Fatalf("receiver partial override lost defaults: %+v", c.Receiver)
	}
	if got := c.Masks.Tx.AttenuationDB(20); got != 31 {
		t.Fatalf("tx@20=%v want 31", got)
	}
	want := acir.SplitEvenly(20)
	if got := c.Masks.Rx.AttenuationDB(10); math.Abs(got-want) > 1e-9 {
		t.Fatalf("rx@10=%v want %v", got, want)
	}
	if pairs := f.Certification.Pairs(); len(pairs) != 1 || pairs[0] != [2]string{"FCC-A", "SN-1"} {
		t.Fatalf("pairs=%v", pairs)
	}
}

func TestEngineFile_Errors(t *testing.T) {
	if _, err := ParseEngineFile([]byte("regulatory_cap: 30\n")); err == nil {
		t.Fatal("unknown key should be rejected")
	}
	f, err := ParseEngineFile([]byte("propagation:\n  model: hata\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	base := engine.DefaultConfig()
	got, err := f.Apply(base)
	if err == nil {
		t.Fatal("unknown path model should fail")
	}
	if got.Propagation.Kind != base.Propagation.Kind {
		t.Fatal("failed apply must return the base config")
	}
	if _, err := ReadEngineFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestEngineFile_EmptyKeepsDefaults(t *testing.T) {
	f, err := ParseEngineFile(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	base := engine.DefaultConfig()
	c, err := f.Apply(base)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.RegulatoryCapDBm != base.RegulatoryCapDBm || c.Receiver != base.Receiver || c.Envelope != base.Envelope {
		t.Fatalf("empty file changed defaults")
	}
}
