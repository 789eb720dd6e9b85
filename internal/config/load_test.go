// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v6"
)

const sample = `
master:
  index: 0
slave:
  alias: 0
  position: 0
  vendor_id: 0x00004321
  product_code: 0x000010BA
cycle:
  period_ns: 2000000
  sync_offset_ns: 400000
  mode_gate: first_enabled
realtime:
  enabled: false
status_memory:
  endpoint: "127.0.0.1:502"
  unit_id: 3
  base_slot: 100
  device_name: "SERVO-01"
feed:
  listen: ":8080"
`

func TestParse_OverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}

	if cfg.Slave.VendorID != 0x4321 || cfg.Slave.ProductCode != 0x10BA {
		t.Fatalf("identity: %+v", cfg.Slave)
	}
	if cfg.Cycle.PeriodNs != 2_000_000 || cfg.Cycle.SyncOffsetNs != 400_000 {
		t.Fatalf("cycle: %+v", cfg.Cycle)
	}
	// absent keys keep their default
	if cfg.Cycle.DCAssignActivate != 0x0300 || cfg.Cycle.ModeWriteCycle != 10 {
		t.Fatalf("cycle defaults lost: %+v", cfg.Cycle)
	}
	if cfg.Realtime.Enabled || !cfg.Realtime.LockMemory {
		t.Fatalf("realtime: %+v", cfg.Realtime)
	}
	if cfg.StatusMemory == nil || cfg.StatusMemory.UnitID != 3 || cfg.StatusMemory.BaseSlot != 100 {
		t.Fatalf("status memory: %+v", cfg.StatusMemory)
	}
	if cfg.Feed.Listen != ":8080" {
		t.Fatalf("feed: %+v", cfg.Feed)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("sample should validate: %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) err=%v", err)
	}
	if cfg.Cycle.PeriodNs != 4_000_000 || cfg.StatusMemory != nil {
		t.Fatalf("empty input should yield defaults: %+v", cfg)
	}
}

func TestParse_UnknownKey(t *testing.T) {
	if _, err := Parse([]byte("cycle:\n  period: 1\n")); err == nil {
		t.Fatalf("expected unknown key error, got nil")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.Cycle.ModeGate != "first_enabled" {
		t.Fatalf("mode gate: %q", cfg.Cycle.ModeGate)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEnv_Apply(t *testing.T) {
	e, err := parseEnv(env.Options{Environment: map[string]string{
		"ECAT_SIM":             "true",
		"ECAT_LISTEN":          ":9090",
		"ECAT_STATUS_ENDPOINT": "10.0.0.5:502",
		"ECAT_RT_DISABLE":      "1",
	}})
	if err != nil {
		t.Fatalf("parseEnv() err=%v", err)
	}
	if !e.Sim || !e.RTDisable {
		t.Fatalf("bool overrides: %+v", e)
	}

	cfg := Default()
	e.Apply(&cfg)

	if cfg.Feed.Listen != ":9090" {
		t.Fatalf("listen: %q", cfg.Feed.Listen)
	}
	if cfg.StatusMemory == nil || cfg.StatusMemory.Endpoint != "10.0.0.5:502" {
		t.Fatalf("status endpoint: %+v", cfg.StatusMemory)
	}
	if cfg.Realtime.Enabled {
		t.Fatalf("realtime should be disabled")
	}
}

func TestEnv_EmptyChangesNothing(t *testing.T) {
	e, err := parseEnv(env.Options{Environment: map[string]string{}})
	if err != nil {
		t.Fatalf("parseEnv() err=%v", err)
	}
	cfg := Default()
	e.Apply(&cfg)
	if cfg != Default() {
		t.Fatalf("empty env changed config")
	}
}
