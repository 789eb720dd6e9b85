// internal/config/validate.go
package config

import (
	"errors"
	"fmt"

	"github.com/tamzrod/ecat-drive/internal/cia402"
	"github.com/tamzrod/ecat-drive/internal/status"
)

const maxPrefaultBytes = 1 << 20

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	// ------------------------------------------------------------
	// SLAVE IDENTITY
	// ------------------------------------------------------------

	if cfg.Slave.VendorID == 0 || cfg.Slave.ProductCode == 0 {
		return fmt.Errorf(
			"slave %d:%d: vendor_id and product_code are required",
			cfg.Slave.Alias,
			cfg.Slave.Position,
		)
	}

	// ------------------------------------------------------------
	// CYCLE TIMING
	// ------------------------------------------------------------

	c := cfg.Cycle
	if c.PeriodNs <= 0 || c.PeriodNs > 1_000_000_000 {
		return fmt.Errorf("cycle: period_ns must be in (0, 1000000000], got %d", c.PeriodNs)
	}
	off := int64(c.SyncOffsetNs)
	if off < 0 {
		off = -off
	}
	if off >= c.PeriodNs {
		return fmt.Errorf(
			"cycle: |sync_offset_ns| must be below period_ns (offset=%d period=%d)",
			c.SyncOffsetNs,
			c.PeriodNs,
		)
	}
	if c.PeriodNs > int64(^uint32(0)) {
		return fmt.Errorf("cycle: period_ns %d does not fit SYNC0", c.PeriodNs)
	}
	if _, err := cia402.ParseModeGate(c.ModeGate); err != nil {
		return fmt.Errorf("cycle: %w", err)
	}

	// ------------------------------------------------------------
	// REAL-TIME
	// ------------------------------------------------------------

	rt := cfg.Realtime
	if rt.Priority < 0 || rt.Priority > 99 {
		return fmt.Errorf("realtime: priority must be 0..99, got %d", rt.Priority)
	}
	if rt.PrefaultBytes < 0 || rt.PrefaultBytes > maxPrefaultBytes {
		return fmt.Errorf("realtime: prefault_bytes must be 0..%d, got %d", maxPrefaultBytes, rt.PrefaultBytes)
	}

	// ------------------------------------------------------------
	// STATUS MEMORY (OPT-IN)
	// ------------------------------------------------------------

	sm := cfg.StatusMemory
	if sm == nil {
		return nil
	}

	if sm.Endpoint == "" {
		return errors.New("status_memory: endpoint is required")
	}

	switch sm.Transport {
	case "", TransportModbus, TransportIngest:
	default:
		return fmt.Errorf("status_memory: unknown transport %q", sm.Transport)
	}

	// device_name sanity (ASCII only)
	for i := 0; i < len(sm.DeviceName); i++ {
		if sm.DeviceName[i] > 0x7F {
			return fmt.Errorf(
				"status_memory %q: device_name must contain ASCII characters only",
				sm.Endpoint,
			)
		}
	}

	if sm.TimeoutMs < 0 {
		return fmt.Errorf("status_memory: timeout_ms must be >= 0, got %d", sm.TimeoutMs)
	}

	// base_slot is a device slot: the block starts at base_slot * SlotsPerDevice
	if (int(sm.BaseSlot)+1)*status.SlotsPerDevice > 0x10000 {
		return fmt.Errorf(
			"status_memory: base_slot %d leaves no room for %d registers",
			sm.BaseSlot,
			status.SlotsPerDevice,
		)
	}

	return nil
}
