// internal/config/normalize.go
package config

import "github.com/tamzrod/ecat-drive/internal/status"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Cycle.ModeGate == "" {
		cfg.Cycle.ModeGate = "cycle"
	}
	if cfg.Cycle.ModeWriteCycle == 0 {
		cfg.Cycle.ModeWriteCycle = 10
	}

	// ------------------------------------------------------------
	// STATUS MEMORY NORMALIZATION (OPT-IN)
	// ------------------------------------------------------------

	sm := cfg.StatusMemory
	if sm == nil {
		return
	}

	if sm.Transport == "" {
		sm.Transport = TransportModbus
	}
	if sm.TimeoutMs == 0 {
		sm.TimeoutMs = 1000
	}

	// Normalize device_name:
	// - ASCII already validated
	// - Truncate to max 16 characters
	if len(sm.DeviceName) > status.DeviceNameMaxChars {
		sm.DeviceName = sm.DeviceName[:status.DeviceNameMaxChars]
	}
}
