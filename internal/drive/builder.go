// internal/drive/builder.go
package drive

import (
	"fmt"

	"github.com/tamzrod/ecat-drive/internal/cia402"
	"github.com/tamzrod/ecat-drive/internal/config"
	"github.com/tamzrod/ecat-drive/internal/cyclic"
	"github.com/tamzrod/ecat-drive/internal/ecrt"
	"github.com/tamzrod/ecat-drive/internal/pdo"
	"github.com/tamzrod/ecat-drive/internal/session"
	"github.com/tamzrod/ecat-drive/internal/status"
)

// OptionsFrom maps file config to runtime options.
// Assumes config has already passed Validate and Normalize.
func OptionsFrom(cfg config.Config) (Options, error) {
	gate, err := cia402.ParseModeGate(cfg.Cycle.ModeGate)
	if err != nil {
		return Options{}, fmt.Errorf("drive: %w", err)
	}

	return Options{
		Session: session.Config{
			MasterIndex: cfg.Master.Index,
			Slave: pdo.Identity{
				Alias:       cfg.Slave.Alias,
				Position:    cfg.Slave.Position,
				VendorID:    cfg.Slave.VendorID,
				ProductCode: cfg.Slave.ProductCode,
			},
			PeriodNs:       uint32(cfg.Cycle.PeriodNs),
			SyncShiftNs:    cfg.Cycle.SyncOffsetNs,
			AssignActivate: cfg.Cycle.DCAssignActivate,
		},
		Cycle: cyclic.Config{
			PeriodNs:       cfg.Cycle.PeriodNs,
			ModeGate:       gate,
			ModeWriteCycle: cfg.Cycle.ModeWriteCycle,
			RT: cyclic.RTConfig{
				Enabled:       cfg.Realtime.Enabled,
				Priority:      cfg.Realtime.Priority,
				LockMemory:    cfg.Realtime.LockMemory,
				PrefaultBytes: cfg.Realtime.PrefaultBytes,
			},
		},
	}, nil
}

// Build constructs a controller from file config.
func Build(cfg config.Config, open ecrt.Opener, pub *status.Publisher) (*Controller, error) {
	opts, err := OptionsFrom(cfg)
	if err != nil {
		return nil, err
	}
	return New(opts, open, pub), nil
}
