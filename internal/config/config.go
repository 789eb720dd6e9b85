// internal/config/config.go
package config

type Config struct {
	Master   MasterConfig   `yaml:"master"`
	Slave    SlaveConfig    `yaml:"slave"`
	Cycle    CycleConfig    `yaml:"cycle"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Feed     FeedConfig     `yaml:"feed"`

	// Drive status block mirror (optional, opt-in)
	StatusMemory *StatusMemoryConfig `yaml:"status_memory"`
}

// ---- BUS ----

type MasterConfig struct {
	Index uint `yaml:"index"`
}

type SlaveConfig struct {
	Alias       uint16 `yaml:"alias"`
	Position    uint16 `yaml:"position"`
	VendorID    uint32 `yaml:"vendor_id"`
	ProductCode uint32 `yaml:"product_code"`
}

// ---- TIMING ----

type CycleConfig struct {
	PeriodNs         int64  `yaml:"period_ns"`
	SyncOffsetNs     int32  `yaml:"sync_offset_ns"`
	DCAssignActivate uint16 `yaml:"dc_assign_activate"`
	ModeGate         string `yaml:"mode_gate"`        // cycle | first_enabled
	ModeWriteCycle   uint64 `yaml:"mode_write_cycle"` // used by mode_gate=cycle
}

type RealtimeConfig struct {
	Enabled       bool `yaml:"enabled"`
	Priority      int  `yaml:"priority"` // 0 = SCHED_FIFO max
	LockMemory    bool `yaml:"lock_memory"`
	PrefaultBytes int  `yaml:"prefault_bytes"`
}

// ---- STATUS MEMORY ----

type StatusMemoryConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Transport  string `yaml:"transport"` // modbus | ingest
	UnitID     uint8  `yaml:"unit_id"`
	BaseSlot   uint16 `yaml:"base_slot"`
	DeviceName string `yaml:"device_name"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// ---- FEED ----

type FeedConfig struct {
	Listen string `yaml:"listen"` // empty = disabled
}

const (
	TransportModbus = "modbus"
	TransportIngest = "ingest"
)

// Default returns the commissioned setup: one drive at 0:0, 4 ms cycle,
// SYNC0 shifted by 800 us, CSP written at cycle 10.
func Default() Config {
	return Config{
		Master: MasterConfig{Index: 0},
		Slave: SlaveConfig{
			Alias:       0,
			Position:    0,
			VendorID:    0x00004321,
			ProductCode: 0x000010BA,
		},
		Cycle: CycleConfig{
			PeriodNs:         4_000_000,
			SyncOffsetNs:     800_000,
			DCAssignActivate: 0x0300,
			ModeGate:         "cycle",
			ModeWriteCycle:   10,
		},
		Realtime: RealtimeConfig{
			Enabled:       true,
			Priority:      0,
			LockMemory:    true,
			PrefaultBytes: 8192,
		},
	}
}
