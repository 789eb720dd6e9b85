// internal/ecrt/ecrt.go
package ecrt

// Narrow master/domain contract consumed by the drive engine.
// Frame transmission, slave discovery and PDO wire encoding live behind it.

// Direction is the sync manager data direction, seen from the master.
type Direction uint8

const (
	DirOutput Direction = iota + 1 // master -> slave (RxPDO)
	DirInput                       // slave -> master (TxPDO)
)

func (d Direction) String() string {
	switch d {
	case DirOutput:
		return "output"
	case DirInput:
		return "input"
	default:
		return "invalid"
	}
}

// Watchdog is the sync manager watchdog mode.
type Watchdog uint8

const (
	WatchdogDefault Watchdog = iota
	WatchdogEnable
	WatchdogDisable
)

// ---- PDO CONFIGURATION ----

// PDOEntryInfo is one mapped object dictionary entry.
type PDOEntryInfo struct {
	Index    uint16
	Subindex uint8
	BitLen   uint8
}

// PDOInfo is one PDO with its entry list.
type PDOInfo struct {
	Index   uint16
	Entries []PDOEntryInfo
}

// SyncInfo describes one sync manager.
type SyncInfo struct {
	Index    uint8
	Dir      Direction
	PDOs     []PDOInfo
	Watchdog Watchdog
}

// PDOEntryReg asks the domain to place one entry of one slave.
type PDOEntryReg struct {
	Alias       uint16
	Position    uint16
	VendorID    uint32
	ProductCode uint32
	Index       uint16
	Subindex    uint8
}

// ---- MASTER / DOMAIN / SLAVE CONFIG ----

// Opener acquires the master for a bus index.
type Opener func(index uint) (Master, error)

// Master is an acquired fieldbus master.
// The per-cycle calls MUST only be made from the real-time goroutine after Activate.
type Master interface {
	CreateDomain() (Domain, error)
	SlaveConfig(alias, position uint16, vendorID, productCode uint32) (SlaveConfig, error)
	Activate() error

	ApplicationTime(ns uint64)
	SyncReferenceClock()
	SyncSlaveClocks()
	Receive()
	Send()

	// Release invalidates the master and everything it owns.
	Release()
}

// Domain is a group of PDO entries exchanged together each cycle.
type Domain interface {
	// RegisterPDOEntryList returns one byte offset per registration, in order.
	RegisterPDOEntryList(regs []PDOEntryReg) ([]uint32, error)

	// Data returns the process-data buffer. Nil before activation.
	Data() []byte

	Process()
	Queue()
}

// SlaveConfig is the configuration handle of one slave.
type SlaveConfig interface {
	ConfigPDOs(syncs []SyncInfo) error
	ConfigDC(assignActivate uint16, sync0Cycle uint32, sync0Shift int32, sync1Cycle uint32, sync1Shift int32) error
}
