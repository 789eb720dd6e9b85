// internal/pdo/map.go
package pdo

import "github.com/tamzrod/ecat-drive/internal/ecrt"

// Signal is a logical process-data item of the drive.
type Signal int

const (
	ControlWord Signal = iota
	StatusWord
	TargetPosition
	TargetVelocity
	ModeOfOperation
	ModeDisplay
	ActualPosition
	ErrorCode

	NumSignals
)

var signalNames = [NumSignals]string{
	ControlWord:     "control_word",
	StatusWord:      "status_word",
	TargetPosition:  "target_position",
	TargetVelocity:  "target_velocity",
	ModeOfOperation: "mode_of_operation",
	ModeDisplay:     "mode_display",
	ActualPosition:  "actual_position",
	ErrorCode:       "error_code",
}

func (s Signal) String() string {
	if s < 0 || s >= NumSignals {
		return "invalid"
	}
	return signalNames[s]
}

// Entry binds a signal to its object dictionary entry.
type Entry struct {
	Signal   Signal
	Index    uint16
	Subindex uint8
	BitLen   uint8
}

// Width returns the entry size in bytes.
func (e Entry) Width() int { return int(e.BitLen) / 8 }

// ---- CiA 402 MAPPING (LOCKED) ----

const (
	RxPDOIndex uint16 = 0x1600
	TxPDOIndex uint16 = 0x1A00
)

// RxEntries are written by the master (RxPDO 0x1600).
var RxEntries = []Entry{
	{ControlWord, 0x6040, 0x00, 16},
	{TargetPosition, 0x607A, 0x00, 32},
	{TargetVelocity, 0x6081, 0x00, 32},
	{ModeOfOperation, 0x6060, 0x00, 8},
}

// TxEntries are written by the drive (TxPDO 0x1A00).
var TxEntries = []Entry{
	{ErrorCode, 0x603F, 0x00, 16},
	{StatusWord, 0x6041, 0x00, 16},
	{ModeDisplay, 0x6061, 0x00, 8},
	{ActualPosition, 0x6064, 0x00, 32},
}

// Registration order of the domain entries.
var registrationOrder = [NumSignals]Signal{
	ControlWord,
	StatusWord,
	TargetPosition,
	TargetVelocity,
	ModeOfOperation,
	ModeDisplay,
	ActualPosition,
	ErrorCode,
}

// EntryFor returns the mapping entry of a signal.
func EntryFor(s Signal) (Entry, bool) {
	for _, e := range RxEntries {
		if e.Signal == s {
			return e, true
		}
	}
	for _, e := range TxEntries {
		if e.Signal == s {
			return e, true
		}
	}
	return Entry{}, false
}

func infos(entries []Entry) []ecrt.PDOEntryInfo {
	out := make([]ecrt.PDOEntryInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ecrt.PDOEntryInfo{Index: e.Index, Subindex: e.Subindex, BitLen: e.BitLen})
	}
	return out
}

// Syncs returns the sync manager layout of the drive.
// Watchdog is enabled only on the output sync manager carrying the RxPDO.
func Syncs() []ecrt.SyncInfo {
	return []ecrt.SyncInfo{
		{Index: 0, Dir: ecrt.DirOutput, Watchdog: ecrt.WatchdogDisable},
		{Index: 1, Dir: ecrt.DirInput, Watchdog: ecrt.WatchdogDisable},
		{
			Index:    2,
			Dir:      ecrt.DirOutput,
			PDOs:     []ecrt.PDOInfo{{Index: RxPDOIndex, Entries: infos(RxEntries)}},
			Watchdog: ecrt.WatchdogEnable,
		},
		{
			Index:    3,
			Dir:      ecrt.DirInput,
			PDOs:     []ecrt.PDOInfo{{Index: TxPDOIndex, Entries: infos(TxEntries)}},
			Watchdog: ecrt.WatchdogDisable,
		},
	}
}

// Identity addresses one slave on the bus.
type Identity struct {
	Alias       uint16
	Position    uint16
	VendorID    uint32
	ProductCode uint32
}

// Registrations builds the domain registration list and the signal order it follows.
func Registrations(id Identity) ([]ecrt.PDOEntryReg, []Signal) {
	regs := make([]ecrt.PDOEntryReg, 0, NumSignals)
	order := make([]Signal, 0, NumSignals)
	for _, s := range registrationOrder {
		e, _ := EntryFor(s)
		regs = append(regs, ecrt.PDOEntryReg{
			Alias:       id.Alias,
			Position:    id.Position,
			VendorID:    id.VendorID,
			ProductCode: id.ProductCode,
			Index:       e.Index,
			Subindex:    e.Subindex,
		})
		order = append(order, s)
	}
	return regs, order
}
