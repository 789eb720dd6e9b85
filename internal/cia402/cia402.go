// internal/cia402/cia402.go
package cia402

import "fmt"

// ---- STATUS WORD ----

// StatusMask selects the power-state bits of the status word.
const StatusMask uint16 = 0x006F

const (
	bitFault         uint16 = 1 << 3
	bitTargetReached uint16 = 1 << 10
	bitSetPointAck   uint16 = 1 << 12
)

// State is a masked status word.
type State uint16

const (
	StateSwitchOnDisabled State = 0x0040
	StateReadyToSwitchOn  State = 0x0021
	StateSwitchedOn       State = 0x0023
	StateOperationEnabled State = 0x0027
)

func (s State) String() string {
	switch s {
	case StateSwitchOnDisabled:
		return "switch-on disabled"
	case StateReadyToSwitchOn:
		return "ready to switch on"
	case StateSwitchedOn:
		return "switched on"
	case StateOperationEnabled:
		return "operation enabled"
	default:
		return fmt.Sprintf("unhandled(0x%04X)", uint16(s))
	}
}

// ---- CONTROL WORD ----

const (
	CtrlShutdown        uint16 = 0x0006
	CtrlSwitchOn        uint16 = 0x0007
	CtrlEnableOperation uint16 = 0x000F

	// New set-point edge: arm with bit 4 clear, then raise bit 4. Halt stays clear.
	CtrlSetPointArm     uint16 = 0x004F
	CtrlSetPointTrigger uint16 = 0x005F

	// CtrlSafeStop is the last frame written before the master is released.
	CtrlSafeStop uint16 = 0x0007
)

// ---- MODE OF OPERATION ----

// ModeCSP is Cyclic Synchronous Position.
const ModeCSP int8 = 1

// DefaultModeWriteCycle is the cycle index at which GateCycle writes the mode.
const DefaultModeWriteCycle uint64 = 10

// ModeGate selects when the mode of operation is written.
type ModeGate uint8

const (
	// GateCycle writes at a fixed cycle index while operation is enabled.
	GateCycle ModeGate = iota
	// GateFirstEnabled writes on the first operation-enabled cycle.
	GateFirstEnabled
)

// ParseModeGate maps the config spelling to a gate.
func ParseModeGate(s string) (ModeGate, error) {
	switch s {
	case "", "cycle":
		return GateCycle, nil
	case "first_enabled":
		return GateFirstEnabled, nil
	default:
		return GateCycle, fmt.Errorf("cia402: unknown mode gate %q", s)
	}
}

// ---- DECODE / DECIDE ----

// DriveStatus is decoded from one status word. Recomputed every cycle.
type DriveStatus struct {
	Raw           uint16
	State         State
	TargetReached bool
	SetPointAck   bool
	Fault         bool
}

// Decode splits a status word into its flags.
func Decode(status uint16) DriveStatus {
	return DriveStatus{
		Raw:           status,
		State:         State(status & StatusMask),
		TargetReached: status&bitTargetReached != 0,
		SetPointAck:   status&bitSetPointAck != 0,
		Fault:         status&bitFault != 0,
	}
}

// Decision is what one cycle should write.
type Decision struct {
	State      State
	Control    uint16
	HasControl bool

	// Dispatch is true in operation enabled; motion may be issued.
	Dispatch bool

	// WriteMode requests the mode-of-operation write this cycle.
	// The caller latches it so it happens at most once.
	WriteMode bool
}

// Decide maps a status word to the control action of the enable sequence.
// Pure: same inputs, same decision. Unhandled states write nothing.
func Decide(status uint16, cycle uint64, gate ModeGate, modeCycle uint64) Decision {
	d := Decision{State: State(status & StatusMask)}

	switch d.State {
	case StateSwitchOnDisabled:
		d.Control, d.HasControl = CtrlShutdown, true
	case StateReadyToSwitchOn:
		d.Control, d.HasControl = CtrlSwitchOn, true
	case StateSwitchedOn:
		d.Control, d.HasControl = CtrlEnableOperation, true
	case StateOperationEnabled:
		d.Dispatch = true
		switch gate {
		case GateFirstEnabled:
			d.WriteMode = true
		default:
			d.WriteMode = cycle == modeCycle
		}
	}

	return d
}

// FormatStatusWord renders a status word as 0x plus 4 uppercase hex digits.
func FormatStatusWord(v uint16) string {
	return fmt.Sprintf("0x%04X", v)
}
