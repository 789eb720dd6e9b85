// internal/sim/drive.go
package sim

import (
	"sync"

	"github.com/tamzrod/ecat-drive/internal/cia402"
)

const (
	swRemote        uint16 = 1 << 9
	swTargetReached uint16 = 1 << 10
	swSetPointAck   uint16 = 1 << 12

	cwNewSetPoint uint16 = 1 << 4
	cwFaultReset  uint16 = 1 << 7
)

// Outputs is what the master writes to the drive each cycle.
type Outputs struct {
	ControlWord     uint16
	TargetPosition  int32
	TargetVelocity  int32
	ModeOfOperation int8
}

// Inputs is what the drive reports back.
type Inputs struct {
	ErrorCode      uint16
	StatusWord     uint16
	ModeDisplay    int8
	ActualPosition int32
}

// Drive is a CiA 402 servo model. It advances one period per Step.
type Drive struct {
	mu sync.Mutex

	periodNs int64

	state    cia402.State
	fault    bool
	reached  bool
	position int32
	target   int32
	velocity int32
	mode     int8
	errCode  uint16

	lastCW uint16
	moving bool
	ack    bool // set-point acknowledge, held while bit 4 stays high
}

// NewDrive returns a drive in switch-on disabled, at rest.
func NewDrive(periodNs int64) *Drive {
	if periodNs <= 0 {
		periodNs = 4_000_000
	}
	return &Drive{
		periodNs: periodNs,
		state:    cia402.StateSwitchOnDisabled,
		reached:  true,
	}
}

// Step applies one output frame and advances the model by one period.
func (d *Drive) Step(out Outputs) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cw := out.ControlWord
	d.mode = out.ModeOfOperation

	if d.fault {
		if cw&cwFaultReset != 0 && d.lastCW&cwFaultReset == 0 {
			d.fault = false
			d.errCode = 0
			d.state = cia402.StateSwitchOnDisabled
		}
		d.lastCW = cw
		return
	}

	d.transition(cw)

	if d.state == cia402.StateOperationEnabled {
		if cw&cwNewSetPoint != 0 && d.lastCW&cwNewSetPoint == 0 {
			d.target = out.TargetPosition
			d.velocity = out.TargetVelocity
			d.moving = true
			d.reached = false
			d.ack = true
		} else if cw&cwNewSetPoint == 0 {
			d.ack = false
		}
		d.advance()
	} else {
		d.moving = false
		d.ack = false
	}

	d.lastCW = cw
}

// transition follows the PDS FSA for the command bits (7,3,2,1,0).
func (d *Drive) transition(cw uint16) {
	switch {
	case cw&0x0002 == 0:
		// disable voltage
		d.state = cia402.StateSwitchOnDisabled
	case cw&0x0006 == 0x0002:
		// quick stop
		d.state = cia402.StateSwitchOnDisabled
	case cw&0x0087 == 0x0006:
		// shutdown
		d.state = cia402.StateReadyToSwitchOn
	case cw&0x008F == 0x0007:
		// switch on / disable operation
		switch d.state {
		case cia402.StateReadyToSwitchOn, cia402.StateOperationEnabled:
			d.state = cia402.StateSwitchedOn
		}
	case cw&0x008F == 0x000F:
		// enable operation
		switch d.state {
		case cia402.StateReadyToSwitchOn:
			d.state = cia402.StateSwitchedOn
		case cia402.StateSwitchedOn:
			d.state = cia402.StateOperationEnabled
		}
	}
}

func (d *Drive) advance() {
	if !d.moving {
		return
	}

	step := int64(d.velocity)
	if step < 0 {
		step = -step
	}
	step = step * d.periodNs / 1_000_000_000
	if step < 1 {
		step = 1
	}

	delta := int64(d.target) - int64(d.position)
	switch {
	case delta > step:
		d.position += int32(step)
	case delta < -step:
		d.position -= int32(step)
	default:
		d.position = d.target
	}

	if d.position == d.target {
		d.moving = false
		d.reached = true
	}
}

// Inputs returns the current feedback.
func (d *Drive) Inputs() Inputs {
	d.mu.Lock()
	defer d.mu.Unlock()

	sw := uint16(d.state) | swRemote
	if d.fault {
		sw = 0x0008 | swRemote
	}
	if d.reached {
		sw |= swTargetReached
	}
	if d.ack && !d.fault {
		sw |= swSetPointAck
	}
	return Inputs{
		ErrorCode:      d.errCode,
		StatusWord:     sw,
		ModeDisplay:    d.mode,
		ActualPosition: d.position,
	}
}

// InjectFault latches a fault with a raw error code.
func (d *Drive) InjectFault(code uint16) {
	d.mu.Lock()
	d.fault = true
	d.errCode = code
	d.moving = false
	d.mu.Unlock()
}

// SetPosition places the drive at p, at rest.
func (d *Drive) SetPosition(p int32) {
	d.mu.Lock()
	d.position = p
	d.target = p
	d.moving = false
	d.mu.Unlock()
}

// State returns the power state.
func (d *Drive) State() cia402.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
