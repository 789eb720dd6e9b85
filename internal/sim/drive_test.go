// internal/sim/drive_test.go
package sim

import (
	"testing"

	"github.com/tamzrod/ecat-drive/internal/cia402"
)

func enabledDrive(t *testing.T) *Drive {
	t.Helper()
	d := NewDrive(4_000_000)
	for _, cw := range []uint16{0x06, 0x07, 0x0F} {
		d.Step(Outputs{ControlWord: cw})
	}
	if d.State() != cia402.StateOperationEnabled {
		t.Fatalf("drive not enabled: %s", d.State())
	}
	return d
}

func TestDrive_SetPointEdgeStartsMotion(t *testing.T) {
	d := enabledDrive(t)

	// 250 counts/s at 4 ms: one count per step
	d.Step(Outputs{ControlWord: 0x5F, TargetPosition: 3, TargetVelocity: 250})
	in := d.Inputs()
	if in.StatusWord&swTargetReached != 0 {
		t.Fatalf("target reached right after set-point: %#04x", in.StatusWord)
	}
	if in.ActualPosition != 1 {
		t.Fatalf("position after first step: %d", in.ActualPosition)
	}

	d.Step(Outputs{ControlWord: 0x5F, TargetPosition: 3, TargetVelocity: 250})
	d.Step(Outputs{ControlWord: 0x5F, TargetPosition: 3, TargetVelocity: 250})
	in = d.Inputs()
	if in.ActualPosition != 3 || in.StatusWord&swTargetReached == 0 {
		t.Fatalf("expected arrival at 3 with bit 10, got pos=%d sw=%#04x", in.ActualPosition, in.StatusWord)
	}
}

func TestDrive_SetPointAcknowledge(t *testing.T) {
	d := enabledDrive(t)
	if d.Inputs().StatusWord&swSetPointAck != 0 {
		t.Fatalf("ack before any set-point")
	}

	d.Step(Outputs{ControlWord: 0x4F, TargetPosition: 100, TargetVelocity: 250})
	if d.Inputs().StatusWord&swSetPointAck != 0 {
		t.Fatalf("ack without bit 4")
	}

	d.Step(Outputs{ControlWord: 0x5F, TargetPosition: 100, TargetVelocity: 250})
	if d.Inputs().StatusWord&swSetPointAck == 0 {
		t.Fatalf("set-point not acknowledged")
	}
	d.Step(Outputs{ControlWord: 0x5F, TargetPosition: 100, TargetVelocity: 250})
	if d.Inputs().StatusWord&swSetPointAck == 0 {
		t.Fatalf("ack dropped while bit 4 held")
	}

	d.Step(Outputs{ControlWord: 0x0F})
	if d.Inputs().StatusWord&swSetPointAck != 0 {
		t.Fatalf("ack kept after bit 4 fell")
	}
}

func TestDrive_HeldBitDoesNotRetrigger(t *testing.T) {
	d := enabledDrive(t)

	d.Step(Outputs{ControlWord: 0x5F, TargetPosition: 1, TargetVelocity: 1000})
	d.Step(Outputs{ControlWord: 0x5F, TargetPosition: 50, TargetVelocity: 1000})
	if got := d.Inputs().ActualPosition; got != 1 {
		t.Fatalf("held new set-point bit must not latch a new target, pos=%d", got)
	}
}

func TestDrive_DisableOperation(t *testing.T) {
	d := enabledDrive(t)
	d.Step(Outputs{ControlWord: cia402.CtrlSafeStop})
	if d.State() != cia402.StateSwitchedOn {
		t.Fatalf("expected switched on after 0x0007, got %s", d.State())
	}
}

func TestDrive_FaultAndReset(t *testing.T) {
	d := enabledDrive(t)
	d.InjectFault(0x7500)

	in := d.Inputs()
	if in.StatusWord&0x0008 == 0 || in.ErrorCode != 0x7500 {
		t.Fatalf("fault not reported: sw=%#04x err=%#04x", in.StatusWord, in.ErrorCode)
	}

	d.Step(Outputs{ControlWord: 0x80})
	if d.State() != cia402.StateSwitchOnDisabled || d.Inputs().ErrorCode != 0 {
		t.Fatalf("fault reset: state=%s", d.State())
	}
}

func TestDrive_ModeDisplayMirrorsMode(t *testing.T) {
	d := enabledDrive(t)
	d.Step(Outputs{ControlWord: 0x0F, ModeOfOperation: cia402.ModeCSP})
	if got := d.Inputs().ModeDisplay; got != cia402.ModeCSP {
		t.Fatalf("mode display: %d", got)
	}
}
