// internal/pdo/image_test.go
package pdo

import (
	"testing"

	"github.com/tamzrod/ecat-drive/internal/ecrt"
)

// packed layout: outputs then inputs, mapping order
func packedTable() (OffsetTable, int) {
	t := NewOffsetTable()
	off := uint32(0)
	for _, e := range RxEntries {
		t[e.Signal] = off
		off += uint32(e.Width())
	}
	for _, e := range TxEntries {
		t[e.Signal] = off
		off += uint32(e.Width())
	}
	return t, int(off)
}

func TestBind_RejectsUnresolved(t *testing.T) {
	tbl, size := packedTable()
	tbl[ModeDisplay] = Unresolved

	if _, err := Bind(make([]byte, size), tbl); err == nil {
		t.Fatalf("expected unresolved offset error, got nil")
	}
}

func TestBind_RejectsOutOfBounds(t *testing.T) {
	tbl, size := packedTable()

	// actual position is the last 32-bit entry; one byte short must fail
	if _, err := Bind(make([]byte, size-1), tbl); err == nil {
		t.Fatalf("expected bounds error, got nil")
	}
}

func TestImage_LittleEndianAccessors(t *testing.T) {
	tbl, size := packedTable()
	buf := make([]byte, size)

	im, err := Bind(buf, tbl)
	if err != nil {
		t.Fatalf("Bind() err=%v", err)
	}

	im.PutU16(ControlWord, 0x005F)
	im.PutS32(TargetPosition, -2)
	im.PutU8(ModeOfOperation, 1)

	if buf[0] != 0x5F || buf[1] != 0x00 {
		t.Fatalf("control word bytes: got=% X want=5F 00", buf[0:2])
	}
	if got := im.S32(TargetPosition); got != -2 {
		t.Fatalf("target position: got=%d want=-2", got)
	}
	if buf[tbl[TargetPosition]] != 0xFE || buf[tbl[TargetPosition]+3] != 0xFF {
		t.Fatalf("target position not little-endian: % X", buf[2:6])
	}
	if got := im.U8(ModeOfOperation); got != 1 {
		t.Fatalf("mode: got=%d want=1", got)
	}
}

func TestResolve_LengthMismatch(t *testing.T) {
	tbl := NewOffsetTable()
	if err := tbl.Resolve([]Signal{ControlWord, StatusWord}, []uint32{0}); err == nil {
		t.Fatalf("expected mismatch error, got nil")
	}
}

func TestRegistrations_CoverEverySignal(t *testing.T) {
	regs, order := Registrations(Identity{VendorID: 0x4321, ProductCode: 0x10BA})
	if len(regs) != int(NumSignals) || len(order) != int(NumSignals) {
		t.Fatalf("expected %d registrations, got %d", NumSignals, len(regs))
	}

	seen := map[Signal]bool{}
	for i, s := range order {
		e, ok := EntryFor(s)
		if !ok {
			t.Fatalf("signal %s has no entry", s)
		}
		if regs[i].Index != e.Index || regs[i].VendorID != 0x4321 {
			t.Fatalf("registration %d mismatch: %+v", i, regs[i])
		}
		seen[s] = true
	}
	if len(seen) != int(NumSignals) {
		t.Fatalf("duplicate signals in registration order")
	}
}

func TestSyncs_WatchdogOnlyOnRxPDO(t *testing.T) {
	for _, sm := range Syncs() {
		wantEnabled := sm.Index == 2
		if (sm.Watchdog == ecrt.WatchdogEnable) != wantEnabled {
			t.Fatalf("sm%d watchdog=%d", sm.Index, sm.Watchdog)
		}
	}
}
