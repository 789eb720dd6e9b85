// internal/sim/bus_test.go
package sim

import (
	"encoding/binary"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/tamzrod/ecat-drive/internal/cia402"
	"github.com/tamzrod/ecat-drive/internal/ecrt"
	"github.com/tamzrod/ecat-drive/internal/pdo"
)

const (
	testVendor  = 0x00004321
	testProduct = 0x000010BA
)

func newTestBus() *Bus {
	return NewBus(0, 0, testVendor, testProduct, 4_000_000)
}

func activate(t *testing.T, b *Bus) (ecrt.Master, ecrt.Domain, map[pdo.Signal]uint32) {
	t.Helper()

	m, err := b.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d, err := m.CreateDomain()
	if err != nil {
		t.Fatalf("domain: %v", err)
	}
	sc, err := m.SlaveConfig(0, 0, testVendor, testProduct)
	if err != nil {
		t.Fatalf("slave config: %v", err)
	}
	if err := sc.ConfigPDOs(pdo.Syncs()); err != nil {
		t.Fatalf("pdos: %v", err)
	}
	regs, order := pdo.Registrations(pdo.Identity{VendorID: testVendor, ProductCode: testProduct})
	offs, err := d.RegisterPDOEntryList(regs)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}

	out := make(map[pdo.Signal]uint32, len(order))
	for i, s := range order {
		out[s] = offs[i]
	}
	return m, d, out
}

func TestBus_PackedLayout(t *testing.T) {
	_, d, offs := activate(t, newTestBus())

	want := map[pdo.Signal]uint32{
		pdo.ControlWord:     0,
		pdo.TargetPosition:  2,
		pdo.TargetVelocity:  6,
		pdo.ModeOfOperation: 10,
		pdo.ErrorCode:       11,
		pdo.StatusWord:      13,
		pdo.ModeDisplay:     15,
		pdo.ActualPosition:  16,
	}
	for s, w := range want {
		if offs[s] != w {
			t.Fatalf("%s: offset=%d want=%d", s, offs[s], w)
		}
	}
	if n := len(d.Data()); n != 20 {
		t.Fatalf("domain size: got=%d want=20", n)
	}
}

func TestBus_EnableSequence(t *testing.T) {
	b := newTestBus()
	m, d, offs := activate(t, b)
	buf := d.Data()

	cycle := func(cw uint16) uint16 {
		m.Receive()
		d.Process()
		sw := binary.LittleEndian.Uint16(buf[offs[pdo.StatusWord]:])
		binary.LittleEndian.PutUint16(buf[offs[pdo.ControlWord]:], cw)
		d.Queue()
		m.Send()
		return sw
	}

	steps := []struct {
		write uint16
		seen  cia402.State
	}{
		{cia402.CtrlShutdown, cia402.StateSwitchOnDisabled},
		{cia402.CtrlSwitchOn, cia402.StateReadyToSwitchOn},
		{cia402.CtrlEnableOperation, cia402.StateSwitchedOn},
		{cia402.CtrlEnableOperation, cia402.StateOperationEnabled},
	}
	for i, st := range steps {
		sw := cycle(st.write)
		if got := cia402.State(sw & cia402.StatusMask); got != st.seen {
			t.Fatalf("cycle %d: state=%s want=%s (sw=%#04x)", i, got, st.seen, sw)
		}
	}

	rec := b.Record()
	if rec.Frames != 4 {
		t.Fatalf("frames: got=%d want=4\n%s", rec.Frames, spew.Sdump(rec))
	}
	if len(rec.Controls) != 4 || rec.Controls[0] != cia402.CtrlShutdown {
		t.Fatalf("control history: %v", rec.Controls)
	}
}

func TestBus_SendWithoutQueueIsNoop(t *testing.T) {
	b := newTestBus()
	m, _, _ := activate(t, b)

	m.Send()
	if got := b.Record().Frames; got != 0 {
		t.Fatalf("frames without queue: got=%d", got)
	}
}

func TestBus_IdentityMismatch(t *testing.T) {
	m, err := newTestBus().Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.SlaveConfig(0, 0, 0x1111, testProduct); err == nil {
		t.Fatalf("expected vendor mismatch to fail")
	}
	if _, err := m.SlaveConfig(0, 1, testVendor, testProduct); err == nil {
		t.Fatalf("expected position mismatch to fail")
	}
}

func TestBus_OnlyIndexZero(t *testing.T) {
	if _, err := newTestBus().Open(1); err == nil {
		t.Fatalf("expected index 1 to fail")
	}
}

func TestBus_SingleHolderAndIdempotentRelease(t *testing.T) {
	b := newTestBus()
	m, err := b.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := b.Open(0); err == nil {
		t.Fatalf("expected second open to fail while held")
	}

	m.Release()
	m.Release()
	if req, rel := b.Stats(); req != 1 || rel != 1 {
		t.Fatalf("stats: requests=%d releases=%d", req, rel)
	}
	if _, err := b.Open(0); err != nil {
		t.Fatalf("reopen after release: %v", err)
	}
}

func TestBus_FailData(t *testing.T) {
	b := newTestBus()
	b.FailStep(StepData)
	_, d, _ := activate(t, b)
	if d.Data() != nil {
		t.Fatalf("expected nil process data")
	}
}

func TestBus_RecordsDC(t *testing.T) {
	b := newTestBus()
	m, err := b.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sc, err := m.SlaveConfig(0, 0, testVendor, testProduct)
	if err != nil {
		t.Fatalf("slave config: %v", err)
	}
	if err := sc.ConfigDC(0x0300, 4_000_000, 800_000, 0, 0); err != nil {
		t.Fatalf("dc: %v", err)
	}
	m.ApplicationTime(12345)

	rec := b.Record()
	if rec.DC.AssignActivate != 0x0300 || rec.DC.Sync0Cycle != 4_000_000 || rec.DC.Sync0Shift != 800_000 {
		t.Fatalf("dc record:\n%s", spew.Sdump(rec.DC))
	}
	if rec.AppTime != 12345 {
		t.Fatalf("app time: %d", rec.AppTime)
	}
}
