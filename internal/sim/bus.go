// internal/sim/bus.go
package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/ecat-drive/internal/ecrt"
)

// Step names an initialization step that can be made to fail.
type Step string

const (
	StepRequest  Step = "request"
	StepDomain   Step = "domain"
	StepSlave    Step = "slave"
	StepPDOs     Step = "pdos"
	StepRegister Step = "register"
	StepDC       Step = "dc"
	StepActivate Step = "activate"
	StepData     Step = "data"
)

// DCConfig is the recorded distributed-clock configuration.
type DCConfig struct {
	AssignActivate uint16
	Sync0Cycle     uint32
	Sync0Shift     int32
	Sync1Cycle     uint32
	Sync1Shift     int32
}

// Bus is an in-memory EtherCAT segment with one CiA 402 drive.
// Open satisfies ecrt.Opener.
type Bus struct {
	Drive *Drive

	identity slaveID

	mu       sync.Mutex
	failStep Step
	master   *master
	requests int
	releases int
}

type slaveID struct {
	alias, position       uint16
	vendorID, productCode uint32
}

// NewBus returns a bus whose single slave answers to the given identity.
func NewBus(alias, position uint16, vendorID, productCode uint32, periodNs int64) *Bus {
	return &Bus{
		Drive:    NewDrive(periodNs),
		identity: slaveID{alias, position, vendorID, productCode},
	}
}

// FailStep makes the named initialization step fail on the next Open.
func (b *Bus) FailStep(s Step) {
	b.mu.Lock()
	b.failStep = s
	b.mu.Unlock()
}

func (b *Bus) fails(s Step) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failStep == s
}

// Open acquires the master for index. Only index 0 exists; one holder at a time.
func (b *Bus) Open(index uint) (ecrt.Master, error) {
	if b.fails(StepRequest) {
		return nil, errors.New("sim: master request refused")
	}
	if index != 0 {
		return nil, fmt.Errorf("sim: no master with index %d", index)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.master != nil && !b.master.released {
		return nil, errors.New("sim: master already in use")
	}
	b.master = &master{bus: b}
	b.requests++
	return b.master, nil
}

// Stats returns how often the master was requested and released.
func (b *Bus) Stats() (requests, releases int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests, b.releases
}

// Record returns what the most recent master saw.
func (b *Bus) Record() Record {
	b.mu.Lock()
	m := b.master
	b.mu.Unlock()
	if m == nil {
		return Record{}
	}
	m.recMu.Lock()
	defer m.recMu.Unlock()
	r := m.rec
	r.Controls = append([]uint16(nil), m.rec.Controls...)
	return r
}

// ---- MASTER ----

// controlHistory bounds the recorded control words; older half is dropped.
const controlHistory = 4096

// Record keeps what the master saw, for tests and diagnostics.
type Record struct {
	DC         DCConfig
	Syncs      []ecrt.SyncInfo
	AppTime    uint64
	Frames     int
	Controls   []uint16
	Activated  bool
	Released   bool
	RefSyncs   int
	SlaveSyncs int
}

type master struct {
	bus      *Bus
	domain   *domain
	slave    *slaveConfig
	released bool

	recMu sync.Mutex
	rec   Record
}

func (m *master) CreateDomain() (ecrt.Domain, error) {
	if m.bus.fails(StepDomain) {
		return nil, errors.New("sim: domain allocation failed")
	}
	if m.domain != nil {
		return nil, errors.New("sim: only one domain supported")
	}
	m.domain = &domain{master: m}
	return m.domain, nil
}

func (m *master) SlaveConfig(alias, position uint16, vendorID, productCode uint32) (ecrt.SlaveConfig, error) {
	if m.bus.fails(StepSlave) {
		return nil, errors.New("sim: slave config failed")
	}
	id := slaveID{alias, position, vendorID, productCode}
	if id != m.bus.identity {
		return nil, fmt.Errorf("sim: no slave %d:%d with vendor 0x%08X product 0x%08X",
			alias, position, vendorID, productCode)
	}
	m.slave = &slaveConfig{master: m}
	return m.slave, nil
}

func (m *master) Activate() error {
	if m.bus.fails(StepActivate) {
		return errors.New("sim: activation failed")
	}
	if m.domain == nil || m.slave == nil {
		return errors.New("sim: nothing to activate")
	}
	m.domain.allocate()

	m.recMu.Lock()
	m.rec.Activated = true
	m.recMu.Unlock()
	return nil
}

func (m *master) ApplicationTime(ns uint64) {
	m.recMu.Lock()
	m.rec.AppTime = ns
	m.recMu.Unlock()
}

func (m *master) SyncReferenceClock() {
	m.recMu.Lock()
	m.rec.RefSyncs++
	m.recMu.Unlock()
}

func (m *master) SyncSlaveClocks() {
	m.recMu.Lock()
	m.rec.SlaveSyncs++
	m.recMu.Unlock()
}

// Receive latches the drive inputs; Process copies them into the buffer.
func (m *master) Receive() {
	if m.domain != nil {
		m.domain.latched = m.bus.Drive.Inputs()
	}
}

// Send puts the queued outputs on the wire and lets the drive step.
// Frames sent after Release are lost.
func (m *master) Send() {
	d := m.domain
	if d == nil || !d.queued || d.data == nil || m.isReleased() {
		return
	}
	d.queued = false

	out := d.outputs()
	m.bus.Drive.Step(out)

	m.recMu.Lock()
	m.rec.Frames++
	if len(m.rec.Controls) >= controlHistory {
		n := copy(m.rec.Controls, m.rec.Controls[controlHistory/2:])
		m.rec.Controls = m.rec.Controls[:n]
	}
	m.rec.Controls = append(m.rec.Controls, out.ControlWord)
	m.recMu.Unlock()
}

func (m *master) isReleased() bool {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	return m.released
}

func (m *master) Release() {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	if m.released {
		return
	}
	m.released = true
	m.bus.releases++

	m.recMu.Lock()
	m.rec.Released = true
	m.recMu.Unlock()
}

// ---- SLAVE CONFIG ----

type slaveConfig struct {
	master *master
	syncs  []ecrt.SyncInfo
}

func (s *slaveConfig) ConfigPDOs(syncs []ecrt.SyncInfo) error {
	if s.master.bus.fails(StepPDOs) {
		return errors.New("sim: pdo configuration rejected")
	}
	for _, sm := range syncs {
		if sm.Index > 3 {
			return fmt.Errorf("sim: sync manager %d not present", sm.Index)
		}
	}
	s.syncs = syncs

	s.master.recMu.Lock()
	s.master.rec.Syncs = syncs
	s.master.recMu.Unlock()
	return nil
}

func (s *slaveConfig) ConfigDC(assignActivate uint16, sync0Cycle uint32, sync0Shift int32, sync1Cycle uint32, sync1Shift int32) error {
	if s.master.bus.fails(StepDC) {
		return errors.New("sim: dc configuration rejected")
	}
	s.master.recMu.Lock()
	s.master.rec.DC = DCConfig{assignActivate, sync0Cycle, sync0Shift, sync1Cycle, sync1Shift}
	s.master.recMu.Unlock()
	return nil
}

// ---- DOMAIN ----

type placement struct {
	index    uint16
	subindex uint8
	offset   uint32
	width    uint32
}

type domain struct {
	master  *master
	layout  []placement
	size    uint32
	data    []byte
	queued  bool
	latched Inputs
}

// RegisterPDOEntryList packs outputs first, then inputs, in mapping order.
func (d *domain) RegisterPDOEntryList(regs []ecrt.PDOEntryReg) ([]uint32, error) {
	if d.master.bus.fails(StepRegister) {
		return nil, errors.New("sim: entry registration failed")
	}
	sc := d.master.slave
	if sc == nil || len(sc.syncs) == 0 {
		return nil, errors.New("sim: slave has no pdo configuration")
	}

	d.layout = d.layout[:0]
	d.size = 0
	for _, dir := range []ecrt.Direction{ecrt.DirOutput, ecrt.DirInput} {
		for _, sm := range sc.syncs {
			if sm.Dir != dir {
				continue
			}
			for _, p := range sm.PDOs {
				for _, e := range p.Entries {
					w := uint32(e.BitLen) / 8
					d.layout = append(d.layout, placement{e.Index, e.Subindex, d.size, w})
					d.size += w
				}
			}
		}
	}

	offsets := make([]uint32, 0, len(regs))
	for _, r := range regs {
		id := slaveID{r.Alias, r.Position, r.VendorID, r.ProductCode}
		if id != d.master.bus.identity {
			return nil, fmt.Errorf("sim: registration for unknown slave %d:%d", r.Alias, r.Position)
		}
		off, ok := d.find(r.Index, r.Subindex)
		if !ok {
			return nil, fmt.Errorf("sim: entry 0x%04X:%02X not mapped", r.Index, r.Subindex)
		}
		offsets = append(offsets, off)
	}
	return offsets, nil
}

func (d *domain) find(index uint16, sub uint8) (uint32, bool) {
	for _, p := range d.layout {
		if p.index == index && p.subindex == sub {
			return p.offset, true
		}
	}
	return 0, false
}

func (d *domain) allocate() {
	if d.master.bus.fails(StepData) {
		return
	}
	d.data = make([]byte, d.size)
}

func (d *domain) Data() []byte { return d.data }

// Process copies the latched inputs into the buffer.
func (d *domain) Process() {
	if d.data == nil {
		return
	}
	in := d.latched
	d.put16(0x603F, in.ErrorCode)
	d.put16(0x6041, in.StatusWord)
	d.put8(0x6061, uint8(in.ModeDisplay))
	d.put32(0x6064, uint32(in.ActualPosition))
}

func (d *domain) Queue() { d.queued = true }

func (d *domain) outputs() Outputs {
	return Outputs{
		ControlWord:     d.get16(0x6040),
		TargetPosition:  int32(d.get32(0x607A)),
		TargetVelocity:  int32(d.get32(0x6081)),
		ModeOfOperation: int8(d.get8(0x6060)),
	}
}

func (d *domain) put8(index uint16, v uint8) {
	if off, ok := d.find(index, 0); ok {
		d.data[off] = v
	}
}

func (d *domain) put16(index uint16, v uint16) {
	if off, ok := d.find(index, 0); ok {
		binary.LittleEndian.PutUint16(d.data[off:], v)
	}
}

func (d *domain) put32(index uint16, v uint32) {
	if off, ok := d.find(index, 0); ok {
		binary.LittleEndian.PutUint32(d.data[off:], v)
	}
}

func (d *domain) get8(index uint16) uint8 {
	if off, ok := d.find(index, 0); ok {
		return d.data[off]
	}
	return 0
}

func (d *domain) get16(index uint16) uint16 {
	if off, ok := d.find(index, 0); ok {
		return binary.LittleEndian.Uint16(d.data[off:])
	}
	return 0
}

func (d *domain) get32(index uint16) uint32 {
	if off, ok := d.find(index, 0); ok {
		return binary.LittleEndian.Uint32(d.data[off:])
	}
	return 0
}
