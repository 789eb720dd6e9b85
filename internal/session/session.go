// internal/session/session.go
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/ecat-drive/internal/cia402"
	"github.com/tamzrod/ecat-drive/internal/ecrt"
	"github.com/tamzrod/ecat-drive/internal/pdo"
)

// Config is the fixed bus and timing setup of one session.
type Config struct {
	MasterIndex uint
	Slave       pdo.Identity

	PeriodNs       uint32
	SyncShiftNs    int32
	AssignActivate uint16
}

// DefaultConfig returns the values the drive is commissioned with.
func DefaultConfig() Config {
	return Config{
		MasterIndex: 0,
		Slave: pdo.Identity{
			Alias:       0,
			Position:    0,
			VendorID:    0x00004321,
			ProductCode: 0x000010BA,
		},
		PeriodNs:       4_000_000,
		SyncShiftNs:    800_000,
		AssignActivate: 0x0300,
	}
}

// ---- INIT ERRORS ----

// Step identifies one initialization step.
type Step int

const (
	StepRequestMaster Step = iota
	StepCreateDomain
	StepSlaveConfig
	StepConfigPDOs
	StepRegisterEntries
	StepConfigDC
	StepActivate
	StepProcessData
)

var reasons = [...]string{
	StepRequestMaster:   "Failed to request master",
	StepCreateDomain:    "Failed to create domain",
	StepSlaveConfig:     "Failed to configure slave",
	StepConfigPDOs:      "Failed to configure PDOs",
	StepRegisterEntries: "Failed to register PDO entries",
	StepConfigDC:        "Failed to configure distributed clock",
	StepActivate:        "Failed to activate master",
	StepProcessData:     "Failed to get domain process data",
}

// Reason is the operator-facing text of a failed step.
func (s Step) Reason() string {
	if s < 0 || int(s) >= len(reasons) {
		return "Initialization failed"
	}
	return reasons[s]
}

// InitError reports the first failed initialization step.
type InitError struct {
	Step   Step
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return "session: " + e.Reason
	}
	return fmt.Sprintf("session: %s: %v", e.Reason, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func initErr(step Step, err error) *InitError {
	return &InitError{Step: step, Reason: step.Reason(), Err: err}
}

var (
	ErrNotActive     = errors.New("session: not active")
	ErrAlreadyActive = errors.New("session: already initialized")
	errNoData        = errors.New("process data buffer is nil")
)

// ---- SESSION ----

// Session owns the master, its domain and the bound process image.
// Nothing is released on a failed Initialize; call Release.
type Session struct {
	cfg  Config
	open ecrt.Opener

	mu       sync.Mutex
	master   ecrt.Master
	domain   ecrt.Domain
	slave    ecrt.SlaveConfig
	image    *pdo.Image
	active   bool
	released bool
}

// New returns an idle session. open is called once by Initialize.
func New(cfg Config, open ecrt.Opener) *Session {
	return &Session{cfg: cfg, open: open}
}

// Initialize runs the bring-up steps in order and stops at the first failure.
func (s *Session) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrAlreadyActive
	}
	if s.master != nil && !s.released {
		return ErrAlreadyActive
	}
	s.released = false

	// (a) master
	m, err := s.open(s.cfg.MasterIndex)
	if err == nil && m == nil {
		err = errors.New("opener returned no master")
	}
	if err != nil {
		return initErr(StepRequestMaster, err)
	}
	s.master = m

	// (b) domain
	d, err := m.CreateDomain()
	if err == nil && d == nil {
		err = errors.New("no domain")
	}
	if err != nil {
		return initErr(StepCreateDomain, err)
	}
	s.domain = d

	// (c) slave configuration
	id := s.cfg.Slave
	sc, err := m.SlaveConfig(id.Alias, id.Position, id.VendorID, id.ProductCode)
	if err == nil && sc == nil {
		err = errors.New("no slave configuration")
	}
	if err != nil {
		return initErr(StepSlaveConfig, err)
	}
	s.slave = sc

	// (d) PDO mapping
	if err := sc.ConfigPDOs(pdo.Syncs()); err != nil {
		return initErr(StepConfigPDOs, err)
	}

	// (e) entry registration
	regs, order := pdo.Registrations(id)
	offsets, err := d.RegisterPDOEntryList(regs)
	if err != nil {
		return initErr(StepRegisterEntries, err)
	}
	table := pdo.NewOffsetTable()
	if err := table.Resolve(order, offsets); err != nil {
		return initErr(StepRegisterEntries, err)
	}

	// (f) distributed clock
	if err := sc.ConfigDC(s.cfg.AssignActivate, s.cfg.PeriodNs, s.cfg.SyncShiftNs, 0, 0); err != nil {
		return initErr(StepConfigDC, err)
	}

	// (g) activate
	if err := m.Activate(); err != nil {
		return initErr(StepActivate, err)
	}

	// (h) process data
	buf := d.Data()
	if buf == nil {
		return initErr(StepProcessData, errNoData)
	}
	im, err := pdo.Bind(buf, table)
	if err != nil {
		return initErr(StepProcessData, err)
	}
	s.image = im
	s.active = true

	return nil
}

// Image returns the bound process image, or nil before a successful Initialize.
func (s *Session) Image() *pdo.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Master returns the acquired master, or nil.
func (s *Session) Master() ecrt.Master {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.master
}

// Domain returns the created domain, or nil.
func (s *Session) Domain() ecrt.Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain
}

// Active reports whether Initialize succeeded and Release has not run.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SafeStop sends one frame with the disable-operation control word.
// MUST NOT be called while the cyclic executor runs.
func (s *Session) SafeStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrNotActive
	}
	s.image.PutU16(pdo.ControlWord, cia402.CtrlSafeStop)
	s.domain.Queue()
	s.master.Send()
	return nil
}

// Release gives the master back. Only the first call has an effect.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released || s.master == nil {
		s.active = false
		return
	}
	s.master.Release()
	s.released = true
	s.active = false
	s.image = nil
	s.domain = nil
	s.slave = nil
}
