// internal/cyclic/executor.go
package cyclic

import (
	"errors"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tamzrod/ecat-drive/internal/cia402"
	"github.com/tamzrod/ecat-drive/internal/ecrt"
	"github.com/tamzrod/ecat-drive/internal/motion"
	"github.com/tamzrod/ecat-drive/internal/pdo"
	"github.com/tamzrod/ecat-drive/internal/status"
)

const nsPerSecond int64 = 1_000_000_000

// RunState is the executor lifecycle.
type RunState int32

const (
	Stopped RunState = iota
	Running
	Stopping
)

func (s RunState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "invalid"
	}
}

// RTConfig controls the real-time setup of the loop thread.
// Failures are reported as warnings; the loop runs regardless.
type RTConfig struct {
	Enabled       bool
	Priority      int // 0: sched_get_priority_max(SCHED_FIFO)
	LockMemory    bool
	PrefaultBytes int
}

// Config is the immutable runtime config of one executor.
type Config struct {
	PeriodNs       int64
	ModeGate       cia402.ModeGate
	ModeWriteCycle uint64

	// StartDelayNs places the first wake-up relative to now.
	// Zero means the start of the next whole second.
	StartDelayNs int64

	RT RTConfig
}

// Process is the activated bus the executor exchanges data with.
type Process struct {
	Master ecrt.Master
	Domain ecrt.Domain
	Image  *pdo.Image
}

// Stats is observed by the caller side. Never logged from the loop.
type Stats struct {
	State        RunState
	Cycles       uint64
	MaxLatencyNs int64
	Err          error
}

var (
	ErrRunning = errors.New("cyclic: already running")

	msgExecutingPending = status.NewMessage("Target reached - executing pending command")
	msgReadyForCommand  = status.NewMessage("Target position reached, ready for new command")
)

// processImage is the part of *pdo.Image one cycle touches.
type processImage interface {
	U16(pdo.Signal) uint16
	S32(pdo.Signal) int32
	PutU16(pdo.Signal, uint16)
	PutS32(pdo.Signal, int32)
	PutS8(pdo.Signal, int8)
}

// Executor runs the fixed-period process-data cycle.
//
// One goroutine, locked to its OS thread. Per cycle it does DC sync,
// receive, decide, queue and send. No allocation, no logging, no locks
// other than the mailbox copy. The only blocking call is the absolute sleep.
type Executor struct {
	cfg   Config
	proc  Process
	img   processImage
	box   *motion.Mailbox
	pub   *status.Publisher
	clock Clock

	onExit func(error)

	state      atomic.Int32
	stop       atomic.Bool
	cycles     atomic.Uint64
	maxLatency atomic.Int64

	lifeMu sync.Mutex
	done   chan struct{}
	err    error

	// ---- loop-owned ----
	cycle       uint64
	moving      bool
	armed       bool // drive has taken the set-point of the current motion
	modeWritten bool
	published   bool
	lastStatus  uint16
	lastPos     int32
	lastErrCode uint16
}

// New creates an executor with immutable config.
func New(cfg Config, proc Process, box *motion.Mailbox, pub *status.Publisher, clock Clock) (*Executor, error) {
	if cfg.PeriodNs <= 0 {
		return nil, errors.New("cyclic: period must be > 0")
	}
	if proc.Master == nil || proc.Domain == nil || proc.Image == nil {
		return nil, errors.New("cyclic: process data not bound")
	}
	if box == nil || pub == nil {
		return nil, errors.New("cyclic: mailbox and publisher required")
	}
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.ModeWriteCycle == 0 && cfg.ModeGate == cia402.GateCycle {
		cfg.ModeWriteCycle = cia402.DefaultModeWriteCycle
	}
	return &Executor{
		cfg:   cfg,
		proc:  proc,
		img:   proc.Image,
		box:   box,
		pub:   pub,
		clock: clock,
	}, nil
}

// OnExit registers fn to run when the loop ends on its own (timer failure).
// fn runs on its own goroutine, after Wait has been released.
// MUST be set before Start.
func (e *Executor) OnExit(fn func(error)) {
	e.onExit = fn
}

// ---- LIFECYCLE ----

// Start launches the loop goroutine.
func (e *Executor) Start() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if !e.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrRunning
	}

	e.stop.Store(false)
	e.err = nil
	e.cycle = 0
	e.moving = false
	e.armed = false
	e.modeWritten = false
	e.published = false
	e.cycles.Store(0)
	e.maxLatency.Store(0)

	e.done = make(chan struct{})
	go e.loop(e.done)
	return nil
}

// Stop asks the loop to exit. It is seen at the top of the next iteration.
func (e *Executor) Stop() {
	e.stop.Store(true)
	e.state.CompareAndSwap(int32(Running), int32(Stopping))
}

// Wait blocks until the loop goroutine has exited. Returns at once if never started.
func (e *Executor) Wait() {
	e.lifeMu.Lock()
	done := e.done
	e.lifeMu.Unlock()

	if done != nil {
		<-done
	}
}

// State returns the lifecycle state.
func (e *Executor) State() RunState {
	return RunState(e.state.Load())
}

// Stats returns counters of the current or last run.
func (e *Executor) Stats() Stats {
	e.lifeMu.Lock()
	err := e.err
	e.lifeMu.Unlock()

	return Stats{
		State:        e.State(),
		Cycles:       e.cycles.Load(),
		MaxLatencyNs: e.maxLatency.Load(),
		Err:          err,
	}
}

func (e *Executor) firstWake() int64 {
	now := e.clock.Now()
	if e.cfg.StartDelayNs > 0 {
		return now + e.cfg.StartDelayNs
	}
	return (now/nsPerSecond + 1) * nsPerSecond
}

func (e *Executor) loop(done chan struct{}) {
	// The thread exits with this goroutine; it never returns to the pool
	// carrying a real-time policy.
	runtime.LockOSThread()

	var undo func()
	if e.cfg.RT.Enabled {
		undo = setupRealtime(e.cfg.RT)
	}

	wake := e.firstWake()

	var err error
	for !e.stop.Load() {
		if err = e.clock.SleepUntil(wake); err != nil {
			break
		}
		if lat := e.clock.Now() - wake; lat > e.maxLatency.Load() {
			e.maxLatency.Store(lat)
		}

		e.Step()

		wake += e.cfg.PeriodNs
	}

	if undo != nil {
		undo()
	}

	e.lifeMu.Lock()
	e.err = err
	e.lifeMu.Unlock()
	e.state.Store(int32(Stopped))
	close(done)

	if err != nil {
		log.Printf("cyclic: loop stopped (cycles=%d): %v", e.cycles.Load(), err)
		if e.onExit != nil {
			go e.onExit(err)
		}
		return
	}
	log.Printf("cyclic: loop exiting (cycles=%d)", e.cycles.Load())
}

// ---- ONE CYCLE ----

// Step runs one cycle: DC sync, receive, decide, publish, send.
// Called by the loop; callable directly while the loop is not running.
func (e *Executor) Step() {
	m := e.proc.Master
	d := e.proc.Domain
	im := e.img

	m.ApplicationTime(uint64(e.clock.Now()))
	m.SyncReferenceClock()
	m.SyncSlaveClocks()

	m.Receive()
	d.Process()

	sw := im.U16(pdo.StatusWord)
	pos := im.S32(pdo.ActualPosition)
	errCode := im.U16(pdo.ErrorCode)
	ds := cia402.Decode(sw)

	// Bit 10 may still be high from the previous target. It only counts
	// once the drive acknowledged the set-point (bit 12) or dropped bit 10.
	if e.moving && !e.armed && (ds.SetPointAck || !ds.TargetReached) {
		e.armed = true
	}

	// Completion is checked before dispatch, so a motion never completes
	// in the cycle that issued it.
	completed := false
	if ds.TargetReached && e.moving && e.armed {
		next, _ := e.box.Complete()
		e.moving = false
		completed = true

		im.PutU16(pdo.ControlWord, cia402.CtrlEnableOperation)
		if next {
			e.pub.Announce(msgExecutingPending)
		} else {
			e.pub.Announce(msgReadyForCommand)
		}
		e.pub.SetReady(true)
	}

	dec := cia402.Decide(sw, e.cycle, e.cfg.ModeGate, e.cfg.ModeWriteCycle)
	if dec.HasControl {
		im.PutU16(pdo.ControlWord, dec.Control)
	}
	if dec.Dispatch {
		if dec.WriteMode && !e.modeWritten {
			im.PutS8(pdo.ModeOfOperation, cia402.ModeCSP)
			e.modeWritten = true
		}

		// A pending request waits one cycle after a completion so the
		// neutral control word reaches the drive and bit 4 can rise again.
		if !completed && !e.moving {
			if req, ok := e.box.Drain(); ok {
				im.PutS32(pdo.TargetPosition, req.TargetPosition)
				im.PutS32(pdo.TargetVelocity, req.TargetVelocity)
				im.PutU16(pdo.ControlWord, cia402.CtrlSetPointArm)
				im.PutU16(pdo.ControlWord, cia402.CtrlSetPointTrigger)
				e.moving = true
				e.armed = false
				e.pub.SetReady(false)
			}
		}
	}

	e.publish(sw, pos, errCode)

	d.Queue()
	m.Send()

	e.cycle++
	e.cycles.Store(e.cycle)
}

func (e *Executor) publish(sw uint16, pos int32, errCode uint16) {
	first := !e.published
	e.published = true

	if first || pos != e.lastPos {
		e.lastPos = pos
		e.pub.SetActualPosition(pos)
	}
	if first || sw != e.lastStatus {
		e.lastStatus = sw
		e.pub.SetStatusWord(sw)
	}
	if first || errCode != e.lastErrCode {
		e.lastErrCode = errCode
		e.pub.SetErrorCode(errCode)
	}
}
