// internal/drive/controller.go
package drive

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/tamzrod/ecat-drive/internal/cyclic"
	"github.com/tamzrod/ecat-drive/internal/ecrt"
	"github.com/tamzrod/ecat-drive/internal/motion"
	"github.com/tamzrod/ecat-drive/internal/session"
	"github.com/tamzrod/ecat-drive/internal/status"
)

var (
	ErrNotConnected       = errors.New("drive: EtherCAT not connected")
	ErrAlreadyInitialized = errors.New("drive: already initialized")
)

// Options is the runtime setup of one controller.
type Options struct {
	Session session.Config
	Cycle   cyclic.Config

	// Clock drives the loop. Nil means the system monotonic clock.
	Clock cyclic.Clock
}

// Controller is the caller-facing side of one drive.
//
// Initialize, MoveToPosition and Shutdown are safe from any goroutine.
// MoveToPosition never blocks on the real-time loop.
type Controller struct {
	opts Options
	open ecrt.Opener
	pub  *status.Publisher
	box  motion.Mailbox

	connected atomic.Bool

	// lifecycle; held across stop+join, never by the loop
	mu   sync.Mutex
	sess *session.Session
	exec *cyclic.Executor
	gen  uint64
}

// New returns a disconnected controller.
func New(opts Options, open ecrt.Opener, pub *status.Publisher) *Controller {
	if pub == nil {
		pub = status.NewPublisher()
	}
	return &Controller{opts: opts, open: open, pub: pub}
}

// Publisher returns the state publisher observers subscribe to.
func (c *Controller) Publisher() *status.Publisher { return c.pub }

// State returns the last published snapshot.
func (c *Controller) State() status.Snapshot { return c.pub.Snapshot() }

// Connected reports whether the bus is up and the loop running.
func (c *Controller) Connected() bool { return c.connected.Load() }

// Flags returns the motion lifecycle flags.
func (c *Controller) Flags() motion.Flags { return c.box.Flags() }

// Stats returns loop counters, zero before the first Initialize.
func (c *Controller) Stats() cyclic.Stats {
	c.mu.Lock()
	e := c.exec
	c.mu.Unlock()
	if e == nil {
		return cyclic.Stats{}
	}
	return e.Stats()
}

// ---- LIFECYCLE ----

// Initialize brings the bus up and starts the loop.
// On failure the reason is published, the error returned and no loop runs.
func (c *Controller) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return ErrAlreadyInitialized
	}

	c.pub.SetMessage("Initializing EtherCAT...")
	id := c.opts.Session.Slave
	log.Printf("drive: initializing EtherCAT (master=%d slave=%d:%d vendor=0x%08X product=0x%08X)",
		c.opts.Session.MasterIndex, id.Alias, id.Position, id.VendorID, id.ProductCode)

	// leftovers of a failed attempt
	if c.sess != nil {
		c.sess.Release()
		c.sess = nil
	}

	s := session.New(c.opts.Session, c.open)
	c.sess = s

	if err := s.Initialize(); err != nil {
		reason := "EtherCAT initialization failed"
		var ie *session.InitError
		if errors.As(err, &ie) {
			reason = ie.Reason
		}
		c.pub.SetMessage(reason)
		log.Printf("drive: initialization failed: %v", err)
		return err
	}

	c.box.Reset()

	exec, err := cyclic.New(
		c.opts.Cycle,
		cyclic.Process{Master: s.Master(), Domain: s.Domain(), Image: s.Image()},
		&c.box,
		c.pub,
		c.opts.Clock,
	)
	if err != nil {
		s.Release()
		c.sess = nil
		c.pub.SetMessage("EtherCAT initialization failed")
		return fmt.Errorf("drive: %w", err)
	}

	c.gen++
	gen := c.gen
	exec.OnExit(func(err error) { c.loopExited(gen, err) })

	c.connected.Store(true)
	c.pub.SetConnected(true)
	c.pub.SetReady(true)
	c.pub.SetMessage("EtherCAT initialized successfully")

	if err := exec.Start(); err != nil {
		c.connected.Store(false)
		c.pub.SetConnected(false)
		c.pub.SetReady(false)
		s.Release()
		c.sess = nil
		return fmt.Errorf("drive: %w", err)
	}
	c.exec = exec

	log.Printf("drive: EtherCAT initialized, loop started (period=%dns)", c.opts.Cycle.PeriodNs)
	return nil
}

// Shutdown stops the loop, sends the safe-stop frame and releases the master.
// Idempotent.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.teardown() {
		log.Printf("drive: EtherCAT disconnected")
	}
}

// teardown MUST be called with mu held. Reports whether the bus was connected.
// Any released session, failed attempts included, ends in "EtherCAT disconnected".
func (c *Controller) teardown() bool {
	if c.exec != nil {
		c.exec.Stop()
		c.exec.Wait()
		c.exec = nil
	}
	if c.sess == nil {
		return false
	}

	wasConnected := c.connected.Swap(false)
	if wasConnected {
		if err := c.sess.SafeStop(); err != nil {
			log.Printf("drive: safe stop failed: %v", err)
		}
	}
	c.sess.Release()
	c.sess = nil

	c.box.Reset()
	c.pub.SetConnected(false)
	c.pub.SetReady(false)
	c.pub.SetMessage("EtherCAT disconnected")
	return wasConnected
}

// loopExited runs the shutdown path after the loop died on its own.
func (c *Controller) loopExited(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// already shut down, or a newer run
	if gen != c.gen || c.exec == nil {
		return
	}

	c.teardown()
	c.pub.SetMessage(fmt.Sprintf("Real-time loop stopped: %v", err))
	log.Printf("drive: real-time loop stopped: %v", err)
}

// ---- MOTION ----

// MoveToPosition submits a set-point. The latest unconsumed request wins.
// While a motion runs the request is queued and fires when it completes.
func (c *Controller) MoveToPosition(position, velocity int32) error {
	if !c.connected.Load() {
		c.pub.SetMessage("EtherCAT not connected")
		return ErrNotConnected
	}

	if queued := c.box.Submit(motion.Request{TargetPosition: position, TargetVelocity: velocity}); queued {
		c.pub.SetMessage(fmt.Sprintf(
			"Command queued: position %d, velocity %d - will execute when current motion completes",
			position, velocity,
		))
		return nil
	}

	c.pub.SetMessage(fmt.Sprintf("Moving to position %d at velocity %d", position, velocity))
	return nil
}
