// internal/motion/mailbox.go
package motion

import "sync"

// Request is one motion set-point.
type Request struct {
	TargetPosition int32
	TargetVelocity int32
}

// Flags is a consistent copy of the lifecycle flags.
type Flags struct {
	CommandPending   bool
	MotionInProgress bool
}

// Mailbox is a single-slot, overwrite-latest hand-off between the caller
// and the real-time goroutine.
//
// All state sits behind one mutex held only for the copy, never across I/O.
// At most one unconsumed request exists; at most one motion is in progress.
type Mailbox struct {
	mu         sync.Mutex
	req        Request
	pending    bool
	inProgress bool
}

// Submit records r, replacing any unconsumed request.
// queued reports that a motion is in progress and r will wait for it.
func (m *Mailbox) Submit(r Request) (queued bool) {
	m.mu.Lock()
	m.req = r
	m.pending = true
	queued = m.inProgress
	m.mu.Unlock()
	return queued
}

// Drain takes the pending request if no motion is in progress and marks
// the motion as started. This is the only path that starts a motion.
func (m *Mailbox) Drain() (Request, bool) {
	m.mu.Lock()
	if !m.pending || m.inProgress {
		m.mu.Unlock()
		return Request{}, false
	}
	r := m.req
	m.pending = false
	m.inProgress = true
	m.mu.Unlock()
	return r, true
}

// Complete ends the motion in progress.
// ok is false if no motion was in progress; next reports a pending request.
func (m *Mailbox) Complete() (next bool, ok bool) {
	m.mu.Lock()
	ok = m.inProgress
	if ok {
		m.inProgress = false
	}
	next = m.pending
	m.mu.Unlock()
	return next, ok
}

// Flags returns both flags from the same critical section.
func (m *Mailbox) Flags() Flags {
	m.mu.Lock()
	f := Flags{CommandPending: m.pending, MotionInProgress: m.inProgress}
	m.mu.Unlock()
	return f
}

// InProgress reports whether a motion has been issued and not yet completed.
func (m *Mailbox) InProgress() bool {
	return m.Flags().MotionInProgress
}

// Reset drops any pending request and in-progress marker.
// Only called once the real-time goroutine has been joined.
func (m *Mailbox) Reset() {
	m.mu.Lock()
	m.req = Request{}
	m.pending = false
	m.inProgress = false
	m.mu.Unlock()
}
