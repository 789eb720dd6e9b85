// internal/motion/mailbox_test.go
package motion

import (
	"sync"
	"testing"
)

func TestMailbox_LastWriteWins(t *testing.T) {
	var m Mailbox

	m.Submit(Request{TargetPosition: 1, TargetVelocity: 10})
	m.Submit(Request{TargetPosition: 2, TargetVelocity: 20})

	r, ok := m.Drain()
	if !ok {
		t.Fatalf("expected a request to drain")
	}
	if r.TargetPosition != 2 || r.TargetVelocity != 20 {
		t.Fatalf("expected latest request (2,20), got %+v", r)
	}

	if _, ok := m.Drain(); ok {
		t.Fatalf("request drained twice")
	}
}

func TestMailbox_AtMostOneInFlight(t *testing.T) {
	var m Mailbox

	m.Submit(Request{TargetPosition: 100})
	if _, ok := m.Drain(); !ok {
		t.Fatalf("first drain failed")
	}

	// queued while motion in progress
	if queued := m.Submit(Request{TargetPosition: 200}); !queued {
		t.Fatalf("expected submit to report queued")
	}
	if _, ok := m.Drain(); ok {
		t.Fatalf("second motion issued before completion")
	}

	f := m.Flags()
	if !f.CommandPending || !f.MotionInProgress {
		t.Fatalf("unexpected flags %+v", f)
	}

	next, ok := m.Complete()
	if !ok || !next {
		t.Fatalf("Complete() next=%v ok=%v", next, ok)
	}

	r, ok := m.Drain()
	if !ok || r.TargetPosition != 200 {
		t.Fatalf("queued request not issued after completion: ok=%v r=%+v", ok, r)
	}
}

func TestMailbox_CompleteWithoutMotion(t *testing.T) {
	var m Mailbox
	if _, ok := m.Complete(); ok {
		t.Fatalf("Complete() reported a motion that never started")
	}
}

func TestMailbox_Reset(t *testing.T) {
	var m Mailbox
	m.Submit(Request{TargetPosition: 5})
	m.Drain()
	m.Submit(Request{TargetPosition: 6})
	m.Reset()

	if f := m.Flags(); f.CommandPending || f.MotionInProgress {
		t.Fatalf("flags not cleared: %+v", f)
	}
}

// Concurrent submitters against one consumer never see two motions in flight.
func TestMailbox_ConcurrentInvariant(t *testing.T) {
	var m Mailbox
	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base int32) {
			defer wg.Done()
			for i := int32(0); i < 500; i++ {
				m.Submit(Request{TargetPosition: base + i, TargetVelocity: 1})
			}
		}(int32(g * 1000))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	inFlight := 0
	for {
		if _, ok := m.Drain(); ok {
			inFlight++
			if inFlight > 1 {
				t.Fatalf("two motions in flight")
			}
		}
		if _, ok := m.Complete(); ok {
			inFlight--
		}
		select {
		case <-done:
			return
		default:
		}
	}
}
