// internal/mirror/runner.go
package mirror

import (
	"context"
	"log"
	"time"

	"github.com/tamzrod/ecat-drive/internal/status"
)

const maxSecondsInError = 65535

// Mirror keeps one drive status block in step with the publisher.
// Runner-owned state: the block and the 1 Hz seconds-in-error counter.
type Mirror struct {
	plan Plan
	w    *blockWriter
	pub  *status.Publisher

	tick  time.Duration
	block status.Block
}

// New returns a mirror writing through cli.
func New(plan Plan, cli endpointClient, pub *status.Publisher) *Mirror {
	return &Mirror{
		plan:  plan,
		w:     newBlockWriter(plan, cli),
		pub:   pub,
		tick:  time.Second,
		block: status.Block{Health: status.HealthUnknown},
	}
}

// Run subscribes to the publisher and writes until ctx is done.
// One goroutine. No retries beyond the full re-assert on the next write.
func (m *Mirror) Run(ctx context.Context) {
	events, cancel := m.pub.Subscribe(64)
	defer cancel()

	secTicker := time.NewTicker(m.tick)
	defer secTicker.Stop()

	// Full block write on start (identity re-assert).
	m.apply(m.pub.Snapshot())
	m.flush("on start")

	for {
		select {
		case <-ctx.Done():
			// last word: whatever the final drain published
			if m.apply(m.pub.Snapshot()) {
				m.flush("on stop")
			}
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if m.apply(ev.State) {
				m.flush("")
			}

		case <-secTicker.C:
			// events may have been dropped; resync from the snapshot
			changed := m.apply(m.pub.Snapshot())
			if m.tickSecond() {
				changed = true
			}
			if changed || m.w.needFull {
				m.flush("seconds tick")
			}
		}
	}
}

// apply folds a snapshot into the block and reports a change.
func (m *Mirror) apply(s status.Snapshot) bool {
	next := status.BlockOf(s, m.block)

	// Reset seconds-in-error on recovery.
	if next.Health == status.HealthOK {
		next.SecondsInError = 0
	}

	changed := next != m.block
	m.block = next
	return changed
}

// tickSecond counts while a connected drive is not healthy. Never wraps.
func (m *Mirror) tickSecond() bool {
	if m.block.Flags&status.FlagConnected == 0 {
		return false
	}
	if m.block.Health == status.HealthOK {
		return false
	}
	if m.block.SecondsInError >= maxSecondsInError {
		return false
	}
	m.block.SecondsInError++
	return true
}

func (m *Mirror) flush(when string) {
	if err := m.w.WriteBlock(m.block); err != nil {
		if when != "" {
			log.Printf("status write failed %s (endpoint=%s): %v", when, m.plan.Endpoint, err)
			return
		}
		log.Printf("status write failed (endpoint=%s): %v", m.plan.Endpoint, err)
	}
}
