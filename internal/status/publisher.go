// internal/status/publisher.go
package status

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tamzrod/ecat-drive/internal/cia402"
)

// Message is a status text. Pre-built messages let the real-time side
// announce without allocating.
type Message struct {
	text string
}

// NewMessage wraps text.
func NewMessage(text string) *Message { return &Message{text: text} }

func (m *Message) String() string {
	if m == nil {
		return ""
	}
	return m.text
}

// messageRing is how many status messages may pile up between two drains.
// Older ones are overwritten and never published.
const messageRing = 32

// messageSlot is one ring entry. seq is 0 while a producer is writing it.
type messageSlot struct {
	seq atomic.Uint64
	msg atomic.Pointer[Message]
}

// Publisher hands observable state from producers to observers.
//
// Producers store into atomics and poke a 1-slot wake channel: never blocks,
// never allocates. Numeric fields are latest-value. Status messages are
// queued in a ring so every one of them reaches Drain in order.
// Drain is the single sequencing point: it compares each field with the
// last published value and emits only changes, in a fixed order.
type Publisher struct {
	// ---- producer side ----
	position   atomic.Int32
	statusWord atomic.Uint32
	errorCode  atomic.Uint32
	connected  atomic.Bool
	ready      atomic.Bool
	msgHead    atomic.Uint64
	messages   [messageRing]messageSlot
	wake       chan struct{}

	// ---- consumer side ----
	drainMu sync.Mutex
	msgSeen uint64 // last ring sequence drained
	msgLost uint64

	mu   sync.RWMutex
	last Snapshot
	subs map[uint64]*subscriber
	next uint64
}

type subscriber struct {
	ch chan Event
}

// NewPublisher returns a publisher in the not-initialized state.
func NewPublisher() *Publisher {
	p := &Publisher{
		wake: make(chan struct{}, 1),
		subs: make(map[uint64]*subscriber),
	}
	p.last = Snapshot{
		StatusWord:    cia402.FormatStatusWord(0),
		StatusMessage: "Not initialized",
	}
	return p
}

// ---- PRODUCER SIDE (any goroutine, non-blocking) ----

func (p *Publisher) SetActualPosition(v int32) {
	p.position.Store(v)
	p.kick()
}

func (p *Publisher) SetStatusWord(v uint16) {
	p.statusWord.Store(uint32(v))
	p.kick()
}

func (p *Publisher) SetErrorCode(v uint16) {
	p.errorCode.Store(uint32(v))
	p.kick()
}

func (p *Publisher) SetConnected(v bool) {
	p.connected.Store(v)
	p.kick()
}

func (p *Publisher) SetReady(v bool) {
	p.ready.Store(v)
	p.kick()
}

// Announce queues a pre-built message.
func (p *Publisher) Announce(m *Message) {
	n := p.msgHead.Add(1)
	slot := &p.messages[n%messageRing]
	slot.seq.Store(0)
	slot.msg.Store(m)
	slot.seq.Store(n)
	p.kick()
}

// SetMessage publishes free text. Allocates; not for the real-time side.
func (p *Publisher) SetMessage(text string) {
	p.Announce(NewMessage(text))
}

func (p *Publisher) kick() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// ---- CONSUMER SIDE ----

// Run drains on every wake until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			p.Drain()
		}
	}
}

// Drain publishes pending changes and returns how many events were emitted.
func (p *Publisher) Drain() int {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	p.mu.RLock()
	cur := p.last
	p.mu.RUnlock()

	var events []Event

	if v := p.connected.Load(); v != cur.Connected {
		cur.Connected = v
		events = append(events, Event{Field: FieldConnected, State: cur})
	}
	for _, text := range p.takeMessages() {
		if text == cur.StatusMessage {
			continue
		}
		cur.StatusMessage = text
		events = append(events, Event{Field: FieldStatusMessage, State: cur})
	}
	if v := uint16(p.statusWord.Load()); v != cur.StatusWordRaw {
		cur.StatusWordRaw = v
		cur.StatusWord = cia402.FormatStatusWord(v)
		events = append(events, Event{Field: FieldStatusWord, State: cur})
	}
	if v := p.position.Load(); v != cur.ActualPosition {
		cur.ActualPosition = v
		events = append(events, Event{Field: FieldActualPosition, State: cur})
	}
	if v := p.ready.Load(); v != cur.ReadyForCommand {
		cur.ReadyForCommand = v
		events = append(events, Event{Field: FieldReadyForCommand, State: cur})
	}
	if v := uint16(p.errorCode.Load()); v != cur.ErrorCode {
		cur.ErrorCode = v
		events = append(events, Event{Field: FieldErrorCode, State: cur})
	}

	if len(events) == 0 {
		return 0
	}

	p.mu.Lock()
	p.last = cur
	subs := make([]*subscriber, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, ev := range events {
		for _, s := range subs {
			select {
			case s.ch <- ev:
			default:
				// slow subscriber: drop rather than stall the sequencing point
			}
		}
	}

	return len(events)
}

// takeMessages returns the queued message texts in order.
// MUST be called with drainMu held.
//
// A slot still being written ends the batch; its producer kicks again once
// done. Slots overwritten before this drain are counted in msgLost.
func (p *Publisher) takeMessages() []string {
	head := p.msgHead.Load()
	if head == p.msgSeen {
		return nil
	}
	if head-p.msgSeen > messageRing {
		p.msgLost += head - p.msgSeen - messageRing
		p.msgSeen = head - messageRing
	}

	var out []string
	for n := p.msgSeen + 1; n <= head; n++ {
		slot := &p.messages[n%messageRing]
		s1 := slot.seq.Load()
		m := slot.msg.Load()
		s2 := slot.seq.Load()

		switch {
		case s1 == n && s2 == n:
			out = append(out, m.String())
		case s1 > n || s2 > n:
			// lapped while reading
			p.msgLost++
		default:
			// still being written
			return out
		}
		p.msgSeen = n
	}
	return out
}

// MessagesLost reports how many status messages were overwritten before a
// drain could publish them.
func (p *Publisher) MessagesLost() uint64 {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()
	return p.msgLost
}

// Snapshot returns the last published state.
func (p *Publisher) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Subscribe registers an observer. cancel closes the channel.
func (p *Publisher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{ch: make(chan Event, buffer)}

	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = s
	p.mu.Unlock()

	cancel := func() {
		p.drainMu.Lock()
		defer p.drainMu.Unlock()
		p.mu.Lock()
		defer p.mu.Unlock()
		if cur, ok := p.subs[id]; ok && cur == s {
			close(cur.ch)
			delete(p.subs, id)
		}
	}
	return s.ch, cancel
}
