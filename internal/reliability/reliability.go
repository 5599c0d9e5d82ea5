// Package reliability implements the two retransmission disciplines GridClash
// layers on top of its unreliable UDP transport: best-effort retry-with-cap
// for EVENT messages, and indefinite stop-and-redrive for PLAYER_COLOR and
// GAME_OVER. Both are built around a pending-message map keyed by whatever
// the caller uses to identify a destination, following the same
// ID/Data/SendTime/Retries accounting shape used elsewhere in networked
// game servers for reliable-message bookkeeping.
package reliability

import (
	"sync"
	"time"
)

// SendFunc transmits an already-encoded datagram; callers supply the
// transport-specific implementation (typically a UDP write to one address).
type SendFunc func(payload []byte)

// pendingMessage tracks one outstanding reliable send. tries counts the
// total number of transmissions made so far, including the initial send the
// caller performs before registering with Track.
type pendingMessage struct {
	payload    []byte
	send       SendFunc
	sentAt     time.Time
	tries      int
	maxRetries int // 0 means unlimited (stop-and-redrive); otherwise a cap on total tries
}

// Tracker retransmits pending messages on a fixed granularity until each is
// acknowledged (Ack) or, for capped trackers, exhausts its retry budget and
// is dropped.
type Tracker struct {
	mu          sync.Mutex
	pending     map[uint64]*pendingMessage
	timeout     time.Duration
	now         func() time.Time
	onExhausted func(key uint64)
}

// Option configures a Tracker at construction time.
type Option func(*Tracker)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithExhaustedHook installs a callback invoked when a capped entry gives up
// after MaxRetries attempts (used for EVENT delivery failure bookkeeping).
func WithExhaustedHook(fn func(key uint64)) Option {
	return func(t *Tracker) { t.onExhausted = fn }
}

// NewTracker constructs a Tracker that retransmits unacknowledged entries
// every timeout interval.
func NewTracker(timeout time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		pending: make(map[uint64]*pendingMessage),
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track registers a message for retransmission under key, overwriting any
// prior entry for the same key. The caller is expected to perform the
// initial transmission itself (counted here as try 1); maxRetries of 0
// means retransmit indefinitely (PLAYER_COLOR/GAME_OVER semantics), while a
// positive value caps the total number of tries, initial send included
// (EVENT semantics: 6 tries total).
func (t *Tracker) Track(key uint64, payload []byte, send SendFunc, maxRetries int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[key] = &pendingMessage{
		payload:    payload,
		send:       send,
		sentAt:     t.now(),
		tries:      1,
		maxRetries: maxRetries,
	}
}

// Ack removes a pending entry once its acknowledgement has been received. It
// reports whether an entry was actually outstanding (a late or duplicate ACK
// for an already-cleared key returns false).
func (t *Tracker) Ack(key uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[key]; !ok {
		return false
	}
	delete(t.pending, key)
	return true
}

// Forget drops a pending entry without invoking the exhausted hook, for
// callers that no longer care about delivery (e.g. a player disconnected).
func (t *Tracker) Forget(key uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
}

// Pending reports whether key currently has an outstanding message.
func (t *Tracker) Pending(key uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[key]
	return ok
}

// Len reports the number of outstanding entries, for diagnostics.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Tick retransmits every entry whose timeout has elapsed since its last
// send, and retires capped entries that have exhausted their try budget.
// Call this from a fixed-granularity ticker (RETRANSMIT_GRANULARITY for
// PLAYER_COLOR, GAME_OVER and EVENT alike; the per-class timeout is the one
// passed to NewTracker).
func (t *Tracker) Tick() {
	now := t.now()

	t.mu.Lock()
	var exhausted []uint64
	for key, msg := range t.pending {
		if now.Sub(msg.sentAt) < t.timeout {
			continue
		}
		if msg.maxRetries > 0 && msg.tries >= msg.maxRetries {
			delete(t.pending, key)
			exhausted = append(exhausted, key)
			continue
		}
		msg.tries++
		msg.sentAt = now
		msg.send(msg.payload)
	}
	t.mu.Unlock()

	if t.onExhausted != nil {
		for _, key := range exhausted {
			t.onExhausted(key)
		}
	}
}
