package otel

import "sync"

// DefaultRingSize is used when NewRingBuffer is given a non-positive size.
const DefaultRingSize = 1024

// RingBuffer keeps the most recent events in memory for the debug overlay.
// Safe for concurrent use.
type RingBuffer struct {
	mu     sync.Mutex
	slots  []Event
	pushed uint64 // events ever pushed; slot of the next push is pushed % len(slots)
}

// NewRingBuffer creates a ring buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{slots: make([]Event, size)}
}

// Push stores e, overwriting the oldest event when full. Extra is copied so
// later edits by the emitter do not show up in the buffer.
func (r *RingBuffer) Push(e Event) {
	if e.Extra != nil {
		extra := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = v
		}
		e.Extra = extra
	}
	r.mu.Lock()
	r.slots[r.pushed%uint64(len(r.slots))] = e
	r.pushed++
	r.mu.Unlock()
}

// held is how many slots are filled. Caller holds r.mu.
func (r *RingBuffer) held() int {
	if r.pushed < uint64(len(r.slots)) {
		return int(r.pushed)
	}
	return len(r.slots)
}

// tail copies the newest n events, oldest first. Caller holds r.mu.
func (r *RingBuffer) tail(n int) []Event {
	if h := r.held(); n > h {
		n = h
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, 0, n)
	size := uint64(len(r.slots))
	for i := r.pushed - uint64(n); i < r.pushed; i++ {
		out = append(out, r.slots[i%size])
	}
	return out
}

// Snapshot returns every held event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tail(r.held())
}

// Last returns the n most recent events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tail(n)
}

// Len returns the number of held events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held()
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return len(r.slots)
}

// Seen returns how many events were ever pushed, including overwritten ones.
func (r *RingBuffer) Seen() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushed
}

// Stats counts held events by kind.
func (r *RingBuffer) Stats() map[EventKind]int {
	counts := make(map[EventKind]int)
	for _, e := range r.Snapshot() {
		counts[e.Kind]++
	}
	return counts
}

// LastError returns the newest held event at error level.
func (r *RingBuffer) LastError() (Event, bool) {
	events := r.Snapshot()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Level == LevelError {
			return events[i], true
		}
	}
	return Event{}, false
}
