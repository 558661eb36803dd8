// Package inbox holds the proactive messages waiting for the traveler.
//
// The queue is small and bounded. When full, it evicts dismissed or expired
// messages first, then the lowest priority, then the oldest. A dismissed
// message instance never comes back.
package inbox

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/abelbrown/companion/internal/model"
)

// DefaultCapacity is how many messages the queue keeps.
const DefaultCapacity = 5

// forgetAfter is how long dismissed ids are remembered.
const forgetAfter = 48 * time.Hour

// Queue is the proactive message queue. Safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	capacity  int
	items     []model.ProactiveMessage
	dismissed map[string]time.Time
	onAct     func(msg model.ProactiveMessage)
}

// New creates a queue. capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity:  capacity,
		dismissed: make(map[string]time.Time),
	}
}

// OnAct registers the activity-selection callback. It runs after the queue
// lock is released.
func (q *Queue) OnAct(fn func(msg model.ProactiveMessage)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onAct = fn
}

// Enqueue adds msg at now. It returns false when msg was a duplicate, was
// already dismissed, or lost the eviction to the messages already queued.
func (q *Queue) Enqueue(msg model.ProactiveMessage, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, gone := q.dismissed[msg.ID]; gone || msg.IsDismissed {
		return false
	}
	for i := range q.items {
		it := &q.items[i]
		if it.ID == msg.ID {
			return false
		}
		if it.Visible(now) && it.Type == msg.Type && it.ActivityID == msg.ActivityID && it.Message == msg.Message {
			return false
		}
	}

	q.items = append(q.items, msg)
	accepted := true
	for len(q.items) > q.capacity {
		victim := q.victim(now)
		if q.items[victim].ID == msg.ID {
			accepted = false
		}
		q.items = append(q.items[:victim], q.items[victim+1:]...)
	}
	return accepted
}

// victim returns the index to evict. Caller holds q.mu.
func (q *Queue) victim(now time.Time) int {
	worst := 0
	for i := 1; i < len(q.items); i++ {
		if evictBefore(&q.items[i], &q.items[worst], now) {
			worst = i
		}
	}
	return worst
}

// evictBefore reports whether a should be evicted before b.
func evictBefore(a, b *model.ProactiveMessage, now time.Time) bool {
	av, bv := a.Visible(now), b.Visible(now)
	if av != bv {
		return !av
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Dismiss marks a message dismissed for good and returns it.
func (q *Queue) Dismiss(id string, now time.Time) (model.ProactiveMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dismissLocked(id, now)
}

func (q *Queue) dismissLocked(id string, now time.Time) (model.ProactiveMessage, bool) {
	for i := range q.items {
		if q.items[i].ID != id {
			continue
		}
		if q.items[i].IsDismissed {
			return q.items[i], false
		}
		q.items[i].IsDismissed = true
		q.dismissed[id] = now
		return q.items[i], true
	}
	return model.ProactiveMessage{}, false
}

// Act dismisses a message and forwards it to the activity-selection callback.
func (q *Queue) Act(id string, now time.Time) (model.ProactiveMessage, bool) {
	q.mu.Lock()
	msg, ok := q.dismissLocked(id, now)
	fn := q.onAct
	q.mu.Unlock()

	if ok && fn != nil {
		fn(msg)
	}
	return msg, ok
}

// Clear drops every message. None of them can be enqueued again.
func (q *Queue) Clear(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		q.dismissed[it.ID] = now
	}
	q.items = nil
}

// Active returns messages that are neither dismissed nor expired, highest
// priority first, then oldest first.
func (q *Queue) Active(now time.Time) []model.ProactiveMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := lo.Filter(q.items, func(m model.ProactiveMessage, _ int) bool { return m.Visible(now) })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns a message by id, dismissed or not.
func (q *Queue) Get(id string) (model.ProactiveMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return lo.Find(q.items, func(m model.ProactiveMessage) bool { return m.ID == id })
}

// GC removes dismissed and expired messages and forgets old dismissed ids.
// It returns how many messages were removed.
func (q *Queue) GC(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.items)
	q.items = lo.Filter(q.items, func(m model.ProactiveMessage, _ int) bool { return m.Visible(now) })
	for id, at := range q.dismissed {
		if now.Sub(at) > forgetAfter {
			delete(q.dismissed, id)
		}
	}
	return before - len(q.items)
}

// Len is the number of stored messages, including dismissed ones not yet
// collected.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
