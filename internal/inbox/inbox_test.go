package inbox

import (
	"fmt"
	"testing"
	"time"

	"github.com/abelbrown/companion/internal/model"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, p model.Priority, created time.Time) model.ProactiveMessage {
	return model.ProactiveMessage{
		ID:        id,
		Type:      model.MessageProximity,
		Message:   "message " + id,
		Priority:  p,
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}
}

func ids(msgs []model.ProactiveMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestActiveOrdering(t *testing.T) {
	q := New(5)
	q.Enqueue(msg("low", model.PriorityLow, t0), t0)
	q.Enqueue(msg("high-late", model.PriorityHigh, t0.Add(2*time.Minute)), t0)
	q.Enqueue(msg("high-early", model.PriorityHigh, t0.Add(time.Minute)), t0)
	q.Enqueue(msg("urgent", model.PriorityUrgent, t0.Add(3*time.Minute)), t0)

	got := fmt.Sprint(ids(q.Active(t0.Add(5 * time.Minute))))
	want := "[urgent high-early high-late low]"
	if got != want {
		t.Errorf("Active() = %s, want %s", got, want)
	}
}

func TestCapacityEvictsLowestPriorityThenOldest(t *testing.T) {
	q := New(3)
	q.Enqueue(msg("a", model.PriorityMedium, t0), t0)
	q.Enqueue(msg("b", model.PriorityLow, t0.Add(time.Minute)), t0)
	q.Enqueue(msg("c", model.PriorityLow, t0.Add(2*time.Minute)), t0)

	if !q.Enqueue(msg("d", model.PriorityHigh, t0.Add(3*time.Minute)), t0) {
		t.Fatal("high priority message should be accepted")
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	if got := fmt.Sprint(ids(q.Active(t0))); got != "[d a c]" {
		t.Errorf("after eviction Active() = %s, want [d a c]", got)
	}

	// A new low message loses to everything already queued.
	if q.Enqueue(msg("e", model.PriorityLow, t0.Add(-time.Hour)), t0) {
		t.Error("older low priority message should be rejected when full")
	}
}

func TestCapacityEvictsDismissedAndExpiredFirst(t *testing.T) {
	q := New(2)
	q.Enqueue(msg("urgent", model.PriorityUrgent, t0), t0)
	q.Enqueue(msg("old", model.PriorityUrgent, t0.Add(-2*time.Hour)), t0.Add(-2*time.Hour))
	q.Dismiss("urgent", t0)

	q.Enqueue(msg("low", model.PriorityLow, t0), t0)
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	q.Enqueue(msg("low2", model.PriorityLow, t0.Add(time.Second)), t0)

	// Expired "old" goes before either low message.
	got := fmt.Sprint(ids(q.Active(t0)))
	if got != "[low low2]" {
		t.Errorf("Active() = %s, want [low low2]", got)
	}
}

func TestDismissIsPermanent(t *testing.T) {
	q := New(5)
	m := msg("m1", model.PriorityMedium, t0)
	q.Enqueue(m, t0)

	dismissed, ok := q.Dismiss("m1", t0)
	if !ok || !dismissed.IsDismissed {
		t.Fatalf("Dismiss failed: %+v %v", dismissed, ok)
	}
	if _, ok := q.Dismiss("m1", t0); ok {
		t.Error("second dismiss should report false")
	}
	if len(q.Active(t0)) != 0 {
		t.Error("dismissed message still active")
	}

	q.GC(t0)
	if q.Enqueue(m, t0) {
		t.Error("dismissed instance must never come back")
	}

	// The same trigger firing again produces a new instance, which is fine.
	if !q.Enqueue(msg("m2", model.PriorityMedium, t0.Add(3*time.Hour)), t0.Add(3*time.Hour)) {
		t.Error("new instance should be accepted")
	}
}

func TestDuplicateContentIgnored(t *testing.T) {
	q := New(5)
	a := msg("a", model.PriorityMedium, t0)
	a.ActivityID = "orsay"
	b := a
	b.ID = "b"

	q.Enqueue(a, t0)
	if q.Enqueue(b, t0) {
		t.Error("same type, activity and text should be deduplicated")
	}
	if q.Enqueue(a, t0) {
		t.Error("same id should be deduplicated")
	}

	q.Dismiss("a", t0)
	if !q.Enqueue(b, t0) {
		t.Error("once the original is dismissed, a new instance may show")
	}
}

func TestExpiredExcludedAndCollected(t *testing.T) {
	q := New(5)
	q.Enqueue(msg("short", model.PriorityHigh, t0), t0)
	q.Enqueue(msg("later", model.PriorityLow, t0.Add(50*time.Minute)), t0)

	at := t0.Add(61 * time.Minute)
	if got := fmt.Sprint(ids(q.Active(at))); got != "[later]" {
		t.Errorf("Active() = %s, want [later]", got)
	}
	if n := q.GC(at); n != 1 {
		t.Errorf("GC removed %d, want 1", n)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestActForwardsActivity(t *testing.T) {
	q := New(5)
	var selected []string
	q.OnAct(func(m model.ProactiveMessage) { selected = append(selected, m.ActivityID) })

	m := msg("m", model.PriorityMedium, t0)
	m.ActivityID = "louvre"
	q.Enqueue(m, t0)

	acted, ok := q.Act("m", t0)
	if !ok || acted.ActivityID != "louvre" {
		t.Fatalf("Act failed: %+v %v", acted, ok)
	}
	if len(selected) != 1 || selected[0] != "louvre" {
		t.Errorf("callback got %v", selected)
	}
	if len(q.Active(t0)) != 0 {
		t.Error("act should dismiss")
	}
	if _, ok := q.Act("m", t0); ok {
		t.Error("acting twice should fail")
	}
	if len(selected) != 1 {
		t.Error("callback should run once")
	}
}

func TestClear(t *testing.T) {
	q := New(5)
	m := msg("m", model.PriorityMedium, t0)
	q.Enqueue(m, t0)
	q.Clear(t0)

	if q.Len() != 0 {
		t.Errorf("Len() = %d after Clear", q.Len())
	}
	if q.Enqueue(m, t0) {
		t.Error("cleared instance should not come back")
	}
}

func TestGetAndUnknownIDs(t *testing.T) {
	q := New(0)
	if q.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", q.capacity, DefaultCapacity)
	}
	if _, ok := q.Dismiss("nope", t0); ok {
		t.Error("unknown id should not dismiss")
	}
	q.Enqueue(msg("x", model.PriorityLow, t0), t0)
	if m, ok := q.Get("x"); !ok || m.ID != "x" {
		t.Errorf("Get() = %+v, %v", m, ok)
	}
}
