package otel

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func decodeAll(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmitStampsSessionTripAndTime(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.SetTrip("paris")
	l.Emit(Event{Kind: KindTriggerFired, Trigger: "proximity"})
	l.Emit(Event{Kind: KindModeChange, TripID: "rome"})
	l.Close()

	lines := decodeAll(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["trip"] != "paris" {
		t.Errorf("default trip not applied: %v", lines[0])
	}
	if lines[1]["trip"] != "rome" {
		t.Errorf("explicit trip overwritten: %v", lines[1])
	}
	for _, m := range lines {
		if m["session_id"] != l.Session() {
			t.Errorf("session_id = %v, want %s", m["session_id"], l.Session())
		}
		if _, ok := m["t"]; !ok {
			t.Error("time not stamped")
		}
	}
}

func TestEmitDefaultsLevel(t *testing.T) {
	ring := NewRingBuffer(8)
	l := NewNullLogger()
	l.SetRingBuffer(ring)
	l.Emit(Event{Kind: KindRecompute})
	l.Emit(Event{Kind: KindWeatherError, Err: "timeout"})
	l.Emit(Event{Kind: KindLocationErr, Level: LevelWarn, Err: "denied"})
	l.Close()

	got := ring.Snapshot()
	want := []Level{LevelInfo, LevelError, LevelWarn}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, e := range got {
		if e.Level != want[i] {
			t.Errorf("event %d level = %q, want %q", i, e.Level, want[i])
		}
	}
}

func TestMinLevelFiltersFileOnly(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingBuffer(8)
	l := NewLogger(&buf)
	l.SetRingBuffer(ring)
	l.SetMinLevel(LevelWarn)

	l.Emit(Event{Kind: KindEventReceived, Level: LevelDebug})
	l.Emit(Event{Kind: KindRecompute})
	l.Emit(Event{Kind: KindTriggerError, Err: "boom"})
	l.Close()

	lines := decodeAll(t, &buf)
	if len(lines) != 1 || lines[0]["kind"] != string(KindTriggerError) {
		t.Errorf("file should hold only the error, got %v", lines)
	}
	if ring.Len() != 3 {
		t.Errorf("ring should hold all 3 events, got %d", ring.Len())
	}
}

func TestDurationWrittenAsMillis(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindWeatherFetch, Dur: 1500 * time.Microsecond})
	l.Close()

	m := decodeAll(t, &buf)[0]
	if m["dur_ms"] != 1.5 {
		t.Errorf("dur_ms = %v, want 1.5", m["dur_ms"])
	}
	for _, absent := range []string{"trigger", "activity", "err", "extra"} {
		if _, ok := m[absent]; ok {
			t.Errorf("empty field %q should be omitted", absent)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Emit(Event{Kind: KindRecompute, Count: i})
			}
		}()
	}
	wg.Wait()
	l.Close()

	if got := len(decodeAll(t, &buf)) + int(l.Dropped()); got != 400 {
		t.Errorf("written + dropped = %d, want 400", got)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	l := NewNullLogger()
	l.Close()
	l.Close()
	l.Emit(Event{Kind: KindShutdown})
	if l.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", l.Dropped())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteErrorsCountAsDropped(t *testing.T) {
	l := NewLogger(failingWriter{})
	l.Emit(Event{Kind: KindRecompute})
	l.Emit(Event{Kind: KindRecompute})
	l.Close()
	if l.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", l.Dropped())
	}
}

func TestLevelRank(t *testing.T) {
	order := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank below %s", order[i-1], order[i])
		}
	}
	if Level("").Rank() != LevelInfo.Rank() {
		t.Error("unknown level should rank as info")
	}
}
