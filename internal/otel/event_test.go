package otel

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestReadEventsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindTriggerFired, Trigger: "proximity", ActivityID: "orsay", Category: "museum"})
	l.Emit(Event{Kind: KindRecompute, Count: 12, Dur: 3 * time.Millisecond})
	l.Close()

	events, err := ReadEvents(&buf)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Trigger != "proximity" || events[0].ActivityID != "orsay" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Dur != 3*time.Millisecond {
		t.Errorf("Dur = %v, want 3ms", events[1].Dur)
	}
	if events[1].Subsystem() != "engine" {
		t.Errorf("Subsystem() = %q, want engine", events[1].Subsystem())
	}
}

func TestReadEventsSkipsBlankAndReportsBadLine(t *testing.T) {
	in := "{\"t\":\"2026-06-01T09:00:00Z\",\"kind\":\"sys.startup\"}\n\n{oops\n"
	events, err := ReadEvents(strings.NewReader(in))
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error should name line 3: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindStartup {
		t.Errorf("expected the startup event before the bad line, got %+v", events)
	}
}
