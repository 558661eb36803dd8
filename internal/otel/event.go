// Package otel records what the companion engine did, as JSONL events.
//
// Events are typed structs serialized one per line. The Logger writes them
// asynchronously through a buffered channel and a drain goroutine. An
// optional RingBuffer keeps recent events in memory for live views.
package otel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Rank orders levels by severity. Unknown levels rank as info.
func (l Level) Rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Engine events
	KindRecompute  EventKind = "engine.recompute"
	KindModeChange EventKind = "engine.mode"

	// Trigger events
	KindTriggerFired EventKind = "trigger.fired"
	KindTriggerError EventKind = "trigger.error"

	// Inbox events
	KindInboxDismiss EventKind = "inbox.dismiss"
	KindInboxAct     EventKind = "inbox.act"

	// Context sources
	KindWeatherFetch EventKind = "weather.fetch"
	KindWeatherError EventKind = "weather.error"
	KindLocationFix  EventKind = "location.fix"
	KindLocationErr  EventKind = "location.error"

	// Learning events
	KindLearningReset EventKind = "learning.reset"

	// Store events
	KindStoreError EventKind = "store.error"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Trace events, only emitted when COMPANION_TRACE is set
	KindEventReceived EventKind = "trace.event_received"
	KindEventHandled  EventKind = "trace.event_handled"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time       time.Time      `json:"t"`
	Level      Level          `json:"level,omitempty"`
	Kind       EventKind      `json:"kind"`
	Comp       string         `json:"comp,omitempty"`       // component: "engine", "weather", "location", "ui"
	SessionID  string         `json:"session_id,omitempty"` // random hex, same for entire run
	TripID     string         `json:"trip,omitempty"`
	Trigger    string         `json:"trigger,omitempty"`
	MessageID  string         `json:"message,omitempty"`
	ActivityID string         `json:"activity,omitempty"`
	Category   string         `json:"category,omitempty"`
	Dur        time.Duration  `json:"-"`                // not serialized directly
	DurMs      float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count      int            `json:"count,omitempty"`
	Err        string         `json:"err,omitempty"`
	Msg        string         `json:"msg,omitempty"`   // free text
	Extra      map[string]any `json:"extra,omitempty"` // escape hatch for unusual fields
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// Subsystem returns the part of Kind before the dot.
func (e Event) Subsystem() string {
	sub, _, _ := strings.Cut(string(e.Kind), ".")
	return sub
}

// ReadEvents decodes a JSONL event log. Blank lines are skipped; a malformed
// line fails with its line number. Dur is restored from dur_ms.
func ReadEvents(r io.Reader) ([]Event, error) {
	var out []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(b, &e); err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		if e.DurMs > 0 {
			e.Dur = time.Duration(e.DurMs * float64(time.Millisecond))
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}
