package otel

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize bounds how many events may wait for the writer. At a few hundred
// bytes per event this is well under a megabyte.
const queueSize = 4096

// Logger stamps events with the session, the trip and a time, then hands them
// to a writer goroutine so the engine loop never blocks on disk.
//
// The writer goroutine is the only reader of queue and the only user of out.
// mu guards the settings that may change after creation.
type Logger struct {
	session string
	out     io.Writer
	queue   chan Event
	done    chan struct{}

	mu    sync.RWMutex
	ring  *RingBuffer
	trip  string
	floor Level

	dropped  atomic.Uint64
	closed   atomic.Bool
	stopOnce sync.Once
}

// NewLogger starts a Logger writing JSONL to w. Call Close to flush.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	l := &Logger{
		session: fmt.Sprintf("%x", sid[:]),
		out:     w,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
		floor:   LevelDebug,
	}
	go l.write()
	return l
}

// NewNullLogger discards everything but still feeds an attached ring buffer.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// Session is the random id stamped on every event from this logger.
func (l *Logger) Session() string { return l.session }

// SetTrip makes trip the default TripID for events that carry none.
func (l *Logger) SetTrip(trip string) {
	l.mu.Lock()
	l.trip = trip
	l.mu.Unlock()
}

// SetMinLevel drops events below level from the file. The ring buffer still
// sees them.
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	l.floor = level
	l.mu.Unlock()
}

// SetRingBuffer attaches a ring buffer for live inspection.
func (l *Logger) SetRingBuffer(buf *RingBuffer) {
	l.mu.Lock()
	l.ring = buf
	l.mu.Unlock()
}

// Emit queues e. It never blocks: when the queue is full or the logger is
// closed the event is counted as dropped. Safe to call concurrently with
// Close.
func (l *Logger) Emit(e Event) {
	defer func() {
		// Close won the race between the closed check and the send.
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()
	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Level == "" {
		e.Level = LevelInfo
		if e.Err != "" {
			e.Level = LevelError
		}
	}
	e.SessionID = l.session

	l.mu.RLock()
	if e.TripID == "" {
		e.TripID = l.trip
	}
	l.mu.RUnlock()

	select {
	case l.queue <- e:
	default:
		l.dropped.Add(1)
	}
}

func (l *Logger) write() {
	defer close(l.done)
	for e := range l.queue {
		l.mu.RLock()
		ring, floor := l.ring, l.floor
		l.mu.RUnlock()

		if ring != nil {
			ring.Push(e)
		}
		if e.Level.Rank() < floor.Rank() {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			l.dropped.Add(1)
			continue
		}
		if _, err := l.out.Write(append(data, '\n')); err != nil {
			l.dropped.Add(1)
		}
	}
}

// Dropped returns how many events never reached the file.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close drains the queue and stops the writer. Later Emits are dropped.
func (l *Logger) Close() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		close(l.queue)
		<-l.done

		if d := l.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "companion: %d events dropped during session %s\n", d, l.session)
		}
	})
}
