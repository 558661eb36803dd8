package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates the per-event trace.* kinds the engine emits around
// Handle. Read on every event, so it is a single atomic load.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("COMPANION_TRACE") != "")
}

// TraceEnabled reports whether COMPANION_TRACE was set at startup.
func TraceEnabled() bool { return traceEnabled.Load() }

func setTraceEnabled(v bool) { traceEnabled.Store(v) }
