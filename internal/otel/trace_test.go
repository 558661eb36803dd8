package otel

import (
	"sync"
	"testing"
)

func TestTraceGate(t *testing.T) {
	was := TraceEnabled()
	t.Cleanup(func() { setTraceEnabled(was) })

	for _, on := range []bool{true, false, true} {
		setTraceEnabled(on)
		if got := TraceEnabled(); got != on {
			t.Fatalf("gate set to %v, reads %v", on, got)
		}
	}
}

func TestTraceKindsShareSubsystem(t *testing.T) {
	for _, k := range []EventKind{KindEventReceived, KindEventHandled} {
		if got := (Event{Kind: k}).Subsystem(); got != "trace" {
			t.Errorf("%s: subsystem %q, want trace", k, got)
		}
	}
}

func TestTraceGateConcurrentReads(t *testing.T) {
	was := TraceEnabled()
	t.Cleanup(func() { setTraceEnabled(was) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = TraceEnabled()
			}
		}()
	}
	for j := 0; j < 200; j++ {
		setTraceEnabled(j%2 == 0)
	}
	wg.Wait()
}
