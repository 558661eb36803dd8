package location

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Replay is a Source that plays back recorded fixes. It stands in for a
// device GPS in the terminal companion and in tests.
type Replay struct {
	fixes    []Fix
	interval time.Duration
	restamp  func() time.Time

	mu  sync.Mutex
	pos int
}

// NewReplay plays fixes in order, one per interval.
func NewReplay(fixes []Fix, interval time.Duration) *Replay {
	return &Replay{fixes: fixes, interval: interval}
}

// LoadReplay reads a JSON array of fixes from path.
func LoadReplay(path string, interval time.Duration) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	var fixes []Fix
	if err := json.Unmarshal(data, &fixes); err != nil {
		return nil, fmt.Errorf("parse replay %s: %w", path, err)
	}
	return NewReplay(fixes, interval), nil
}

// Restamp replaces each fix's timestamp with now() as it is delivered, so
// recordings can be replayed against the wall clock.
func (r *Replay) Restamp(now func() time.Time) *Replay {
	r.restamp = now
	return r
}

// Current returns the fix at the replay position without advancing.
func (r *Replay) Current(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, Wrap(CodeTimeout, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fixes) == 0 {
		return Fix{}, Wrap(CodePositionUnavailable, fmt.Errorf("empty replay"))
	}
	return r.stamp(r.fixes[min(r.pos, len(r.fixes)-1)]), nil
}

// Watch delivers the remaining fixes, then closes both channels.
func (r *Replay) Watch(ctx context.Context) (<-chan Fix, <-chan error) {
	fixes := make(chan Fix)
	errs := make(chan error, 1)

	go func() {
		defer close(fixes)
		defer close(errs)

		if len(r.fixes) == 0 {
			errs <- Wrap(CodePositionUnavailable, fmt.Errorf("empty replay"))
			return
		}

		var tick <-chan time.Time
		if r.interval > 0 {
			ticker := time.NewTicker(r.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			fix, ok := r.next()
			if !ok {
				return
			}
			select {
			case fixes <- fix:
			case <-ctx.Done():
				return
			}
			if tick == nil {
				continue
			}
			select {
			case <-tick:
			case <-ctx.Done():
				return
			}
		}
	}()

	return fixes, errs
}

func (r *Replay) next() (Fix, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.fixes) {
		return Fix{}, false
	}
	f := r.stamp(r.fixes[r.pos])
	r.pos++
	return f, true
}

func (r *Replay) stamp(f Fix) Fix {
	if r.restamp != nil {
		f.Timestamp = r.restamp()
	}
	return f
}
