package companion

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/companion/internal/location"
	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/model"
	"github.com/abelbrown/companion/internal/otel"
	"github.com/abelbrown/companion/internal/weather"
)

// eventBuffer is the capacity of the engine's event queue.
const eventBuffer = 64

// DefaultTickInterval is how often the clock re-evaluates triggers.
const DefaultTickInterval = time.Minute

// Sources are the producers Run drives. Every field is optional.
type Sources struct {
	Tracker  *location.Tracker
	Location location.Source

	Weather         *weather.Provider
	WeatherInterval time.Duration

	TickInterval time.Duration
}

// OnSnapshot registers fn to receive every snapshot Run produces. Call before
// Run. fn runs on the event loop goroutine and must not block for long.
func (e *Engine) OnSnapshot(fn func(Snapshot)) {
	e.notify = fn
}

// OnError registers fn to receive events Run rejected. Same rules as
// OnSnapshot.
func (e *Engine) OnError(fn func(Event, error)) {
	e.onError = fn
}

// Post queues ev for Run without blocking. It returns false when the queue
// is full and the event was dropped.
func (e *Engine) Post(ev Event) bool {
	select {
	case e.ch <- ev:
		return true
	default:
		e.metrics.Dropped.Inc()
		logging.Warn("engine queue full, dropping event", "event", ev.Name())
		return false
	}
}

// Run consumes posted events on a single goroutine and drives the clock,
// weather and location producers until ctx is cancelled. Producer failures
// are logged; the engine keeps running on whatever context it has.
func (e *Engine) Run(ctx context.Context, src Sources) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.loop(ctx)
	})

	tick := src.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	g.Go(func() error {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				e.Post(Tick{})
			}
		}
	})

	if src.Tracker != nil && src.Location != nil {
		g.Go(func() error {
			var lastKey string
			publish := func(l *model.LocationContext) {
				e.Post(LocationUpdate{Location: l})
				// Fetch weather right away for a new area instead of
				// waiting for the next refresh tick.
				if src.Weather == nil || l.Coordinates.Key() == lastKey {
					return
				}
				lastKey = l.Coordinates.Key()
				if w, applied, err := src.Weather.Refresh(ctx, l.Coordinates); err == nil && applied {
					e.Post(WeatherUpdate{Weather: w})
				}
			}
			if err := src.Tracker.Watch(ctx, src.Location, publish); err != nil {
				logging.Warn("location watch stopped", "code", location.CodeOf(err), "error", err)
				e.emit(otel.Event{Kind: otel.KindLocationErr, Level: otel.LevelWarn, Comp: "location", Err: err.Error()})
			}
			return nil
		})
	}

	if src.Weather != nil {
		g.Go(func() error {
			return src.Weather.Run(ctx, src.WeatherInterval, e.position(src.Tracker), func(w *model.WeatherContext) {
				e.Post(WeatherUpdate{Weather: w})
			})
		})
	}

	return g.Wait()
}

func (e *Engine) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.ch:
			snap, err := e.Handle(ev)
			if err != nil {
				logging.Warn("event failed", "event", ev.Name(), "error", err)
				e.emit(otel.Event{Kind: otel.KindError, Level: otel.LevelWarn, Comp: "engine", Msg: ev.Name(), Err: err.Error()})
				if e.onError != nil {
					e.onError(ev, err)
				}
				continue
			}
			if e.notify != nil {
				e.notify(snap)
			}
		}
	}
}

// position reports where to fetch weather for: the tracker's fix when there
// is one, otherwise the engine's last known location.
func (e *Engine) position(t *location.Tracker) func() (model.Coordinates, bool) {
	return func() (model.Coordinates, bool) {
		if t != nil {
			if l := t.Current(); l != nil {
				return l.Coordinates, true
			}
		}
		if l := e.Last().Location; l != nil {
			return l.Coordinates, true
		}
		return model.Coordinates{}, false
	}
}
