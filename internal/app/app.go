// Package app assembles the companion from configuration: storage,
// learning, context sources, metrics and the engine. Commands build one App
// and hand its parts to the terminal UI or print them.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/abelbrown/companion/internal/companion"
	"github.com/abelbrown/companion/internal/config"
	"github.com/abelbrown/companion/internal/inbox"
	"github.com/abelbrown/companion/internal/itinerary"
	"github.com/abelbrown/companion/internal/learning"
	"github.com/abelbrown/companion/internal/links"
	"github.com/abelbrown/companion/internal/location"
	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/otel"
	"github.com/abelbrown/companion/internal/ranking"
	"github.com/abelbrown/companion/internal/store"
	"github.com/abelbrown/companion/internal/trigger"
	"github.com/abelbrown/companion/internal/weather"
)

// ringSize is how many recent events the debug overlay can show.
const ringSize = 256

// EventLogPath is where the JSONL event log is written.
func EventLogPath() string {
	return filepath.Join(config.Dir(), "companion.events.jsonl")
}

// App holds every long-lived part of a running companion.
type App struct {
	Config    *config.Config
	Trip      *itinerary.Trip
	KV        store.KV
	Learning  *learning.Store
	Cooldowns *learning.Cooldowns
	Events    *otel.Logger
	Ring      *otel.RingBuffer
	Registry  *prometheus.Registry
	Metrics   *companion.Metrics
	Engine    *companion.Engine

	// Context sources; nil when disabled in config.
	Tracker *location.Tracker
	Weather *weather.Provider

	closers []func() error
}

// OpenStore opens the KV backend named by cfg.Driver. The returned closer is
// never nil.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (store.KV, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return store.NewMemory(), noop, nil
	case "dynamo":
		d, err := store.OpenDynamo(ctx, cfg.DynamoRegion, cfg.DynamoTable)
		if err != nil {
			return nil, noop, err
		}
		return d, noop, nil
	case "sqlite", "":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return nil, noop, fmt.Errorf("create data directory: %w", err)
			}
		}
		s, err := store.Open(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// OpenEvents opens the event log configured by cfg. With the log disabled
// events are discarded.
func OpenEvents(cfg *config.Config) (*otel.Logger, func() error, error) {
	if !cfg.Engine.EventLog {
		l := otel.NewNullLogger()
		return l, func() error { l.Close(); return nil }, nil
	}
	path := EventLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	l := otel.NewLogger(f)
	if cfg.Engine.EventLevel != "" {
		l.SetMinLevel(otel.Level(strings.ToLower(cfg.Engine.EventLevel)))
	}
	return l, func() error {
		l.Close()
		return f.Close()
	}, nil
}

// New builds the companion for trip. Call Close when done.
func New(ctx context.Context, cfg *config.Config, trip *itinerary.Trip) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Trip: trip}

	kv, closeKV, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.KV = kv
	a.closers = append(a.closers, closeKV)

	events, closeEvents, err := OpenEvents(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Events = events
	a.Ring = otel.NewRingBuffer(ringSize)
	events.SetRingBuffer(a.Ring)
	events.SetTrip(trip.ID)
	a.closers = append(a.closers, closeEvents)

	a.Learning = learning.New(kv, cfg.LearningPolicy())
	a.Cooldowns = learning.NewCooldowns(kv)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "companion_event_log_dropped_total",
			Help: "Observability events that never reached the event log.",
		}, func() float64 { return float64(events.Dropped()) }),
	)

	a.Metrics = companion.NewMetrics(a.Registry)
	a.Tracker = a.newTracker()
	if cfg.Weather.Enabled {
		a.Weather = weather.NewProvider(weather.NewOpenMeteo(cfg.Weather.Endpoint), cfg.Weather.CacheTTL.D()).
			WithDays(cfg.Weather.ForecastDays)
	}

	scorer := ranking.DefaultScorer(cfg.Policy.Weights).
		WithRand(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
	a.Engine, err = companion.New(companion.Config{
		Trip:       trip,
		Scorer:     scorer,
		Triggers:   trigger.Defaults(cfg.TriggerPolicy(), links.NewBooking(), links.NewSearch()),
		Learning:   a.Learning,
		Cooldowns:  a.Cooldowns,
		Inbox:      inbox.New(cfg.Engine.InboxCapacity),
		Events:     events,
		Metrics:    a.Metrics,
		TopN:       cfg.UI.TopN,
		StaleAfter: cfg.Weather.StaleAfter.D(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	events.Emit(otel.Event{Kind: otel.KindStartup, Comp: "app", TripID: trip.ID, Msg: cfg.Storage.Driver})
	return a, nil
}

func (a *App) newTracker() *location.Tracker {
	cfg := a.Config
	var geocoder location.Geocoder
	if cfg.Geocoder.Enabled {
		geocoder = location.NewNominatim(cfg.Geocoder.Endpoint, cfg.Geocoder.UserAgent)
	}
	var zoner location.Zoner
	if cfg.Geocoder.Timezones {
		tz, err := location.NewTZF()
		if err != nil {
			logging.Warn("timezone finder unavailable", "error", err)
		} else {
			zoner = tz
		}
	}
	return location.NewTracker(cfg.LocationSettings(), geocoder, zoner)
}

// Sources returns the producers Engine.Run should drive. src may be nil to
// run without location.
func (a *App) Sources(src location.Source) companion.Sources {
	s := companion.Sources{
		Weather:         a.Weather,
		WeatherInterval: a.Config.Weather.RefreshInterval.D(),
		TickInterval:    a.Config.Engine.TickInterval.D(),
	}
	if src != nil {
		s.Tracker = a.Tracker
		s.Location = src
	}
	return s
}

// Close releases the store and flushes the event log.
func (a *App) Close() error {
	if a.Events != nil {
		a.Events.Emit(otel.Event{Kind: otel.KindShutdown, Comp: "app"})
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

var (
	_ store.KV = (*store.Store)(nil)
	_ store.KV = (*store.Memory)(nil)
	_ store.KV = (*store.Dynamo)(nil)
)
