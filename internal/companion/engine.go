// Package companion is the event-driven core of the trip companion.
//
// Every change to the world arrives as an Event: a location fix, a forecast,
// a clock tick, or something the traveler did. Handle applies the event and
// then runs the pipeline exactly once:
//
//	score day's activities -> sweep triggers -> queue messages -> Snapshot
//
// The Engine owns the latest location and weather, the mode controller, the
// message queue and the feedback loop into the learning store. It does not
// talk to the network; Run wires in the producers that do.
package companion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/companion/internal/inbox"
	"github.com/abelbrown/companion/internal/itinerary"
	"github.com/abelbrown/companion/internal/learning"
	"github.com/abelbrown/companion/internal/links"
	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/mode"
	"github.com/abelbrown/companion/internal/model"
	"github.com/abelbrown/companion/internal/otel"
	"github.com/abelbrown/companion/internal/ranking"
	"github.com/abelbrown/companion/internal/store"
	"github.com/abelbrown/companion/internal/trigger"
)

// DefaultTopN is how many recommendations a snapshot carries.
const DefaultTopN = 5

// ErrUnknownTrip is returned when activating a trip the engine was not given.
var ErrUnknownTrip = errors.New("companion: unknown trip")

// ErrUnknownMessage is returned for a dismiss or act on a message not in the inbox.
var ErrUnknownMessage = errors.New("companion: no such message")

// Config holds the engine's collaborators. Only Trip is required.
type Config struct {
	Trip      *itinerary.Trip
	Scorer    *ranking.Scorer
	Triggers  []trigger.Trigger
	Learning  *learning.Store
	Cooldowns *learning.Cooldowns
	Inbox     *inbox.Queue
	Events    *otel.Logger
	Metrics   *Metrics
	Now       func() time.Time

	TopN       int
	StaleAfter time.Duration
}

// Snapshot is what the traveler sees after an event.
type Snapshot struct {
	At        time.Time
	Mode      mode.Context
	Transient mode.Transient
	Day       int

	Location *model.LocationContext
	Weather  *model.WeatherContext

	// Recommendations are the best TopN, highest first.
	Recommendations []model.EnrichedActivity
	// Ranked is every activity of the day, scored.
	Ranked []model.EnrichedActivity

	// Messages are the visible inbox, highest priority first.
	Messages []model.ProactiveMessage
	// Fired are the messages queued by this event's sweep.
	Fired []model.ProactiveMessage

	// Selected is the activity the traveler just chose, if any.
	Selected string
	// Explanation accompanies craving results.
	Explanation string
}

// Engine runs the recompute pipeline. Handle is safe for concurrent use;
// calls are serialized.
type Engine struct {
	trip      *itinerary.Trip
	scorer    *ranking.Scorer
	triggers  []trigger.Trigger
	scheduler *trigger.Scheduler
	learning  *learning.Store
	cooldowns *learning.Cooldowns
	modes     *mode.Controller
	inbox     *inbox.Queue
	events    *otel.Logger
	metrics   *Metrics
	now       func() time.Time

	topN       int
	staleAfter time.Duration

	mu sync.Mutex
	state
	last Snapshot

	// Run state
	ch      chan Event
	notify  func(Snapshot)
	onError func(Event, error)
}

// state is what events change, guarded by Engine.mu.
type state struct {
	location    *model.LocationContext
	weather     *model.WeatherContext
	prevWeather *model.WeatherContext
	// weatherChanged is set when the current event replaced the forecast.
	weatherChanged bool
	lastBreak      time.Time
	selected       string
	explanation    string
}

// New builds an engine, filling defaults for anything left nil.
func New(cfg Config) (*Engine, error) {
	if cfg.Trip == nil {
		return nil, errors.New("companion: trip is required")
	}
	if len(cfg.Trip.Days) == 0 {
		return nil, errors.New("companion: trip has no days")
	}
	if cfg.Scorer == nil {
		cfg.Scorer = ranking.DefaultScorer(ranking.DefaultWeights())
	}
	if cfg.Triggers == nil {
		cfg.Triggers = trigger.Defaults(trigger.DefaultPolicy(), links.NewBooking(), links.NewSearch())
	}
	if cfg.Learning == nil || cfg.Cooldowns == nil {
		kv := store.NewMemory()
		if cfg.Learning == nil {
			cfg.Learning = learning.New(kv, learning.DefaultPolicy())
		}
		if cfg.Cooldowns == nil {
			cfg.Cooldowns = learning.NewCooldowns(kv)
		}
	}
	if cfg.Inbox == nil {
		cfg.Inbox = inbox.New(inbox.DefaultCapacity)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = ranking.DefaultStaleAfter
	}

	e := &Engine{
		trip:       cfg.Trip,
		scorer:     cfg.Scorer,
		triggers:   cfg.Triggers,
		learning:   cfg.Learning,
		cooldowns:  cfg.Cooldowns,
		modes:      mode.New(),
		inbox:      cfg.Inbox,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
		topN:       cfg.TopN,
		staleAfter: cfg.StaleAfter,
		ch:         make(chan Event, eventBuffer),
	}
	e.scheduler = trigger.NewScheduler(e.learning, e.cooldowns).OnError(e.triggerFailed)
	e.inbox.OnAct(func(msg model.ProactiveMessage) {
		e.selected = msg.ActivityID
	})
	return e, nil
}

// Last returns the most recent snapshot.
func (e *Engine) Last() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Mode returns the current mode state.
func (e *Engine) Mode() mode.Context { return e.modes.Current() }

// Learning returns the learning store the engine feeds.
func (e *Engine) Learning() *learning.Store { return e.learning }

// Handle applies ev, then re-scores and sweeps triggers once. When ev is
// rejected the previous snapshot is returned with the error and nothing is
// recomputed.
func (e *Engine) Handle(ev Event) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	now := e.now()
	e.selected, e.explanation, e.weatherChanged = "", "", false

	if otel.TraceEnabled() {
		e.emit(otel.Event{Kind: otel.KindEventReceived, Comp: "engine", Msg: ev.Name()})
	}

	if err := e.apply(ev, now); err != nil {
		logging.Debug("event rejected", "event", ev.Name(), "error", err)
		return e.last, err
	}

	snap := e.recompute(ev, now)
	e.last = snap

	e.metrics.Recomputes.Inc()
	e.emit(otel.Event{
		Kind:   otel.KindRecompute,
		Comp:   "engine",
		TripID: snap.Mode.TripID,
		Msg:    ev.Name(),
		Count:  len(snap.Ranked),
		Dur:    time.Since(start),
	})
	if otel.TraceEnabled() {
		e.emit(otel.Event{Kind: otel.KindEventHandled, Comp: "engine", Msg: ev.Name(), Count: len(snap.Fired)})
	}
	return snap, nil
}

// apply changes state for ev. Caller holds e.mu.
func (e *Engine) apply(ev Event, now time.Time) error {
	switch ev := ev.(type) {
	case LocationUpdate:
		if ev.Location == nil || !ev.Location.Newer(e.location) {
			return nil
		}
		e.location = ev.Location
		e.emit(otel.Event{Kind: otel.KindLocationFix, Comp: "location", Msg: ev.Location.City})

	case WeatherUpdate:
		w := ev.Weather
		if w == nil || (e.weather != nil && !w.FetchedAt.After(e.weather.FetchedAt)) {
			return nil
		}
		e.prevWeather, e.weather = e.weather, w
		e.weatherChanged = true
		e.emit(otel.Event{Kind: otel.KindWeatherFetch, Comp: "weather", Msg: string(w.Condition)})

	case Tick:

	case Activate:
		return e.activate(ev, now)

	case Deactivate:
		e.modes.Deactivate()
		e.lastBreak = time.Time{}
		e.emit(otel.Event{Kind: otel.KindModeChange, Comp: "engine", Msg: string(mode.Planning)})

	case SwitchMode:
		if err := e.modes.Switch(ev.To); err != nil {
			return err
		}
		if ev.To == mode.Rest {
			e.lastBreak = now
		}
		e.emit(otel.Event{Kind: otel.KindModeChange, Comp: "engine", Msg: string(ev.To)})

	case Craving:
		return e.modes.Switch(mode.Craving)

	case Surprise:
		return e.modes.Switch(mode.Serendipity)

	case Dismiss:
		msg, ok := e.inbox.Dismiss(ev.MessageID, now)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMessage, ev.MessageID)
		}
		e.learning.RecordDismissal(msg.Category)
		e.feedback("dismissed", otel.KindInboxDismiss, msg)

	case Act:
		msg, ok := e.inbox.Act(ev.MessageID, now)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMessage, ev.MessageID)
		}
		e.learning.RecordClick(msg.Category)
		e.feedback("acted", otel.KindInboxAct, msg)

	case Select:
		a, err := e.trip.Activity(ev.ActivityID)
		if err != nil {
			return err
		}
		e.learning.RecordClick(a.Category)
		e.selected = a.ID
		e.metrics.Feedback.WithLabelValues("selected").Inc()

	case NotInterested:
		a, err := e.trip.Activity(ev.ActivityID)
		if err != nil {
			return err
		}
		e.learning.MarkNotInterested(a.ID)
		e.learning.RecordDismissal(a.Category)
		e.metrics.Feedback.WithLabelValues("not_interested").Inc()

	case SetStatus:
		return e.trip.SetStatus(ev.ActivityID, ev.Status)

	case TakeBreak:
		e.lastBreak = now

	default:
		return fmt.Errorf("companion: unhandled event %T", ev)
	}
	return nil
}

func (e *Engine) activate(ev Activate, now time.Time) error {
	tripID, day := ev.TripID, ev.Day
	if ev.Route != "" {
		var err error
		if tripID, day, err = mode.ParseRoute(ev.Route); err != nil {
			return err
		}
	}
	if tripID != e.trip.ID {
		return fmt.Errorf("%w: %s", ErrUnknownTrip, tripID)
	}
	if day == 0 {
		day = e.today(now)
	}
	if _, err := e.trip.Day(day); err != nil {
		return err
	}

	wasActive := e.modes.Current().Mode == mode.Active
	if err := e.modes.Activate(tripID, day); err != nil {
		return err
	}
	if !wasActive || e.lastBreak.IsZero() {
		e.lastBreak = now
	}
	e.emit(otel.Event{Kind: otel.KindModeChange, Comp: "engine", TripID: tripID, Msg: string(mode.Active), Count: day})
	return nil
}

// today is the trip day matching now in the traveler's timezone, or the
// first day.
func (e *Engine) today(now time.Time) int {
	if d, ok := e.trip.DayOn(now, e.location.Location()); ok {
		return d.Number
	}
	return e.trip.Days[0].Number
}

// recompute scores the day and sweeps triggers. Caller holds e.mu.
func (e *Engine) recompute(ev Event, now time.Time) Snapshot {
	mc := e.modes.Current()
	day := mc.DayNumber
	if mc.Mode != mode.Active {
		day = e.today(now)
	}
	acts, err := e.trip.Activities(day)
	if err != nil {
		logging.Warn("no activities for day", "day", day, "error", err)
	}

	rctx := ranking.NewContext(now).
		WithLocation(e.location).
		WithWeather(e.weather).
		WithPreferences(e.trip.Preferences).
		WithFeedback(e.learning)
	rctx.StaleAfter = e.staleAfter

	ranked := e.scorer.Score(acts, rctx)
	e.refreshTransient(ev, mc, acts, rctx)

	tctx := &trigger.Context{
		Now:        now,
		Location:   e.location,
		Weather:    e.weather,
		StaleAfter: e.staleAfter,
		Mode:       e.modes.Current(),
		LastBreak:  e.lastBreak,
		Lodging:    e.trip.LodgingCities(),
	}
	// Change detection is edge-triggered: the previous forecast is only
	// compared on the event that replaced it.
	if e.weatherChanged {
		tctx.PrevWeather = e.prevWeather
	}

	enqueue := func(msg model.ProactiveMessage) bool { return e.inbox.Enqueue(msg, now) }
	var fired []model.ProactiveMessage
	for _, msg := range e.scheduler.Sweep(tctx, ranked, e.triggers, enqueue) {
		e.learning.RecordSuggestion(msg.Category)
		e.metrics.TriggersFired.WithLabelValues(string(msg.Type)).Inc()
		e.emit(otel.Event{
			Kind:       otel.KindTriggerFired,
			Comp:       "trigger",
			Trigger:    string(msg.Type),
			MessageID:  msg.ID,
			ActivityID: msg.ActivityID,
			Category:   msg.Category,
			Msg:        msg.Message,
		})
		fired = append(fired, msg)
	}
	e.inbox.GC(now)

	return Snapshot{
		At:              now,
		Mode:            e.modes.Current(),
		Transient:       e.modes.Transient(),
		Day:             day,
		Location:        e.location,
		Weather:         e.weather,
		Recommendations: ranked[:min(len(ranked), e.topN)],
		Ranked:          ranked,
		Messages:        e.inbox.Active(now),
		Fired:           fired,
		Selected:        e.selected,
		Explanation:     e.explanation,
	}
}

// refreshTransient recomputes craving matches against the new context and
// draws a serendipity pick when asked for one.
func (e *Engine) refreshTransient(ev Event, mc mode.Context, acts []model.Activity, rctx *ranking.Context) {
	if mc.Mode != mode.Active {
		return
	}
	switch mc.SubMode {
	case mode.Craving:
		query := e.modes.Transient().CravingQuery
		if c, ok := ev.(Craving); ok {
			query = c.Query
		}
		if query == "" {
			return
		}
		res := e.scorer.SearchCraving(query, acts, rctx)
		e.explanation = res.Explanation
		if err := e.modes.SetCraving(res.Query, res.Matches); err != nil {
			logging.Warn("craving results dropped", "error", err)
		}
	case mode.Serendipity:
		if _, ok := ev.(Surprise); !ok && e.modes.Transient().Serendipity != nil {
			return
		}
		pick := e.scorer.Serendipity(acts, rctx)
		if pick == nil {
			e.explanation = "Nothing left to surprise you with today"
		}
		if err := e.modes.SetSerendipity(pick); err != nil {
			logging.Warn("serendipity pick dropped", "error", err)
		}
	}
}

func (e *Engine) feedback(outcome string, kind otel.EventKind, msg model.ProactiveMessage) {
	e.metrics.Feedback.WithLabelValues(outcome).Inc()
	e.emit(otel.Event{
		Kind:       kind,
		Comp:       "inbox",
		Trigger:    string(msg.Type),
		MessageID:  msg.ID,
		ActivityID: msg.ActivityID,
		Category:   msg.Category,
	})
}

func (e *Engine) triggerFailed(triggerID string, err error) {
	e.metrics.TriggerErrors.WithLabelValues(triggerID).Inc()
	e.emit(otel.Event{Kind: otel.KindTriggerError, Level: otel.LevelWarn, Comp: "trigger", Trigger: triggerID, Err: err.Error()})
}

func (e *Engine) emit(ev otel.Event) {
	if e.events != nil {
		e.events.Emit(ev)
	}
}
