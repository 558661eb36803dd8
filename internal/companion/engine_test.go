package companion

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/companion/internal/itinerary"
	"github.com/abelbrown/companion/internal/location"
	"github.com/abelbrown/companion/internal/mode"
	"github.com/abelbrown/companion/internal/model"
	"github.com/abelbrown/companion/internal/otel"
	"github.com/abelbrown/companion/internal/trigger"
)

// 12:00 in Paris.
var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

const tripJSON = `{
  "id": "paris-2026",
  "lodgings": [{"city": "Paris", "confirmed": true}],
  "days": [
    {
      "number": 1,
      "date": "2026-06-01",
      "city": "Paris",
      "activities": [
        {"id": "orsay", "name": "Musée d'Orsay", "category": "museum",
         "coordinates": {"lat": 48.8600, "lng": 2.3266}, "indoor": true,
         "hours": "09:30-18:00", "bookable": true, "popular": true},
        {"id": "flore", "name": "Café de Flore", "category": "cafe", "tags": ["coffee"],
         "coordinates": {"lat": 48.8541, "lng": 2.3326}, "indoor": true},
        {"id": "trocadero", "name": "Trocadéro", "category": "viewpoint",
         "coordinates": {"lat": 48.8616, "lng": 2.2893}, "idealTime": "golden_hour"},
        {"id": "luxembourg", "name": "Jardin du Luxembourg", "category": "park",
         "coordinates": {"lat": 48.8462, "lng": 2.3372}},
        {"id": "shakespeare", "name": "Shakespeare and Company", "category": "bookshop",
         "coordinates": {"lat": 48.8526, "lng": 2.3471}, "indoor": true}
      ]
    },
    {"number": 2, "date": "2026-06-02", "city": "Paris", "activities": [
      {"id": "louvre", "name": "Louvre", "category": "museum"}
    ]}
  ]
}`

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	*Engine
	clock *clock
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	trip, err := itinerary.Parse([]byte(tripJSON))
	require.NoError(t, err)

	c := &clock{t: t0}
	cfg := Config{Trip: trip, Now: c.Now}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return &harness{Engine: e, clock: c}
}

func (h *harness) handle(t *testing.T, ev Event) Snapshot {
	t.Helper()
	snap, err := h.Handle(ev)
	require.NoError(t, err)
	return snap
}

func (h *harness) activate(t *testing.T) Snapshot {
	t.Helper()
	return h.handle(t, Activate{TripID: "paris-2026", Day: 1})
}

// nearOrsay is about 150 m north of the museum.
func nearOrsay(at time.Time) LocationUpdate {
	return LocationUpdate{Location: &model.LocationContext{
		Coordinates: model.Coordinates{Lat: 48.861349, Lng: 2.3266},
		Accuracy:    10,
		Timestamp:   at,
		City:        "Paris",
		Timezone:    "Europe/Paris",
	}}
}

func ofType(msgs []model.ProactiveMessage, typ model.MessageType) []model.ProactiveMessage {
	var out []model.ProactiveMessage
	for _, m := range msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func forecast(cond model.Condition, temp float64, fetched time.Time) WeatherUpdate {
	return WeatherUpdate{Weather: &model.WeatherContext{
		Condition:   cond,
		Temperature: temp,
		FeelsLike:   temp,
		IsDaylight:  true,
		FetchedAt:   fetched,
		LocationKey: "48.86,2.33",
	}}
}

func TestNewRequiresTrip(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Trip: &itinerary.Trip{ID: "empty"}})
	assert.ErrorContains(t, err, "no days")
}

func TestActivate(t *testing.T) {
	h := newHarness(t)

	snap := h.activate(t)
	assert.Equal(t, mode.Active, snap.Mode.Mode)
	assert.Equal(t, mode.Choice, snap.Mode.SubMode)
	assert.Equal(t, 1, snap.Day)
	assert.Len(t, snap.Ranked, 5)
	assert.Len(t, snap.Recommendations, DefaultTopN)

	snap = h.handle(t, Activate{Route: "/trips/paris-2026/active?day=2"})
	assert.Equal(t, 2, snap.Day)
	assert.Len(t, snap.Ranked, 1)

	_, err := h.Handle(Activate{TripID: "rome-2027", Day: 1})
	assert.ErrorIs(t, err, ErrUnknownTrip)

	_, err = h.Handle(Activate{TripID: "paris-2026", Day: 9})
	assert.ErrorIs(t, err, itinerary.ErrNoDay)

	_, err = h.Handle(Activate{Route: "/settings"})
	assert.ErrorIs(t, err, mode.ErrNotTripRoute)

	snap = h.handle(t, Deactivate{})
	assert.Equal(t, mode.Planning, snap.Mode.Mode)
	assert.Empty(t, snap.Mode.SubMode)
}

func TestProximityScenario(t *testing.T) {
	h := newHarness(t)
	h.activate(t)

	snap := h.handle(t, nearOrsay(t0))
	prox := ofType(snap.Fired, model.MessageProximity)
	require.Len(t, prox, 1)
	assert.Contains(t, prox[0].Message, "m from Musée d'Orsay")
	assert.Equal(t, "orsay", prox[0].ActivityID)
	assert.Equal(t, "museum", prox[0].Category)
	assert.NotEmpty(t, prox[0].ID)
	assert.Equal(t, t0.Add(30*time.Minute), prox[0].ExpiresAt)
	assert.NotEmpty(t, ofType(snap.Messages, model.MessageProximity))

	// Standing still: the cooldown holds.
	h.clock.Advance(90 * time.Minute)
	snap = h.handle(t, nearOrsay(h.clock.Now()))
	assert.Empty(t, ofType(snap.Fired, model.MessageProximity))

	h.clock.Advance(31 * time.Minute)
	snap = h.handle(t, Tick{})
	assert.Len(t, ofType(snap.Fired, model.MessageProximity), 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.TriggersFired.WithLabelValues("proximity")))
}

func TestPlanningModeStaysQuiet(t *testing.T) {
	h := newHarness(t)

	snap := h.handle(t, nearOrsay(t0))
	assert.Equal(t, mode.Planning, snap.Mode.Mode)
	assert.Equal(t, 1, snap.Day, "planning uses the calendar day")
	assert.NotEmpty(t, snap.Recommendations)
	assert.Empty(t, snap.Fired)
	assert.Empty(t, snap.Messages)
}

func TestLocationLastWriteWins(t *testing.T) {
	h := newHarness(t)

	h.handle(t, nearOrsay(t0))
	older := nearOrsay(t0.Add(-time.Minute))
	older.Location.Coordinates = model.Coordinates{Lat: 40, Lng: -74}

	snap := h.handle(t, older)
	assert.Equal(t, 48.861349, snap.Location.Coordinates.Lat)
}

func TestDismissFeedsLearning(t *testing.T) {
	h := newHarness(t)
	h.activate(t)
	snap := h.handle(t, nearOrsay(t0))
	prox := ofType(snap.Fired, model.MessageProximity)
	require.Len(t, prox, 1)

	before := h.Learning().Snapshot().Categories["museum"]
	assert.Positive(t, before.Shown)

	snap = h.handle(t, Dismiss{MessageID: prox[0].ID})
	for _, m := range snap.Messages {
		assert.NotEqual(t, prox[0].ID, m.ID)
	}
	after := h.Learning().Snapshot().Categories["museum"]
	assert.Equal(t, before.Dismissed+1, after.Dismissed)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Feedback.WithLabelValues("dismissed")))

	last := h.Last()
	_, err := h.Handle(Dismiss{MessageID: prox[0].ID})
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.Equal(t, last.At, h.Last().At, "rejected events do not recompute")
}

func TestActSelectsActivity(t *testing.T) {
	h := newHarness(t)
	h.activate(t)
	snap := h.handle(t, nearOrsay(t0))
	prox := ofType(snap.Fired, model.MessageProximity)
	require.Len(t, prox, 1)

	snap = h.handle(t, Act{MessageID: prox[0].ID})
	assert.Equal(t, "orsay", snap.Selected)
	assert.Equal(t, 1, h.Learning().Snapshot().Categories["museum"].Clicked)

	snap = h.handle(t, Tick{})
	assert.Empty(t, snap.Selected, "selection lasts one snapshot")

	snap = h.handle(t, Select{ActivityID: "flore"})
	assert.Equal(t, "flore", snap.Selected)
	assert.Equal(t, 1, h.Learning().Snapshot().Categories["cafe"].Clicked)

	_, err := h.Handle(Select{ActivityID: "nope"})
	assert.ErrorIs(t, err, itinerary.ErrNoActivity)
}

func TestWeatherPivotFiresOnce(t *testing.T) {
	h := newHarness(t)
	h.activate(t)

	snap := h.handle(t, forecast(model.ConditionSunny, 24, t0))
	assert.Empty(t, ofType(snap.Fired, model.MessageWeatherPivot))

	h.clock.Advance(15 * time.Minute)
	snap = h.handle(t, forecast(model.ConditionStormy, 18, h.clock.Now()))
	pivots := ofType(snap.Fired, model.MessageWeatherPivot)
	require.Len(t, pivots, 1)
	assert.Equal(t, "Weather turning stormy", pivots[0].Message)

	h.clock.Advance(time.Minute)
	snap = h.handle(t, Tick{})
	assert.Empty(t, ofType(snap.Fired, model.MessageWeatherPivot))

	// Past the cooldown, an unchanged forecast is not news.
	h.clock.Advance(4 * time.Hour)
	snap = h.handle(t, forecast(model.ConditionStormy, 18, h.clock.Now()))
	assert.Empty(t, ofType(snap.Fired, model.MessageWeatherPivot))
}

func TestWeatherLastWriteWins(t *testing.T) {
	h := newHarness(t)
	h.handle(t, forecast(model.ConditionRainy, 12, t0))

	snap := h.handle(t, forecast(model.ConditionSunny, 25, t0.Add(-time.Minute)))
	assert.Equal(t, model.ConditionRainy, snap.Weather.Condition)
}

func TestRestReminder(t *testing.T) {
	h := newHarness(t)
	h.activate(t)

	h.clock.Advance(100 * time.Minute)
	h.handle(t, TakeBreak{})

	h.clock.Advance(100 * time.Minute)
	snap := h.handle(t, Tick{})
	assert.Empty(t, ofType(snap.Fired, model.MessageRest))

	h.clock.Advance(51 * time.Minute)
	snap = h.handle(t, Tick{})
	rest := ofType(snap.Fired, model.MessageRest)
	require.Len(t, rest, 1)
	assert.Contains(t, rest[0].Message, "2h 31m")
}

func TestCravingFlow(t *testing.T) {
	h := newHarness(t)

	_, err := h.Handle(Craving{Query: "coffee"})
	assert.ErrorIs(t, err, mode.ErrNotActive)

	h.activate(t)
	snap := h.handle(t, Craving{Query: "coffee"})
	assert.Equal(t, mode.Craving, snap.Mode.SubMode)
	assert.Equal(t, "coffee", snap.Transient.CravingQuery)
	require.Len(t, snap.Transient.CravingMatches, 1)
	assert.Equal(t, "flore", snap.Transient.CravingMatches[0].Activity.ID)
	assert.NotEmpty(t, snap.Explanation)

	// Matches follow the context.
	snap = h.handle(t, nearOrsay(t0))
	require.Len(t, snap.Transient.CravingMatches, 1)
	assert.NotNil(t, snap.Transient.CravingMatches[0].DistanceMeters)

	snap = h.handle(t, SwitchMode{To: mode.Choice})
	assert.Empty(t, snap.Transient.CravingQuery)
	assert.Empty(t, snap.Transient.CravingMatches)
}

func TestSerendipityFlow(t *testing.T) {
	h := newHarness(t)
	h.activate(t)

	snap := h.handle(t, Surprise{})
	assert.Equal(t, mode.Serendipity, snap.Mode.SubMode)
	pick := snap.Transient.Serendipity
	require.NotNil(t, pick)
	for _, top := range snap.Ranked[:3] {
		assert.NotEqual(t, top.Activity.ID, pick.Activity.ID)
	}

	snap = h.handle(t, Tick{})
	require.NotNil(t, snap.Transient.Serendipity)
	assert.Equal(t, pick.Activity.ID, snap.Transient.Serendipity.Activity.ID, "pick is stable between events")

	h.handle(t, NotInterested{ActivityID: pick.Activity.ID})
	snap = h.handle(t, Surprise{})
	if snap.Transient.Serendipity != nil {
		assert.NotEqual(t, pick.Activity.ID, snap.Transient.Serendipity.Activity.ID)
	}
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	h.activate(t)

	snap := h.handle(t, SetStatus{ActivityID: "orsay", Status: model.StatusCompleted})
	for _, r := range snap.Ranked {
		if r.Activity.ID == "orsay" {
			assert.True(t, r.Activity.Done())
		}
	}
	_, err := h.Handle(SetStatus{ActivityID: "nope", Status: model.StatusSkipped})
	assert.ErrorIs(t, err, itinerary.ErrNoActivity)
}

func TestFailingTriggerIsCounted(t *testing.T) {
	boom := trigger.Trigger{
		ID:   "boom",
		Type: model.MessageRest,
		Condition: func(*trigger.Context, []model.EnrichedActivity) []trigger.Subject {
			panic("bad condition")
		},
	}
	h := newHarness(t, func(c *Config) { c.Triggers = []trigger.Trigger{boom} })

	snap := h.activate(t)
	assert.Empty(t, snap.Fired)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TriggerErrors.WithLabelValues("boom")))
}

func TestEventLog(t *testing.T) {
	var buf bytes.Buffer
	log := otel.NewLogger(&buf)
	h := newHarness(t, func(c *Config) { c.Events = log })

	h.activate(t)
	h.handle(t, nearOrsay(t0))
	log.Close()

	events, err := otel.ReadEvents(&buf)
	require.NoError(t, err)

	var fired, recomputes int
	for _, ev := range events {
		switch ev.Kind {
		case otel.KindTriggerFired:
			if ev.ActivityID == "orsay" && ev.Trigger == "proximity" {
				fired++
			}
		case otel.KindRecompute:
			recomputes++
		}
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, 2, recomputes)
}

func TestRun(t *testing.T) {
	h := newHarness(t)

	snaps := make(chan Snapshot, 16)
	h.OnSnapshot(func(s Snapshot) { snaps <- s })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.Run(ctx, Sources{
			Tracker:      location.NewTracker(location.DefaultSettings(), nil, nil),
			Location:     location.NewReplay([]location.Fix{{Coordinates: model.Coordinates{Lat: 48.8606, Lng: 2.3376}, Accuracy: 5, Timestamp: t0}}, 0),
			TickInterval: time.Hour,
		})
	}()

	require.True(t, h.Post(Activate{TripID: "paris-2026", Day: 1}))

	require.Eventually(t, func() bool {
		last := h.Last()
		return last.Mode.Mode == mode.Active && last.Location != nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.NotEmpty(t, snaps)
}

func TestPostDropsWhenFull(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < eventBuffer; i++ {
		require.True(t, h.Post(Tick{}))
	}
	assert.False(t, h.Post(Tick{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Dropped))
}
