package companion

import (
	"github.com/abelbrown/companion/internal/mode"
	"github.com/abelbrown/companion/internal/model"
)

// Event is anything that can change what the companion shows. Every event is
// applied, then followed by exactly one re-score and one trigger sweep.
type Event interface {
	// Name identifies the event in logs.
	Name() string
}

// LocationUpdate carries a new position snapshot.
type LocationUpdate struct{ Location *model.LocationContext }

// WeatherUpdate carries a new forecast snapshot.
type WeatherUpdate struct{ Weather *model.WeatherContext }

// Tick is a clock tick. Nothing changes but time.
type Tick struct{}

// Activate enters active mode for a trip day. Route, when set, is parsed
// instead ("/trips/{id}/active?day=N").
type Activate struct {
	TripID string
	Day    int
	Route  string
}

// Deactivate returns to planning mode.
type Deactivate struct{}

// SwitchMode changes the active sub-mode.
type SwitchMode struct{ To mode.SubMode }

// Craving runs a keyword search, entering the craving sub-mode if needed.
type Craving struct{ Query string }

// Surprise picks a serendipity suggestion, entering that sub-mode if needed.
type Surprise struct{}

// Dismiss closes a proactive message without acting on it.
type Dismiss struct{ MessageID string }

// Act follows a proactive message's action.
type Act struct{ MessageID string }

// Select records that the traveler picked a recommendation.
type Select struct{ ActivityID string }

// NotInterested hides an activity from serendipity.
type NotInterested struct{ ActivityID string }

// SetStatus marks an activity completed, skipped or planned again.
type SetStatus struct {
	ActivityID string
	Status     model.ActivityStatus
}

// TakeBreak records a rest, restarting the rest timer.
type TakeBreak struct{}

func (LocationUpdate) Name() string { return "location" }
func (WeatherUpdate) Name() string  { return "weather" }
func (Tick) Name() string           { return "tick" }
func (Activate) Name() string       { return "activate" }
func (Deactivate) Name() string     { return "deactivate" }
func (SwitchMode) Name() string     { return "switch" }
func (Craving) Name() string        { return "craving" }
func (Surprise) Name() string       { return "serendipity" }
func (Dismiss) Name() string        { return "dismiss" }
func (Act) Name() string            { return "act" }
func (Select) Name() string         { return "select" }
func (NotInterested) Name() string  { return "not_interested" }
func (SetStatus) Name() string      { return "status" }
func (TakeBreak) Name() string      { return "break" }
