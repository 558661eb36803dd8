// Package ranking scores itinerary activities against the live trip context.
//
// Pipeline: activities -> signals -> weighted score -> why-now -> order
//
// Design principles:
// - Signals are stateless functions: (activity, context) -> reading
// - Readings are normalized to [0, 1]; missing data reads as a neutral 0.5
// - Signals are combined by weighted average
// - Signals don't mutate activities; they just read them
package ranking

import (
	"time"

	"github.com/abelbrown/companion/internal/model"
)

// Feedback is the slice of the learning store the signals need.
type Feedback interface {
	// Pressure is how over-suggested a category is, in [0, 1].
	Pressure(category string) float64
	// Suggested reports whether the category has been suggested before.
	Suggested(category string) bool
	// IsNotInterested reports whether the traveler rejected the activity.
	IsNotInterested(activityID string) bool
}

// Context provides data signals may need for scoring decisions.
// Not all signals use all fields - take what you need.
type Context struct {
	Now time.Time

	// Live context. Either may be nil.
	Location *model.LocationContext
	Weather  *model.WeatherContext

	// StaleAfter is how old weather may be before it reads as missing.
	StaleAfter time.Duration

	// Preferences maps a lowercased category or tag to a learned weight in [0, 1].
	Preferences map[string]float64

	// Feedback from the learning store. May be nil.
	Feedback Feedback

	// doneCategories is filled by the scorer from the batch being scored.
	doneCategories map[string]bool
}

// DefaultStaleAfter is how long a weather snapshot is trusted.
const DefaultStaleAfter = time.Hour

// NewContext creates a context at now with sensible defaults.
func NewContext(now time.Time) *Context {
	return &Context{
		Now:         now,
		StaleAfter:  DefaultStaleAfter,
		Preferences: make(map[string]float64),
	}
}

// WithLocation sets the current fix.
func (c *Context) WithLocation(loc *model.LocationContext) *Context {
	c.Location = loc
	return c
}

// WithWeather sets the current weather snapshot.
func (c *Context) WithWeather(w *model.WeatherContext) *Context {
	c.Weather = w
	return c
}

// WithPreferences sets learned category/tag weights.
func (c *Context) WithPreferences(prefs map[string]float64) *Context {
	c.Preferences = prefs
	return c
}

// WithFeedback attaches the learning store.
func (c *Context) WithFeedback(f Feedback) *Context {
	c.Feedback = f
	return c
}

// LocalNow returns Now in the traveler's timezone when known.
func (c *Context) LocalNow() time.Time {
	if loc := c.Location.Location(); loc != nil {
		return c.Now.In(loc)
	}
	return c.Now
}

// FreshWeather returns the weather snapshot, or nil when missing or stale.
func (c *Context) FreshWeather() *model.WeatherContext {
	maxAge := c.StaleAfter
	if maxAge <= 0 {
		maxAge = DefaultStaleAfter
	}
	if !c.Weather.Fresh(c.Now, maxAge) {
		return nil
	}
	return c.Weather
}

func (c *Context) notInterested(id string) bool {
	return c.Feedback != nil && c.Feedback.IsNotInterested(id)
}

// Reading is one signal's verdict on one activity.
type Reading struct {
	Value float64
	// Reason explains the value. Empty Text means the signal has nothing
	// worth saying.
	Reason model.Reason
}

// Neutral is the reading for missing data.
var Neutral = Reading{Value: 0.5}

// Signal scores one aspect of an activity.
// Implementations should be stateless and thread-safe.
type Signal interface {
	// Name returns a unique identifier for this signal
	Name() string

	// Category is the reason category this signal explains.
	Category() model.ReasonCategory

	// Read returns a reading normalized to [0, 1].
	Read(a *model.Activity, ctx *Context) Reading
}
