// Package trigger decides when the companion speaks up unprompted.
//
// A Trigger is a plain record: which message type it produces, how long it
// stays quiet after firing, and two functions. Condition lists the subjects
// the trigger could talk about right now (an activity, a city, or nothing in
// particular); Generate turns one subject into a message. Triggers hold no
// state. The Scheduler owns cooldowns and suppression and folds over the
// registry once per tick.
package trigger

import (
	"strings"
	"time"

	"github.com/abelbrown/companion/internal/mode"
	"github.com/abelbrown/companion/internal/model"
)

// Context is everything a trigger may look at.
type Context struct {
	Now time.Time

	Location *model.LocationContext
	// Weather is the latest snapshot; PrevWeather is the one it replaced.
	Weather     *model.WeatherContext
	PrevWeather *model.WeatherContext
	// StaleAfter is how old weather may be before triggers ignore it.
	StaleAfter time.Duration

	Mode mode.Context

	// LastBreak is when the traveler last rested, or the trip day started.
	LastBreak time.Time

	// Lodging holds lowercased city names with confirmed lodging.
	Lodging map[string]bool
}

// FreshWeather returns the snapshot, or nil when missing or stale.
func (c *Context) FreshWeather() *model.WeatherContext {
	maxAge := c.StaleAfter
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if !c.Weather.Fresh(c.Now, maxAge) {
		return nil
	}
	return c.Weather
}

// HasLodging reports whether lodging is confirmed for city.
func (c *Context) HasLodging(city string) bool {
	return c.Lodging[strings.ToLower(strings.TrimSpace(city))]
}

// Subject is what a firing is about. Entity distinguishes cooldowns: two
// activities each get their own proximity cooldown.
type Subject struct {
	Entity   string
	Category string // learning category; empty falls back to the trigger's
	Activity *model.EnrichedActivity
	City     string
}

// Trigger is one registered proactive rule.
type Trigger struct {
	ID       string
	Type     model.MessageType
	Category string
	Priority model.Priority
	Cooldown time.Duration
	TTL      time.Duration

	// Condition returns the subjects the trigger could fire for, best first.
	// None means the condition does not hold.
	Condition func(ctx *Context, recs []model.EnrichedActivity) []Subject

	// Generate writes the message for a subject. The scheduler fills in
	// id, timestamps and any field left zero.
	Generate func(ctx *Context, s Subject) (model.ProactiveMessage, error)
}

// CooldownKey is the trigger type, plus ":" and the entity when there is one.
func (t *Trigger) CooldownKey(s Subject) string {
	if s.Entity == "" {
		return string(t.Type)
	}
	return string(t.Type) + ":" + s.Entity
}

// category returns the learning category a subject is judged under.
func (t *Trigger) category(s Subject) string {
	if s.Category != "" {
		return s.Category
	}
	return t.Category
}
