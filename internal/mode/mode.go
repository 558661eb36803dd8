// Package mode tracks whether the traveler is planning or on an active trip,
// and which sub-mode the active companion is in.
//
// It is a flat two-level state machine:
//
//	planning ──Activate──> active/choice
//	active/* ──Switch────> active/*
//	active/* ──Deactivate> planning
//
// The sub-mode is empty exactly when the mode is planning.
package mode

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/abelbrown/companion/internal/model"
)

// Mode is the top-level state.
type Mode string

const (
	Planning Mode = "planning"
	Active   Mode = "active"
)

// SubMode is the state within Active.
type SubMode string

const (
	Choice      SubMode = "choice"
	Craving     SubMode = "craving"
	Serendipity SubMode = "serendipity"
	Rest        SubMode = "rest"
	Nearby      SubMode = "nearby"
	Chat        SubMode = "chat"
)

// SubModes lists every sub-mode in display order.
var SubModes = []SubMode{Choice, Craving, Serendipity, Rest, Nearby, Chat}

// Valid reports whether s is one of the six sub-modes.
func (s SubMode) Valid() bool {
	for _, v := range SubModes {
		if s == v {
			return true
		}
	}
	return false
}

var (
	ErrNotActive      = errors.New("mode: no active trip")
	ErrInvalidSubMode = errors.New("mode: invalid sub-mode")
	ErrNoTrip         = errors.New("mode: trip id required")
	ErrNotTripRoute   = errors.New("mode: not an active-trip route")
)

// allowed lists which proactive message types each sub-mode lets through.
var allowed = map[SubMode][]model.MessageType{
	Choice: {
		model.MessageProximity, model.MessageTimeSensitive, model.MessageWeatherPivot,
		model.MessageRest, model.MessageLodging, model.MessageBooking,
	},
	Craving: {
		model.MessageTimeSensitive, model.MessageWeatherPivot, model.MessageRest, model.MessageLodging,
	},
	Serendipity: {
		model.MessageProximity, model.MessageTimeSensitive, model.MessageWeatherPivot,
		model.MessageRest, model.MessageLodging,
	},
	// Already resting: no rest or walking nudges.
	Rest: {model.MessageWeatherPivot, model.MessageLodging},
	Nearby: {
		model.MessageProximity, model.MessageTimeSensitive, model.MessageWeatherPivot,
		model.MessageLodging, model.MessageBooking,
	},
	Chat: {model.MessageTimeSensitive, model.MessageWeatherPivot, model.MessageLodging},
}

// Context is a snapshot of the controller state.
type Context struct {
	Mode          Mode    `json:"mode"`
	SubMode       SubMode `json:"subMode,omitempty"`
	HasActiveTrip bool    `json:"hasActiveTrip"`
	TripID        string  `json:"tripId,omitempty"`
	DayNumber     int     `json:"dayNumber,omitempty"`
}

// AllowsTrigger reports whether messages of type t may fire in this state.
func (c Context) AllowsTrigger(t model.MessageType) bool {
	if c.Mode != Active {
		return false
	}
	for _, a := range allowed[c.SubMode] {
		if a == t {
			return true
		}
	}
	return false
}

// Transient holds results that only make sense inside one sub-mode.
type Transient struct {
	CravingQuery   string
	CravingMatches []model.EnrichedActivity
	Serendipity    *model.EnrichedActivity
}

// Controller is the mode state machine. Safe for concurrent use.
type Controller struct {
	mu        sync.RWMutex
	ctx       Context
	transient Transient
}

// New returns a controller in planning mode.
func New() *Controller {
	return &Controller{ctx: Context{Mode: Planning}}
}

// Current returns the state snapshot.
func (c *Controller) Current() Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}

// Transient returns the current transient results.
func (c *Controller) Transient() Transient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transient
}

// Activate enters active mode for a trip, starting in Choice. Activating
// the trip that is already active only updates the day.
func (c *Controller) Activate(tripID string, day int) error {
	if strings.TrimSpace(tripID) == "" {
		return ErrNoTrip
	}
	if day < 1 {
		day = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Mode == Active && c.ctx.TripID == tripID {
		c.ctx.DayNumber = day
		return nil
	}
	c.ctx = Context{
		Mode:          Active,
		SubMode:       Choice,
		HasActiveTrip: true,
		TripID:        tripID,
		DayNumber:     day,
	}
	c.transient = Transient{}
	return nil
}

// ActivateFromRoute activates from a route like "/trips/paris-2026/active?day=3".
func (c *Controller) ActivateFromRoute(route string) error {
	tripID, day, err := ParseRoute(route)
	if err != nil {
		return err
	}
	return c.Activate(tripID, day)
}

// ParseRoute extracts the trip id and day from an active-trip route.
// A missing day is 1.
func ParseRoute(route string) (string, int, error) {
	u, err := url.Parse(route)
	if err != nil {
		return "", 0, fmt.Errorf("parse route %q: %w", route, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "trips" || parts[2] != "active" || parts[1] == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrNotTripRoute, route)
	}

	day := 1
	if d := u.Query().Get("day"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 {
			return "", 0, fmt.Errorf("%w: bad day %q", ErrNotTripRoute, d)
		}
		day = n
	}
	return parts[1], day, nil
}

// Deactivate returns to planning. Nothing from the trip is kept.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = Context{Mode: Planning}
	c.transient = Transient{}
}

// Switch moves to another sub-mode. Leaving Craving or Serendipity clears
// their results. Switching to the current sub-mode is a no-op.
func (c *Controller) Switch(to SubMode) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSubMode, to)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Mode != Active {
		return ErrNotActive
	}
	if c.ctx.SubMode == to {
		return nil
	}

	switch c.ctx.SubMode {
	case Craving:
		c.transient.CravingQuery = ""
		c.transient.CravingMatches = nil
	case Serendipity:
		c.transient.Serendipity = nil
	}
	c.ctx.SubMode = to
	return nil
}

// SetCraving stores craving search results. Only valid in Craving.
func (c *Controller) SetCraving(query string, matches []model.EnrichedActivity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Mode != Active {
		return ErrNotActive
	}
	if c.ctx.SubMode != Craving {
		return fmt.Errorf("%w: craving results outside craving mode", ErrInvalidSubMode)
	}
	c.transient.CravingQuery = query
	c.transient.CravingMatches = matches
	return nil
}

// SetSerendipity stores the serendipity pick. Only valid in Serendipity.
func (c *Controller) SetSerendipity(pick *model.EnrichedActivity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Mode != Active {
		return ErrNotActive
	}
	if c.ctx.SubMode != Serendipity {
		return fmt.Errorf("%w: serendipity pick outside serendipity mode", ErrInvalidSubMode)
	}
	c.transient.Serendipity = pick
	return nil
}
