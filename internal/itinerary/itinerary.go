// Package itinerary reads the trip the companion works from. The trip is
// planned elsewhere; here it is read-only input apart from activity status.
package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/companion/internal/model"
)

const dateLayout = "2006-01-02"

// ErrNoDay is returned for a day number the trip does not have.
var ErrNoDay = errors.New("itinerary: no such day")

// ErrNoActivity is returned for an unknown activity id.
var ErrNoActivity = errors.New("itinerary: no such activity")

// Trip is a planned trip.
type Trip struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Days        []Day              `json:"days"`
	Lodgings    []Lodging          `json:"lodgings,omitempty"`
	Preferences map[string]float64 `json:"preferences,omitempty"`
}

// Day is one day of the trip.
type Day struct {
	Number     int              `json:"number"`
	Date       string           `json:"date,omitempty"` // YYYY-MM-DD
	City       string           `json:"city,omitempty"`
	Activities []model.Activity `json:"activities"`
}

// Lodging is a place to stay.
type Lodging struct {
	City      string `json:"city"`
	Name      string `json:"name,omitempty"`
	CheckIn   string `json:"checkIn,omitempty"` // YYYY-MM-DD
	Nights    int    `json:"nights,omitempty"`
	Confirmed bool   `json:"confirmed"`
}

// Load reads and validates a trip JSON file.
func Load(path string) (*Trip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trip: %w", err)
	}
	trip, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trip, nil
}

// Parse decodes and validates a trip, filling defaults.
func Parse(data []byte) (*Trip, error) {
	var t Trip
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse trip: %w", err)
	}
	if err := t.normalize(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Trip) normalize() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("trip id is required")
	}
	if len(t.Days) == 0 {
		return errors.New("trip has no days")
	}

	days := make(map[int]bool, len(t.Days))
	ids := make(map[string]bool)
	for di := range t.Days {
		d := &t.Days[di]
		if d.Number <= 0 {
			return fmt.Errorf("day %d: number must be positive", di)
		}
		if days[d.Number] {
			return fmt.Errorf("day %d: duplicate", d.Number)
		}
		days[d.Number] = true
		if d.Date != "" {
			if _, err := time.Parse(dateLayout, d.Date); err != nil {
				return fmt.Errorf("day %d: date: %w", d.Number, err)
			}
		}

		for ai := range d.Activities {
			a := &d.Activities[ai]
			if a.ID == "" {
				return fmt.Errorf("day %d: activity %d has no id", d.Number, ai)
			}
			if ids[a.ID] {
				return fmt.Errorf("day %d: duplicate activity id %q", d.Number, a.ID)
			}
			ids[a.ID] = true
			if a.Coordinates != nil && !a.Coordinates.Valid() {
				return fmt.Errorf("activity %s: coordinates out of range", a.ID)
			}
			if a.IdealTime == "" {
				a.IdealTime = model.TimeAny
			}
			if a.Status == "" {
				a.Status = model.StatusPlanned
			}
			if a.City == "" {
				a.City = d.City
			}
		}
	}
	return nil
}

// Day returns day n.
func (t *Trip) Day(n int) (*Day, error) {
	for i := range t.Days {
		if t.Days[i].Number == n {
			return &t.Days[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNoDay, n)
}

// DayOn returns the day whose date matches at in loc. A nil loc means UTC.
func (t *Trip) DayOn(at time.Time, loc *time.Location) (*Day, bool) {
	if loc == nil {
		loc = time.UTC
	}
	date := at.In(loc).Format(dateLayout)
	for i := range t.Days {
		if t.Days[i].Date == date {
			return &t.Days[i], true
		}
	}
	return nil, false
}

// Activities returns a copy of day n's activities.
func (t *Trip) Activities(n int) ([]model.Activity, error) {
	d, err := t.Day(n)
	if err != nil {
		return nil, err
	}
	out := make([]model.Activity, len(d.Activities))
	copy(out, d.Activities)
	return out, nil
}

// Activity finds an activity by id anywhere in the trip.
func (t *Trip) Activity(id string) (*model.Activity, error) {
	for di := range t.Days {
		for ai := range t.Days[di].Activities {
			if t.Days[di].Activities[ai].ID == id {
				return &t.Days[di].Activities[ai], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoActivity, id)
}

// SetStatus records what the traveler did with an activity.
func (t *Trip) SetStatus(id string, status model.ActivityStatus) error {
	a, err := t.Activity(id)
	if err != nil {
		return err
	}
	a.Status = status
	return nil
}

// LodgingCities returns the lowercased cities with confirmed lodging.
func (t *Trip) LodgingCities() map[string]bool {
	out := make(map[string]bool)
	for _, l := range t.Lodgings {
		if l.Confirmed && l.City != "" {
			out[strings.ToLower(strings.TrimSpace(l.City))] = true
		}
	}
	return out
}
