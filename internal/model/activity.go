package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is an activity's preferred time slot.
type TimeOfDay string

const (
	TimeAny        TimeOfDay = "any"
	TimeSunrise    TimeOfDay = "sunrise"
	TimeMorning    TimeOfDay = "morning"
	TimeMidday     TimeOfDay = "midday"
	TimeAfternoon  TimeOfDay = "afternoon"
	TimeGoldenHour TimeOfDay = "golden_hour"
	TimeEvening    TimeOfDay = "evening"
	TimeNight      TimeOfDay = "night"
)

// ActivityStatus tracks what the traveler did with an activity.
type ActivityStatus string

const (
	StatusPlanned   ActivityStatus = "planned"
	StatusCompleted ActivityStatus = "completed"
	StatusSkipped   ActivityStatus = "skipped"
)

// OpeningHours is a same-day opening window in minutes since local midnight.
// A close earlier than open wraps past midnight.
type OpeningHours struct {
	Open  int `json:"open"`
	Close int `json:"close"`
}

// ParseOpeningHours parses "09:00-17:30".
func ParseOpeningHours(s string) (OpeningHours, error) {
	openPart, closePart, ok := strings.Cut(s, "-")
	if !ok {
		return OpeningHours{}, fmt.Errorf("opening hours %q: missing '-'", s)
	}
	o, err := parseClock(strings.TrimSpace(openPart))
	if err != nil {
		return OpeningHours{}, fmt.Errorf("opening hours %q: %w", s, err)
	}
	c, err := parseClock(strings.TrimSpace(closePart))
	if err != nil {
		return OpeningHours{}, fmt.Errorf("opening hours %q: %w", s, err)
	}
	return OpeningHours{Open: o, Close: c}, nil
}

// UnmarshalJSON accepts either "09:00-17:30" or {"open":540,"close":1050}.
func (h *OpeningHours) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := ParseOpeningHours(s)
		if err != nil {
			return err
		}
		*h = parsed
		return nil
	}
	type alias OpeningHours
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*h = OpeningHours(a)
	return nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsOpen reports whether minute-of-day m falls inside the window.
func (h OpeningHours) IsOpen(m int) bool {
	if h.Close >= h.Open {
		return m >= h.Open && m < h.Close
	}
	return m >= h.Open || m < h.Close
}

// MinutesUntilClose returns minutes until closing from minute-of-day m.
// Only meaningful when IsOpen(m).
func (h OpeningHours) MinutesUntilClose(m int) int {
	d := h.Close - m
	if d < 0 {
		d += 24 * 60
	}
	return d
}

// Activity is one candidate stop from the itinerary. Read-only input.
type Activity struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category"`
	Tags        []string       `json:"tags,omitempty"`
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	City        string         `json:"city,omitempty"`
	IdealTime   TimeOfDay      `json:"idealTime,omitempty"`
	Indoor      bool           `json:"indoor,omitempty"`
	Status      ActivityStatus `json:"status,omitempty"`
	Hours       *OpeningHours  `json:"hours,omitempty"`
	Bookable    bool           `json:"bookable,omitempty"`
	Popular     bool           `json:"popular,omitempty"`
	Booked      bool           `json:"booked,omitempty"`
}

// Done reports whether the activity is completed or skipped.
func (a *Activity) Done() bool {
	return a.Status == StatusCompleted || a.Status == StatusSkipped
}

// Labels returns the lowercased category followed by the lowercased tags.
func (a *Activity) Labels() []string {
	labels := make([]string, 0, len(a.Tags)+1)
	if a.Category != "" {
		labels = append(labels, strings.ToLower(a.Category))
	}
	for _, t := range a.Tags {
		labels = append(labels, strings.ToLower(t))
	}
	return labels
}
