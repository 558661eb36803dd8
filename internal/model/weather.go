package model

import "time"

// Condition is the normalized sky condition.
type Condition string

const (
	ConditionSunny  Condition = "sunny"
	ConditionCloudy Condition = "cloudy"
	ConditionRainy  Condition = "rainy"
	ConditionStormy Condition = "stormy"
	ConditionSnowy  Condition = "snowy"
	ConditionFoggy  Condition = "foggy"
)

// Wet reports whether the condition makes outdoor plans miserable.
func (c Condition) Wet() bool {
	return c == ConditionRainy || c == ConditionStormy
}

// Class groups conditions for change detection. Stormy is kept apart from
// rainy so that a storm rolling in counts as a change.
func (c Condition) Class() string {
	switch c {
	case ConditionSunny:
		return "clear"
	case ConditionCloudy:
		return "cloudy"
	case ConditionRainy:
		return "wet"
	case ConditionStormy:
		return "severe"
	case ConditionSnowy:
		return "cold"
	case ConditionFoggy:
		return "low_visibility"
	default:
		return "unknown"
	}
}

// HourlyForecast is one hour of forecast data.
type HourlyForecast struct {
	Time                time.Time `json:"time"`
	Condition           Condition `json:"condition"`
	Temperature         float64   `json:"temperature"`
	PrecipitationChance float64   `json:"precipitationChance"` // 0-100
}

// WeatherContext is a normalized weather snapshot for one location.
type WeatherContext struct {
	Condition           Condition        `json:"condition"`
	Temperature         float64          `json:"temperature"` // Celsius
	FeelsLike           float64          `json:"feelsLike"`
	PrecipitationChance float64          `json:"precipitationChance"` // 0-100
	IsDaylight          bool             `json:"isDaylight"`
	Sunrise             time.Time        `json:"sunrise"`
	Sunset              time.Time        `json:"sunset"`
	FetchedAt           time.Time        `json:"fetchedAt"`
	LocationKey         string           `json:"locationKey"`
	Hourly              []HourlyForecast `json:"hourly,omitempty"`
}

// Fresh reports whether the snapshot is younger than maxAge at now.
func (w *WeatherContext) Fresh(now time.Time, maxAge time.Duration) bool {
	if w == nil || w.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(w.FetchedAt) <= maxAge
}

// UntilSunset returns the time left before sunset, and false if sunset is
// unknown or already passed.
func (w *WeatherContext) UntilSunset(now time.Time) (time.Duration, bool) {
	if w == nil || w.Sunset.IsZero() {
		return 0, false
	}
	d := w.Sunset.Sub(now)
	if d < 0 {
		return 0, false
	}
	return d, true
}
