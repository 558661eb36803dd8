package ranking

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/abelbrown/companion/internal/model"
)

// DistanceSignal scores activities by how close they are.
// Score: 1/(1 + d/Scale), so Scale meters away reads 0.5.
type DistanceSignal struct {
	// Scale is the distance that halves the score. Default: 2 km
	Scale float64
}

func NewDistanceSignal() *DistanceSignal {
	return &DistanceSignal{Scale: 2000}
}

func (s *DistanceSignal) Name() string                   { return "distance" }
func (s *DistanceSignal) Category() model.ReasonCategory { return model.ReasonDistance }

func (s *DistanceSignal) Read(a *model.Activity, ctx *Context) Reading {
	if ctx.Location == nil || a.Coordinates == nil {
		return Neutral
	}

	d := model.DistanceMeters(ctx.Location.Coordinates, *a.Coordinates)
	v := 1.0 / (1.0 + d/s.Scale)
	return Reading{
		Value:  v,
		Reason: model.Reason{Category: model.ReasonDistance, Text: walkText(d)},
	}
}

// walkText renders a distance as walking time, assuming 80 m/min.
func walkText(d float64) string {
	mins := int(math.Ceil(d / 80))
	if mins < 1 {
		mins = 1
	}
	if d < 1000 {
		return fmt.Sprintf("%d min walk (%d m)", mins, int(math.Round(d)))
	}
	return fmt.Sprintf("%d min walk (%.1f km)", mins, d/1000)
}

// window is a span of minutes since local midnight. End < Start wraps.
type window struct {
	Start, End int
}

func (w window) contains(m int) bool {
	if w.End >= w.Start {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

// gap is the shortest distance in minutes from m to the window.
func (w window) gap(m int) int {
	if w.contains(m) {
		return 0
	}
	return min(circular(m, w.Start), circular(m, w.End))
}

func circular(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	return min(d, 24*60-d)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// TimeSignal scores how well now fits the activity's ideal time of day,
// and whether it is open.
type TimeSignal struct {
	// DecayPerHour is subtracted for every hour outside the ideal window.
	DecayPerHour float64
	// Floor is the lowest score for an open activity at the wrong time.
	Floor float64
	// ClosingSoon is the lead time that makes an open activity urgent.
	ClosingSoon time.Duration
}

func NewTimeSignal() *TimeSignal {
	return &TimeSignal{DecayPerHour: 0.25, Floor: 0.1, ClosingSoon: 90 * time.Minute}
}

func (s *TimeSignal) Name() string                   { return "time" }
func (s *TimeSignal) Category() model.ReasonCategory { return model.ReasonTime }

// Score for an activity that is closed right now.
const closedScore = 0.05

func (s *TimeSignal) Read(a *model.Activity, ctx *Context) Reading {
	local := ctx.LocalNow()
	m := minuteOfDay(local)

	r := s.idealFit(a, ctx, local, m)

	if a.Hours != nil {
		if !a.Hours.IsOpen(m) {
			return Reading{Value: closedScore}
		}
		left := a.Hours.MinutesUntilClose(m)
		if time.Duration(left)*time.Minute <= s.ClosingSoon {
			r.Value = math.Max(r.Value, 0.9)
			r.Reason = model.Reason{
				Category:  model.ReasonTime,
				Text:      fmt.Sprintf("Closes in %d min", left),
				TimeBound: true,
			}
		}
	}
	return r
}

func (s *TimeSignal) idealFit(a *model.Activity, ctx *Context, local time.Time, m int) Reading {
	tod := a.IdealTime
	if tod == "" || tod == model.TimeAny {
		return Neutral
	}

	w, ok := idealWindow(tod, ctx.Weather, local.Location())
	if !ok {
		return Neutral
	}

	gap := w.gap(m)
	if gap > 0 {
		v := 1.0 - s.DecayPerHour*float64(gap)/60.0
		return Reading{Value: math.Max(v, s.Floor)}
	}

	reason := model.Reason{Category: model.ReasonTime, Text: "Ideal time: " + todLabel(tod)}
	if tod == model.TimeGoldenHour && ctx.Weather != nil && !ctx.Weather.Sunset.IsZero() {
		if left, ok := ctx.Weather.UntilSunset(ctx.Now); ok {
			reason.Text = fmt.Sprintf("Sunset in %d min", int(left.Minutes()))
			reason.TimeBound = true
		}
	}
	return Reading{Value: 1.0, Reason: reason}
}

// idealWindow returns the local window for a time of day. Sunrise and
// golden hour follow the forecast's sun times when present.
func idealWindow(tod model.TimeOfDay, w *model.WeatherContext, loc *time.Location) (window, bool) {
	switch tod {
	case model.TimeSunrise:
		if w != nil && !w.Sunrise.IsZero() {
			rise := minuteOfDay(w.Sunrise.In(loc))
			return window{wrapMinute(rise - 30), wrapMinute(rise + 60)}, true
		}
		return window{5*60 + 30, 7 * 60}, true
	case model.TimeMorning:
		return window{7 * 60, 11 * 60}, true
	case model.TimeMidday:
		return window{11 * 60, 14 * 60}, true
	case model.TimeAfternoon:
		return window{13 * 60, 17 * 60}, true
	case model.TimeGoldenHour:
		if w != nil && !w.Sunset.IsZero() {
			set := minuteOfDay(w.Sunset.In(loc))
			return window{wrapMinute(set - 90), set}, true
		}
		return window{18 * 60, 19*60 + 30}, true
	case model.TimeEvening:
		return window{18 * 60, 21 * 60}, true
	case model.TimeNight:
		return window{21 * 60, 2 * 60}, true
	}
	return window{}, false
}

func wrapMinute(m int) int {
	m %= 24 * 60
	if m < 0 {
		m += 24 * 60
	}
	return m
}

func todLabel(tod model.TimeOfDay) string {
	return strings.ReplaceAll(string(tod), "_", " ")
}

// WeatherSignal scores outdoor activities by current conditions.
// Indoor activities and missing or stale weather read neutral.
type WeatherSignal struct {
	// WetChance caps outdoor scores when precipitation is this likely.
	WetChance float64
	// GoldenLead is how long before sunset golden hour starts.
	GoldenLead time.Duration
}

func NewWeatherSignal() *WeatherSignal {
	return &WeatherSignal{WetChance: 60, GoldenLead: 90 * time.Minute}
}

func (s *WeatherSignal) Name() string                   { return "weather" }
func (s *WeatherSignal) Category() model.ReasonCategory { return model.ReasonWeather }

var outdoorByCondition = map[model.Condition]float64{
	model.ConditionStormy: 0.05,
	model.ConditionRainy:  0.1,
	model.ConditionSnowy:  0.3,
	model.ConditionFoggy:  0.35,
	model.ConditionCloudy: 0.55,
	model.ConditionSunny:  0.8,
}

func (s *WeatherSignal) Read(a *model.Activity, ctx *Context) Reading {
	w := ctx.FreshWeather()
	if w == nil || a.Indoor {
		return Neutral
	}

	v, ok := outdoorByCondition[w.Condition]
	if !ok {
		return Neutral
	}
	if w.PrecipitationChance >= s.WetChance {
		return Reading{Value: math.Min(v, 0.3)}
	}

	if a.IdealTime == model.TimeGoldenHour && w.Condition == model.ConditionSunny {
		if left, ok := w.UntilSunset(ctx.Now); ok && left <= s.GoldenLead {
			return Reading{
				Value: 1.0,
				Reason: model.Reason{
					Category:  model.ReasonWeather,
					Text:      fmt.Sprintf("Clear sky for golden hour, sunset in %d min", int(left.Minutes())),
					TimeBound: true,
				},
			}
		}
	}

	r := Reading{Value: v}
	if w.Condition == model.ConditionSunny {
		r.Reason = model.Reason{Category: model.ReasonWeather, Text: fmt.Sprintf("Clear skies, %.0f°C", w.Temperature)}
	}
	return r
}

// PreferenceSignal scores by learned interest in the activity's labels.
type PreferenceSignal struct {
	// NoMatch is the score when preferences exist but none overlap.
	NoMatch float64
}

func NewPreferenceSignal() *PreferenceSignal {
	return &PreferenceSignal{NoMatch: 0.35}
}

func (s *PreferenceSignal) Name() string                   { return "preference" }
func (s *PreferenceSignal) Category() model.ReasonCategory { return model.ReasonPreference }

func (s *PreferenceSignal) Read(a *model.Activity, ctx *Context) Reading {
	if len(ctx.Preferences) == 0 {
		return Neutral
	}

	best, label := -1.0, ""
	for _, l := range a.Labels() {
		if w, ok := ctx.Preferences[l]; ok && w > best {
			best, label = w, l
		}
	}
	if best < 0 {
		return Reading{Value: s.NoMatch}
	}
	best = math.Max(0, math.Min(best, 1))
	return Reading{
		Value:  best,
		Reason: model.Reason{Category: model.ReasonPreference, Text: "You tend to enjoy " + label},
	}
}

// NoveltySignal favors categories the traveler hasn't seen much of.
type NoveltySignal struct {
	// Base is the score for an ordinary unvisited activity.
	Base float64
	// MaxPenalty is subtracted at full suggestion pressure.
	MaxPenalty float64
}

func NewNoveltySignal() *NoveltySignal {
	return &NoveltySignal{Base: 0.8, MaxPenalty: 0.3}
}

func (s *NoveltySignal) Name() string                   { return "novelty" }
func (s *NoveltySignal) Category() model.ReasonCategory { return model.ReasonNovelty }

func (s *NoveltySignal) Read(a *model.Activity, ctx *Context) Reading {
	if a.Done() {
		return Reading{Value: 0}
	}

	cat := strings.ToLower(strings.TrimSpace(a.Category))
	if cat == "" {
		return Reading{Value: s.Base}
	}

	seen := ctx.doneCategories[cat]
	if ctx.Feedback != nil && ctx.Feedback.Suggested(cat) {
		seen = true
	}
	if !seen {
		return Reading{
			Value:  1.0,
			Reason: model.Reason{Category: model.ReasonNovelty, Text: "Something new: first " + cat + " of the trip"},
		}
	}

	v := s.Base
	if ctx.Feedback != nil {
		v -= s.MaxPenalty * math.Max(0, math.Min(ctx.Feedback.Pressure(cat), 1))
	}
	return Reading{Value: v}
}

// ConstantSignal always returns the same reading (useful for testing/baseline)
type ConstantSignal struct {
	name     string
	category model.ReasonCategory
	reading  Reading
}

func NewConstantSignal(category model.ReasonCategory, value float64, text string) *ConstantSignal {
	return &ConstantSignal{
		name:     "constant_" + string(category),
		category: category,
		reading:  Reading{Value: value, Reason: model.Reason{Category: category, Text: text}},
	}
}

func (s *ConstantSignal) Name() string                   { return s.name }
func (s *ConstantSignal) Category() model.ReasonCategory { return s.category }

func (s *ConstantSignal) Read(a *model.Activity, ctx *Context) Reading {
	return s.reading
}
