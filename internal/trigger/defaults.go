package trigger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/abelbrown/companion/internal/links"
	"github.com/abelbrown/companion/internal/model"
	"github.com/abelbrown/companion/internal/weather"
)

// Policy holds the thresholds and cooldowns of the built-in triggers.
type Policy struct {
	ProximityRadius   float64       // meters
	ProximityTopN     int           // only the best N recommendations count
	ProximityCooldown time.Duration

	TimeSensitiveMinScore float64
	TimeSensitiveCooldown time.Duration

	TempSwing       float64 // °C
	PrecipLookahead time.Duration
	PrecipChance    float64 // percent
	WeatherCooldown time.Duration

	RestAfter    time.Duration
	RestCooldown time.Duration

	LodgingCooldown time.Duration

	BookingTopN     int
	BookingCooldown time.Duration
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ProximityRadius:   200,
		ProximityTopN:     10,
		ProximityCooldown: 2 * time.Hour,

		TimeSensitiveMinScore: 0.6,
		TimeSensitiveCooldown: 3 * time.Hour,

		TempSwing:       8,
		PrecipLookahead: 2 * time.Hour,
		PrecipChance:    60,
		WeatherCooldown: 3 * time.Hour,

		RestAfter:    150 * time.Minute,
		RestCooldown: 2 * time.Hour,

		LodgingCooldown: 6 * time.Hour,

		BookingTopN:     3,
		BookingCooldown: 12 * time.Hour,
	}
}

// Built-in trigger ids.
const (
	IDProximity     = "proximity"
	IDTimeSensitive = "time-sensitive"
	IDWeatherPivot  = "weather-pivot"
	IDRest          = "rest"
	IDLodging       = "lodging"
	IDBooking       = "booking"
)

// Defaults returns the built-in triggers. booking builds lodging and ticket
// links, search builds directions; either may be nil to omit actions.
func Defaults(p Policy, booking, search links.Generator) []Trigger {
	return []Trigger{
		proximity(p, search),
		timeSensitive(p, search),
		weatherPivot(p, search),
		rest(p, search),
		lodging(p, booking),
		bookingReminder(p, booking),
	}
}

func activitySubject(e *model.EnrichedActivity) Subject {
	return Subject{
		Entity:   e.Activity.ID,
		Category: strings.ToLower(e.Activity.Category),
		Activity: e,
	}
}

func subjects(recs []model.EnrichedActivity, keep func(e *model.EnrichedActivity) bool) []Subject {
	var out []Subject
	for i := range recs {
		if keep(&recs[i]) {
			out = append(out, activitySubject(&recs[i]))
		}
	}
	return out
}

// action builds a message action from a generator, or nil when the
// generator is missing or has nothing to link to.
func action(g links.Generator, kind model.ActionType, p links.Params) *model.MessageAction {
	if g == nil {
		return nil
	}
	l, err := g.Generate(p)
	if err != nil {
		return nil
	}
	return &model.MessageAction{
		Label:   l.Label,
		Type:    kind,
		Payload: map[string]string{"url": l.URL, "provider": l.Provider},
	}
}

func proximity(p Policy, search links.Generator) Trigger {
	return Trigger{
		ID:       IDProximity,
		Type:     model.MessageProximity,
		Category: "nearby",
		Priority: model.PriorityMedium,
		Cooldown: p.ProximityCooldown,
		TTL:      30 * time.Minute,
		Condition: func(ctx *Context, recs []model.EnrichedActivity) []Subject {
			if ctx.Location == nil {
				return nil
			}
			top := recs[:min(len(recs), p.ProximityTopN)]
			return subjects(top, func(e *model.EnrichedActivity) bool {
				return !e.Activity.Done() && e.DistanceMeters != nil && *e.DistanceMeters <= p.ProximityRadius
			})
		},
		Generate: func(ctx *Context, s Subject) (model.ProactiveMessage, error) {
			e := s.Activity
			return model.ProactiveMessage{
				Message: fmt.Sprintf("You're %d m from %s", int(math.Round(*e.DistanceMeters)), e.Activity.Name),
				Detail:  e.WhyNow.Primary.Text,
				Action:  action(search, model.ActionNavigate, links.Params{Activity: &e.Activity}),
			}, nil
		},
	}
}

func timeSensitive(p Policy, search links.Generator) Trigger {
	return Trigger{
		ID:       IDTimeSensitive,
		Type:     model.MessageTimeSensitive,
		Category: "timing",
		Priority: model.PriorityHigh,
		Cooldown: p.TimeSensitiveCooldown,
		TTL:      time.Hour,
		Condition: func(ctx *Context, recs []model.EnrichedActivity) []Subject {
			return subjects(recs, func(e *model.EnrichedActivity) bool {
				return !e.Activity.Done() && e.Score >= p.TimeSensitiveMinScore && e.WhyNow.Primary.TimeBound
			})
		},
		Generate: func(ctx *Context, s Subject) (model.ProactiveMessage, error) {
			e := s.Activity
			return model.ProactiveMessage{
				Message: fmt.Sprintf("%s: %s", e.Activity.Name, e.WhyNow.Primary.Text),
				Detail:  "Worth going now",
				Action:  action(search, model.ActionNavigate, links.Params{Activity: &e.Activity}),
			}, nil
		},
	}
}

func weatherPivot(p Policy, search links.Generator) Trigger {
	return Trigger{
		ID:       IDWeatherPivot,
		Type:     model.MessageWeatherPivot,
		Category: "weather",
		Priority: model.PriorityHigh,
		Cooldown: p.WeatherCooldown,
		TTL:      2 * time.Hour,
		Condition: func(ctx *Context, recs []model.EnrichedActivity) []Subject {
			cur := ctx.FreshWeather()
			if cur == nil {
				return nil
			}
			if weather.SignificantChange(ctx.PrevWeather, cur, p.TempSwing) ||
				weather.PrecipitationImminent(cur, ctx.Now, p.PrecipLookahead, p.PrecipChance) {
				return []Subject{{}}
			}
			return nil
		},
		Generate: func(ctx *Context, s Subject) (model.ProactiveMessage, error) {
			cur := ctx.FreshWeather()
			msg := model.ProactiveMessage{
				Action: action(search, model.ActionSearch, links.Params{Query: "museum", City: cityOf(ctx)}),
			}
			switch {
			case weather.SignificantChange(ctx.PrevWeather, cur, p.TempSwing) && ctx.PrevWeather.Condition != cur.Condition:
				msg.Message = fmt.Sprintf("Weather turning %s", cur.Condition)
				msg.Detail = "Plans re-ranked for the new conditions"
			case weather.SignificantChange(ctx.PrevWeather, cur, p.TempSwing):
				msg.Message = fmt.Sprintf("Temperature now %.0f°C, was %.0f°C", cur.Temperature, ctx.PrevWeather.Temperature)
				msg.Detail = "Dress for it"
			default:
				msg.Message = fmt.Sprintf("Rain likely within %s", humanize(p.PrecipLookahead))
				msg.Detail = "Good moment to head indoors"
			}
			return msg, nil
		},
	}
}

func rest(p Policy, search links.Generator) Trigger {
	return Trigger{
		ID:       IDRest,
		Type:     model.MessageRest,
		Category: "rest",
		Priority: model.PriorityLow,
		Cooldown: p.RestCooldown,
		TTL:      time.Hour,
		Condition: func(ctx *Context, recs []model.EnrichedActivity) []Subject {
			if ctx.LastBreak.IsZero() || ctx.Now.Sub(ctx.LastBreak) < p.RestAfter {
				return nil
			}
			return []Subject{{}}
		},
		Generate: func(ctx *Context, s Subject) (model.ProactiveMessage, error) {
			return model.ProactiveMessage{
				Message: fmt.Sprintf("On the go for %s. Time for a break?", humanize(ctx.Now.Sub(ctx.LastBreak))),
				Action:  action(search, model.ActionSearch, links.Params{Query: "cafe", City: cityOf(ctx)}),
			}, nil
		},
	}
}

func lodging(p Policy, booking links.Generator) Trigger {
	return Trigger{
		ID:       IDLodging,
		Type:     model.MessageLodging,
		Category: "lodging",
		Priority: model.PriorityHigh,
		Cooldown: p.LodgingCooldown,
		TTL:      6 * time.Hour,
		Condition: func(ctx *Context, recs []model.EnrichedActivity) []Subject {
			city := cityOf(ctx)
			if city == "" || ctx.HasLodging(city) {
				return nil
			}
			return []Subject{{Entity: strings.ToLower(city), City: city}}
		},
		Generate: func(ctx *Context, s Subject) (model.ProactiveMessage, error) {
			return model.ProactiveMessage{
				Message: fmt.Sprintf("No place to stay booked in %s yet", s.City),
				Action:  action(booking, model.ActionBook, links.Params{City: s.City, CheckIn: ctx.Now, Nights: 1}),
			}, nil
		},
	}
}

func bookingReminder(p Policy, booking links.Generator) Trigger {
	return Trigger{
		ID:       IDBooking,
		Type:     model.MessageBooking,
		Category: "booking",
		Priority: model.PriorityMedium,
		Cooldown: p.BookingCooldown,
		TTL:      12 * time.Hour,
		Condition: func(ctx *Context, recs []model.EnrichedActivity) []Subject {
			top := recs[:min(len(recs), p.BookingTopN)]
			return subjects(top, func(e *model.EnrichedActivity) bool {
				a := &e.Activity
				return (a.Bookable || a.Popular) && !a.Booked && !a.Done()
			})
		},
		Generate: func(ctx *Context, s Subject) (model.ProactiveMessage, error) {
			a := &s.Activity.Activity
			text := a.Name + " can be booked ahead"
			if a.Popular {
				text = a.Name + " sells out. Book ahead?"
			}
			return model.ProactiveMessage{
				Message: text,
				Action:  action(booking, model.ActionBook, links.Params{Activity: a, City: cityOf(ctx)}),
			}, nil
		},
	}
}

func cityOf(ctx *Context) string {
	if ctx.Location == nil {
		return ""
	}
	return strings.TrimSpace(ctx.Location.City)
}

// humanize renders a duration as "2h 45m" or "40m".
func humanize(d time.Duration) string {
	d = d.Round(time.Minute)
	h, m := int(d.Hours()), int(d.Minutes())%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// Types returns the message types of the given triggers.
func Types(triggers []Trigger) []model.MessageType {
	return lo.Uniq(lo.Map(triggers, func(t Trigger, _ int) model.MessageType { return t.Type }))
}
