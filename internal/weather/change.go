package weather

import (
	"math"
	"time"

	"github.com/abelbrown/companion/internal/model"
)

// SignificantChange reports whether cur differs enough from prev to be worth
// telling the traveler: a different condition class, or a temperature swing
// of at least tempSwing degrees. Either snapshot missing means no change.
func SignificantChange(prev, cur *model.WeatherContext, tempSwing float64) bool {
	if prev == nil || cur == nil {
		return false
	}
	if prev.Condition.Class() != cur.Condition.Class() {
		return true
	}
	return math.Abs(cur.Temperature-prev.Temperature) >= tempSwing
}

// PrecipitationImminent reports whether it is dry now but an hour within the
// lookahead is wet or at least minChance percent likely to be.
func PrecipitationImminent(cur *model.WeatherContext, now time.Time, lookahead time.Duration, minChance float64) bool {
	if cur == nil || cur.Condition.Wet() || cur.PrecipitationChance >= minChance {
		return false
	}
	end := now.Add(lookahead)
	for _, h := range cur.Hourly {
		if h.Time.Before(now) || h.Time.After(end) {
			continue
		}
		if h.Condition.Wet() || h.PrecipitationChance >= minChance {
			return true
		}
	}
	return false
}
