package ranking

import (
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/abelbrown/companion/internal/model"
)

// QualifyAt is the reading a signal needs before its reason is worth showing.
const QualifyAt = 0.7

// SerendipityExclude is how many top recommendations serendipity skips.
const SerendipityExclude = 3

// Weights are the relative importance of each signal.
type Weights struct {
	Distance   float64 `json:"distance"`
	Time       float64 `json:"time"`
	Weather    float64 `json:"weather"`
	Preference float64 `json:"preference"`
	Novelty    float64 `json:"novelty"`
}

// DefaultWeights: distance matters most, novelty least.
func DefaultWeights() Weights {
	return Weights{Distance: 3, Time: 2, Weather: 1.5, Preference: 1.5, Novelty: 1}
}

type weighted struct {
	signal Signal
	weight float64
}

// Scorer combines signals into ranked, explained recommendations.
// Final score = sum(reading * weight) / sum(weights)
type Scorer struct {
	signals []weighted

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewScorer creates an empty scorer. Add signals with Add.
func NewScorer() *Scorer {
	return &Scorer{rng: rand.New(rand.NewPCG(1, 2))}
}

// DefaultScorer returns the standard five-signal scorer.
func DefaultScorer(w Weights) *Scorer {
	return NewScorer().
		Add(NewDistanceSignal(), w.Distance).
		Add(NewTimeSignal(), w.Time).
		Add(NewWeatherSignal(), w.Weather).
		Add(NewPreferenceSignal(), w.Preference).
		Add(NewNoveltySignal(), w.Novelty)
}

// Add adds a signal with a weight
func (s *Scorer) Add(sig Signal, weight float64) *Scorer {
	s.signals = append(s.signals, weighted{signal: sig, weight: weight})
	return s
}

// WithRand sets the source used by Serendipity.
func (s *Scorer) WithRand(r *rand.Rand) *Scorer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = r
	return s
}

// Score scores every activity and returns them best first.
//
// Activities with a qualifying reason always rank above those with only a
// generic one; a generic activity's score is capped at the lowest
// qualifying score so the list stays non-increasing. Ties keep input order.
func (s *Scorer) Score(activities []model.Activity, ctx *Context) []model.EnrichedActivity {
	return s.score(activities, ctx, doneCategories(activities))
}

// score ranks activities; done holds categories already visited on the day,
// which may come from a wider list than the one being ranked.
func (s *Scorer) score(activities []model.Activity, ctx *Context, done map[string]bool) []model.EnrichedActivity {
	if len(activities) == 0 {
		return []model.EnrichedActivity{}
	}
	ctx.doneCategories = done

	out := make([]model.EnrichedActivity, len(activities))
	for i := range activities {
		out[i] = s.enrich(&activities[i], ctx)
	}

	// Stable sort keeps input order for ties.
	sort.SliceStable(out, func(i, j int) bool {
		qi, qj := out[i].Qualified(), out[j].Qualified()
		if qi != qj {
			return qi
		}
		return out[i].Score > out[j].Score
	})

	floor := 1.0
	for i := range out {
		if out[i].Qualified() {
			floor = out[i].Score
			continue
		}
		if out[i].Score > floor {
			out[i].Score = floor
		}
	}
	return out
}

// Top returns the n best activities.
func (s *Scorer) Top(activities []model.Activity, ctx *Context, n int) []model.EnrichedActivity {
	ranked := s.Score(activities, ctx)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func doneCategories(activities []model.Activity) map[string]bool {
	done := lo.Filter(activities, func(a model.Activity, _ int) bool { return a.Done() })
	return lo.SliceToMap(done, func(a model.Activity) (string, bool) {
		return strings.ToLower(strings.TrimSpace(a.Category)), true
	})
}

type contribution struct {
	reason   model.Reason
	weighted float64
}

func (s *Scorer) enrich(a *model.Activity, ctx *Context) model.EnrichedActivity {
	e := model.EnrichedActivity{Activity: *a}
	if ctx.Location != nil && a.Coordinates != nil {
		d := model.DistanceMeters(ctx.Location.Coordinates, *a.Coordinates)
		e.DistanceMeters = &d
	}

	var sum, weightSum float64
	var qualifying []contribution
	for _, w := range s.signals {
		r := w.signal.Read(a, ctx)
		setSignal(&e.Signals, w.signal.Category(), r.Value)

		sum += r.Value * w.weight
		weightSum += w.weight
		if r.Value >= QualifyAt && r.Reason.Text != "" {
			qualifying = append(qualifying, contribution{reason: r.Reason, weighted: r.Value * w.weight})
		}
	}
	if weightSum > 0 {
		e.Score = sum / weightSum
	}

	if len(qualifying) == 0 {
		e.WhyNow = model.WhyNow{Primary: genericReason(a)}
		return e
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		if qualifying[i].weighted != qualifying[j].weighted {
			return qualifying[i].weighted > qualifying[j].weighted
		}
		return qualifying[i].reason.Category.Rank() < qualifying[j].reason.Category.Rank()
	})
	e.WhyNow.Primary = qualifying[0].reason
	for _, c := range qualifying[1:] {
		e.WhyNow.Secondary = append(e.WhyNow.Secondary, c.reason)
	}
	return e
}

func setSignal(sig *model.Signals, cat model.ReasonCategory, v float64) {
	switch cat {
	case model.ReasonDistance:
		sig.Distance = v
	case model.ReasonTime:
		sig.Time = v
	case model.ReasonWeather:
		sig.Weather = v
	case model.ReasonPreference:
		sig.Preference = v
	case model.ReasonNovelty:
		sig.Novelty = v
	}
}

func genericReason(a *model.Activity) model.Reason {
	text := "On today's plan"
	if a.Done() {
		text = "Already " + string(a.Status)
	}
	return model.Reason{Category: model.ReasonGeneral, Text: text}
}

// Serendipity picks a random activity outside the obvious choices: not in
// the top three, not rejected, not done. Nil when nothing is left.
func (s *Scorer) Serendipity(activities []model.Activity, ctx *Context) *model.EnrichedActivity {
	ranked := s.Score(activities, ctx)
	if len(ranked) <= SerendipityExclude {
		return nil
	}

	pool := lo.Filter(ranked[SerendipityExclude:], func(e model.EnrichedActivity, _ int) bool {
		return !e.Activity.Done() && !ctx.notInterested(e.Activity.ID)
	})
	if len(pool) == 0 {
		return nil
	}

	s.mu.Lock()
	pick := pool[s.rng.IntN(len(pool))]
	s.mu.Unlock()
	return &pick
}
