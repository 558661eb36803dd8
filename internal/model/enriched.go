package model

// ReasonCategory tags which signal explains a recommendation.
type ReasonCategory string

const (
	ReasonDistance   ReasonCategory = "distance"
	ReasonTime       ReasonCategory = "time"
	ReasonWeather    ReasonCategory = "weather"
	ReasonPreference ReasonCategory = "preference"
	ReasonNovelty    ReasonCategory = "novelty"
	ReasonGeneral    ReasonCategory = "general"
)

// Rank is the fixed tie-break order: distance > time > weather > preference > novelty.
// Lower wins.
func (c ReasonCategory) Rank() int {
	switch c {
	case ReasonDistance:
		return 0
	case ReasonTime:
		return 1
	case ReasonWeather:
		return 2
	case ReasonPreference:
		return 3
	case ReasonNovelty:
		return 4
	default:
		return 5
	}
}

// Reason is one human-readable explanation.
type Reason struct {
	Category ReasonCategory `json:"category"`
	Text     string         `json:"text"`
	// TimeBound marks reasons that expire soon: closing time, golden hour.
	TimeBound bool `json:"timeBound,omitempty"`
}

// WhyNow explains why an activity is recommended at this moment.
type WhyNow struct {
	Primary   Reason   `json:"primary"`
	Secondary []Reason `json:"secondary,omitempty"`
}

// Signals holds the normalized [0,1] reading of each scoring signal.
type Signals struct {
	Distance   float64 `json:"distance"`
	Time       float64 `json:"time"`
	Weather    float64 `json:"weather"`
	Preference float64 `json:"preference"`
	Novelty    float64 `json:"novelty"`
}

// EnrichedActivity is an activity scored against the current context.
// Always derived, never persisted.
type EnrichedActivity struct {
	Activity       Activity `json:"activity"`
	Score          float64  `json:"score"`
	WhyNow         WhyNow   `json:"whyNow"`
	Signals        Signals  `json:"signals"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

// Qualified reports whether the activity has a specific (non-generic) reason.
func (e *EnrichedActivity) Qualified() bool {
	return e.WhyNow.Primary.Category != ReasonGeneral && e.WhyNow.Primary.Category != ""
}
