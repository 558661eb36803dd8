package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/abelbrown/companion/internal/itinerary"
	"github.com/abelbrown/companion/internal/learning"
	"github.com/abelbrown/companion/internal/location"
	"github.com/abelbrown/companion/internal/model"
	"github.com/abelbrown/companion/internal/ranking"
)

type scoreOptions struct {
	day      int
	lat, lng float64
	tz       string
	at       string
	weather  string
	temp     float64
	rain     float64
	top      int
	craving  string
	learned  bool
	asJSON   bool
}

func newScoreCmd() *cobra.Command {
	var opts scoreOptions
	cmd := &cobra.Command{
		Use:   "score <trip.json>",
		Short: "Rank a trip day for a given position, time and weather",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.day, "day", "d", 1, "Trip day to score")
	f.Float64Var(&opts.lat, "lat", 0, "Traveler latitude")
	f.Float64Var(&opts.lng, "lng", 0, "Traveler longitude")
	f.StringVar(&opts.tz, "tz", "", "IANA timezone (default: looked up from --lat/--lng)")
	f.StringVar(&opts.at, "at", "", "Time to score at: RFC 3339, or HH:MM on the day's date (default now)")
	f.StringVarP(&opts.weather, "weather", "w", "", "Condition: sunny, cloudy, rainy, stormy, snowy, foggy")
	f.Float64Var(&opts.temp, "temp", 18, "Temperature in Celsius (with --weather)")
	f.Float64Var(&opts.rain, "rain", 0, "Precipitation chance 0-100 (with --weather)")
	f.IntVarP(&opts.top, "top", "n", 0, "Show only the best N (0 = all)")
	f.StringVar(&opts.craving, "craving", "", "Answer a craving instead of ranking the day")
	f.BoolVar(&opts.learned, "learned", false, "Apply learned feedback from the configured store")
	f.BoolVar(&opts.asJSON, "json", false, "Print enriched activities as JSON")
	return cmd
}

func runScore(cmd *cobra.Command, tripPath string, opts scoreOptions) error {
	trip, err := itinerary.Load(tripPath)
	if err != nil {
		return err
	}
	day, err := trip.Day(opts.day)
	if err != nil {
		return err
	}
	activities, err := trip.Activities(opts.day)
	if err != nil {
		return err
	}

	loc := &model.LocationContext{
		Coordinates: model.Coordinates{Lat: opts.lat, Lng: opts.lng},
		Timezone:    opts.tz,
	}
	located := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
	if located && !loc.Coordinates.Valid() {
		return fmt.Errorf("coordinates %.4f,%.4f out of range", opts.lat, opts.lng)
	}
	if loc.Timezone == "" && located {
		tz, err := location.NewTZF()
		if err != nil {
			return err
		}
		loc.Timezone = tz.Zone(loc.Coordinates)
	}

	zone := time.Local
	if l := loc.Location(); l != nil {
		zone = l
	}
	at, err := parseAt(opts.at, day.Date, zone, time.Now())
	if err != nil {
		return err
	}
	at = at.In(zone)
	loc.Timestamp = at

	ctx := ranking.NewContext(at).WithPreferences(trip.Preferences)
	if ctx.Preferences == nil {
		ctx.Preferences = map[string]float64{}
	}
	if located {
		ctx.WithLocation(loc)
	}
	if opts.weather != "" {
		w, err := weatherAt(opts.weather, opts.temp, opts.rain, at)
		if err != nil {
			return err
		}
		ctx.WithWeather(w)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.learned {
		kv, closeKV, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeKV()
		ctx.WithFeedback(learning.New(kv, cfg.LearningPolicy()))
	}

	scorer := ranking.DefaultScorer(cfg.Policy.Weights)
	w := cmd.OutOrStdout()

	if opts.craving != "" {
		res := scorer.SearchCraving(opts.craving, activities, ctx)
		if opts.asJSON {
			return writeJSON(w, res)
		}
		fmt.Fprintln(w, res.Explanation)
		if len(res.Matches) > 0 {
			fmt.Fprintln(w, renderScores(limit(res.Matches, opts.top)))
		}
		return nil
	}

	ranked := limit(scorer.Score(activities, ctx), opts.top)
	if opts.asJSON {
		return writeJSON(w, ranked)
	}
	fmt.Fprintf(w, "Day %d", day.Number)
	if day.City != "" {
		fmt.Fprintf(w, " in %s", day.City)
	}
	fmt.Fprintf(w, " at %s\n", ctx.LocalNow().Format("Mon Jan 2 15:04 MST"))
	fmt.Fprintln(w, renderScores(ranked))
	return nil
}

// parseAt resolves --at. An empty value means now; a bare HH:MM is placed on
// date (YYYY-MM-DD) in zone, or on today when the day has no date.
func parseAt(value, date string, zone *time.Location, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	clock, err := time.ParseInLocation("15:04", value, zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want RFC 3339 or HH:MM", value)
	}
	base := now.In(zone)
	if date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, zone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day date %q: %w", date, err)
		}
		base = d
	}
	return time.Date(base.Year(), base.Month(), base.Day(), clock.Hour(), clock.Minute(), 0, 0, zone), nil
}

// weatherAt builds a fresh snapshot for a hand-entered condition.
func weatherAt(condition string, temp, rain float64, at time.Time) (*model.WeatherContext, error) {
	c := model.Condition(strings.ToLower(strings.TrimSpace(condition)))
	switch c {
	case model.ConditionSunny, model.ConditionCloudy, model.ConditionRainy,
		model.ConditionStormy, model.ConditionSnowy, model.ConditionFoggy:
	default:
		return nil, fmt.Errorf("unknown weather condition %q", condition)
	}
	return &model.WeatherContext{
		Condition:           c,
		Temperature:         temp,
		FeelsLike:           temp,
		PrecipitationChance: rain,
		IsDaylight:          at.Hour() >= 7 && at.Hour() < 19,
		FetchedAt:           at,
	}, nil
}

func limit(picks []model.EnrichedActivity, n int) []model.EnrichedActivity {
	if n > 0 && len(picks) > n {
		return picks[:n]
	}
	return picks
}

func renderScores(picks []model.EnrichedActivity) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "SCORE", "ACTIVITY", "CATEGORY", "DISTANCE", "WHY NOW")
	for i, p := range picks {
		dist := "-"
		if p.DistanceMeters != nil {
			dist = formatMeters(*p.DistanceMeters)
		}
		t.Row(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", p.Score),
			truncate(p.Activity.Name, 32),
			p.Activity.Category,
			dist,
			truncate(p.WhyNow.Primary.Text, 48),
		)
	}
	return t.String()
}

func formatMeters(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("%.0f m", m)
	}
	return fmt.Sprintf("%.1f km", m/1000)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
