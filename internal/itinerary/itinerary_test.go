package itinerary

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/companion/internal/model"
)

func loadParis(t *testing.T) *Trip {
	t.Helper()
	trip, err := Load(filepath.Join("testdata", "paris.json"))
	require.NoError(t, err)
	return trip
}

func TestLoad(t *testing.T) {
	trip := loadParis(t)

	assert.Equal(t, "paris-2026", trip.ID)
	assert.Len(t, trip.Days, 3)
	assert.Equal(t, 0.9, trip.Preferences["museum"])

	orsay, err := trip.Activity("orsay")
	require.NoError(t, err)
	assert.Equal(t, "Paris", orsay.City, "city inherited from the day")
	assert.Equal(t, model.StatusPlanned, orsay.Status)
	require.NotNil(t, orsay.Hours)
	assert.Equal(t, model.OpeningHours{Open: 570, Close: 1080}, *orsay.Hours)

	flore, err := trip.Activity("cafe-flore")
	require.NoError(t, err)
	assert.Equal(t, model.TimeAny, flore.IdealTime)
	assert.Equal(t, model.OpeningHours{Open: 450, Close: 90}, *flore.Hours)

	louvre, err := trip.Activity("louvre")
	require.NoError(t, err)
	assert.True(t, louvre.Done())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"not json", `{`, "parse trip"},
		{"no id", `{"days":[{"number":1,"activities":[]}]}`, "trip id"},
		{"no days", `{"id":"x"}`, "no days"},
		{"bad day number", `{"id":"x","days":[{"number":0,"activities":[]}]}`, "positive"},
		{"duplicate day", `{"id":"x","days":[{"number":1,"activities":[]},{"number":1,"activities":[]}]}`, "duplicate"},
		{"bad date", `{"id":"x","days":[{"number":1,"date":"June 1","activities":[]}]}`, "date"},
		{"activity without id", `{"id":"x","days":[{"number":1,"activities":[{"name":"a"}]}]}`, "no id"},
		{"duplicate activity", `{"id":"x","days":[{"number":1,"activities":[{"id":"a"}]},{"number":2,"activities":[{"id":"a"}]}]}`, "duplicate activity"},
		{"bad coordinates", `{"id":"x","days":[{"number":1,"activities":[{"id":"a","coordinates":{"lat":95,"lng":0}}]}]}`, "out of range"},
		{"bad hours", `{"id":"x","days":[{"number":1,"activities":[{"id":"a","hours":"nine to five"}]}]}`, "opening hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestDays(t *testing.T) {
	trip := loadParis(t)

	acts, err := trip.Activities(2)
	require.NoError(t, err)
	assert.Len(t, acts, 2)

	// Activities is a copy.
	acts[0].Name = "changed"
	again, _ := trip.Activities(2)
	assert.Equal(t, "Louvre", again[0].Name)

	_, err = trip.Day(9)
	assert.ErrorIs(t, err, ErrNoDay)

	paris, _ := time.LoadLocation("Europe/Paris")
	// 23:30 UTC on June 1 is already June 2 in Paris.
	d, ok := trip.DayOn(time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC), paris)
	require.True(t, ok)
	assert.Equal(t, 2, d.Number)

	d, ok = trip.DayOn(time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC), nil)
	require.True(t, ok)
	assert.Equal(t, 1, d.Number)

	_, ok = trip.DayOn(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	assert.False(t, ok)
}

func TestSetStatus(t *testing.T) {
	trip := loadParis(t)

	require.NoError(t, trip.SetStatus("trocadero", model.StatusCompleted))
	a, _ := trip.Activity("trocadero")
	assert.True(t, a.Done())

	assert.ErrorIs(t, trip.SetStatus("nope", model.StatusSkipped), ErrNoActivity)
}

func TestLodgingCities(t *testing.T) {
	trip := loadParis(t)
	assert.Equal(t, map[string]bool{"paris": true}, trip.LodgingCities())
}
