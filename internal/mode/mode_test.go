package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/companion/internal/model"
)

func assertInvariant(t *testing.T, c Context) {
	t.Helper()
	if c.Mode == Planning {
		assert.Empty(t, c.SubMode, "planning must have no sub-mode")
		assert.False(t, c.HasActiveTrip)
	} else {
		assert.True(t, c.SubMode.Valid(), "active must have a valid sub-mode, got %q", c.SubMode)
	}
}

func TestStartsInPlanning(t *testing.T) {
	c := New()
	cur := c.Current()
	assert.Equal(t, Planning, cur.Mode)
	assertInvariant(t, cur)
}

func TestActivateEntersChoice(t *testing.T) {
	c := New()
	require.NoError(t, c.Activate("paris", 2))

	cur := c.Current()
	assert.Equal(t, Active, cur.Mode)
	assert.Equal(t, Choice, cur.SubMode)
	assert.True(t, cur.HasActiveTrip)
	assert.Equal(t, "paris", cur.TripID)
	assert.Equal(t, 2, cur.DayNumber)
	assertInvariant(t, cur)
}

func TestActivateRequiresTrip(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Activate("  ", 1), ErrNoTrip)
	assert.Equal(t, Planning, c.Current().Mode)
}

func TestReactivateSameTripKeepsSubMode(t *testing.T) {
	c := New()
	require.NoError(t, c.Activate("paris", 1))
	require.NoError(t, c.Switch(Nearby))

	require.NoError(t, c.Activate("paris", 3))
	assert.Equal(t, Nearby, c.Current().SubMode)
	assert.Equal(t, 3, c.Current().DayNumber)

	require.NoError(t, c.Activate("lyon", 1))
	assert.Equal(t, Choice, c.Current().SubMode, "a different trip starts over")
}

func TestDeactivateClearsEverything(t *testing.T) {
	c := New()
	require.NoError(t, c.Activate("paris", 1))
	require.NoError(t, c.Switch(Craving))
	require.NoError(t, c.SetCraving("coffee", []model.EnrichedActivity{{}}))

	c.Deactivate()
	cur := c.Current()
	assert.Equal(t, Context{Mode: Planning}, cur)
	assert.Empty(t, c.Transient().CravingMatches)
	assertInvariant(t, cur)
}

func TestSwitchRequiresActive(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Switch(Rest), ErrNotActive)
	assertInvariant(t, c.Current())
}

func TestSwitchRejectsInvalid(t *testing.T) {
	c := New()
	require.NoError(t, c.Activate("paris", 1))
	assert.ErrorIs(t, c.Switch("sightseeing"), ErrInvalidSubMode)
	assert.Equal(t, Choice, c.Current().SubMode)
}

func TestSwitchAllPairs(t *testing.T) {
	for _, from := range SubModes {
		for _, to := range SubModes {
			c := New()
			require.NoError(t, c.Activate("paris", 1))
			require.NoError(t, c.Switch(from))
			require.NoError(t, c.Switch(to))
			assert.Equal(t, to, c.Current().SubMode)
			assertInvariant(t, c.Current())
		}
	}
}

func TestLeavingCravingClearsResults(t *testing.T) {
	c := New()
	require.NoError(t, c.Activate("paris", 1))
	require.NoError(t, c.Switch(Craving))
	require.NoError(t, c.SetCraving("coffee", []model.EnrichedActivity{{Score: 0.9}}))

	// Same sub-mode is a no-op.
	require.NoError(t, c.Switch(Craving))
	assert.Equal(t, "coffee", c.Transient().CravingQuery)

	require.NoError(t, c.Switch(Choice))
	assert.Empty(t, c.Transient().CravingQuery)
	assert.Nil(t, c.Transient().CravingMatches)
}

func TestLeavingSerendipityClearsPick(t *testing.T) {
	c := New()
	require.NoError(t, c.Activate("paris", 1))
	require.NoError(t, c.Switch(Serendipity))
	require.NoError(t, c.SetSerendipity(&model.EnrichedActivity{Score: 0.4}))

	require.NoError(t, c.Switch(Rest))
	assert.Nil(t, c.Transient().Serendipity)
}

func TestTransientOnlyInItsSubMode(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.SetCraving("x", nil), ErrNotActive)

	require.NoError(t, c.Activate("paris", 1))
	assert.ErrorIs(t, c.SetCraving("x", nil), ErrInvalidSubMode)
	assert.ErrorIs(t, c.SetSerendipity(nil), ErrInvalidSubMode)
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		route   string
		trip    string
		day     int
		wantErr bool
	}{
		{"/trips/paris-2026/active", "paris-2026", 1, false},
		{"/trips/paris-2026/active?day=3", "paris-2026", 3, false},
		{"trips/x/active/", "x", 1, false},
		{"/trips/paris-2026", "", 0, true},
		{"/trips//active", "", 0, true},
		{"/trips/paris/active?day=0", "", 0, true},
		{"/trips/paris/active?day=two", "", 0, true},
		{"/settings", "", 0, true},
	}
	for _, tt := range tests {
		trip, day, err := ParseRoute(tt.route)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrNotTripRoute, tt.route)
			continue
		}
		require.NoError(t, err, tt.route)
		assert.Equal(t, tt.trip, trip, tt.route)
		assert.Equal(t, tt.day, day, tt.route)
	}
}

func TestActivateFromRoute(t *testing.T) {
	c := New()
	require.NoError(t, c.ActivateFromRoute("/trips/rome/active?day=4"))
	assert.Equal(t, "rome", c.Current().TripID)
	assert.Equal(t, 4, c.Current().DayNumber)

	assert.Error(t, New().ActivateFromRoute("/home"))
}

func TestAllowsTrigger(t *testing.T) {
	c := New()
	for _, mt := range []model.MessageType{model.MessageProximity, model.MessageWeatherPivot} {
		assert.False(t, c.Current().AllowsTrigger(mt), "planning allows nothing")
	}

	require.NoError(t, c.Activate("paris", 1))
	assert.True(t, c.Current().AllowsTrigger(model.MessageProximity))
	assert.True(t, c.Current().AllowsTrigger(model.MessageRest))

	require.NoError(t, c.Switch(Rest))
	assert.False(t, c.Current().AllowsTrigger(model.MessageRest))
	assert.False(t, c.Current().AllowsTrigger(model.MessageProximity))
	assert.True(t, c.Current().AllowsTrigger(model.MessageWeatherPivot))

	// Every sub-mode lets a weather pivot through.
	for _, s := range SubModes {
		require.NoError(t, c.Switch(s))
		assert.True(t, c.Current().AllowsTrigger(model.MessageWeatherPivot), s)
	}
}
