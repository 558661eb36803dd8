package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/companion/internal/model"
)

var (
	t0      = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	orsay   = model.Coordinates{Lat: 48.8600, Lng: 2.3266}
	orsay2  = model.Coordinates{Lat: 48.8609, Lng: 2.3266} // ~100 m north
	louvre  = model.Coordinates{Lat: 48.8606, Lng: 2.3376}
	invalid = model.Coordinates{Lat: 123, Lng: 2}
)

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	err   error
	place Place
}

func (g *fakeGeocoder) Reverse(ctx context.Context, c model.Coordinates) (Place, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.place, g.err
}

type fixedZone string

func (z fixedZone) Zone(model.Coordinates) string { return string(z) }

func fix(c model.Coordinates, at time.Time) Fix {
	return Fix{Coordinates: c, Accuracy: 10, Timestamp: at}
}

func speed(v float64) *float64 { return &v }

func TestApplyLastWriteWins(t *testing.T) {
	tr := NewTracker(DefaultSettings(), nil, nil)
	ctx := context.Background()

	loc, applied := tr.Apply(ctx, fix(orsay, t0.Add(time.Minute)))
	require.True(t, applied)
	assert.Equal(t, orsay, loc.Coordinates)

	loc, applied = tr.Apply(ctx, fix(louvre, t0))
	assert.False(t, applied, "older fix must not replace a newer one")
	assert.Equal(t, orsay, loc.Coordinates)

	_, applied = tr.Apply(ctx, fix(louvre, t0.Add(time.Minute)))
	assert.False(t, applied, "same timestamp is not newer")

	_, applied = tr.Apply(ctx, fix(invalid, t0.Add(time.Hour)))
	assert.False(t, applied)
	assert.Equal(t, orsay, tr.Current().Coordinates)
}

func TestApplyDoesNotMutatePreviousSnapshot(t *testing.T) {
	tr := NewTracker(DefaultSettings(), nil, nil)
	first, _ := tr.Apply(context.Background(), fix(orsay, t0))
	second, _ := tr.Apply(context.Background(), fix(louvre, t0.Add(time.Minute)))

	assert.Equal(t, orsay, first.Coordinates)
	assert.NotSame(t, first, second)
}

func TestMovingDetection(t *testing.T) {
	tests := []struct {
		name     string
		first    Fix
		second   Fix
		expected bool
	}{
		{
			name:     "standing still",
			first:    fix(orsay, t0),
			second:   fix(orsay, t0.Add(time.Minute)),
			expected: false,
		},
		{
			name:     "reported walking speed",
			first:    fix(orsay, t0),
			second:   Fix{Coordinates: orsay, Accuracy: 10, Speed: speed(1.4), Timestamp: t0.Add(time.Minute)},
			expected: true,
		},
		{
			name:     "slow drift",
			first:    fix(orsay, t0),
			second:   Fix{Coordinates: orsay, Accuracy: 10, Speed: speed(0.3), Timestamp: t0.Add(time.Minute)},
			expected: false,
		},
		{
			name:     "100 m displacement",
			first:    fix(orsay, t0),
			second:   fix(orsay2, t0.Add(time.Minute)),
			expected: true,
		},
		{
			name:     "displacement within poor accuracy",
			first:    fix(orsay, t0),
			second:   Fix{Coordinates: orsay2, Accuracy: 150, Timestamp: t0.Add(time.Minute)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(DefaultSettings(), nil, nil)
			tr.Apply(context.Background(), tt.first)
			loc, applied := tr.Apply(context.Background(), tt.second)
			require.True(t, applied)
			assert.Equal(t, tt.expected, loc.IsMoving)
		})
	}
}

func TestFirstFixMovingOnlyBySpeed(t *testing.T) {
	tr := NewTracker(DefaultSettings(), nil, nil)
	loc, _ := tr.Apply(context.Background(), fix(orsay, t0))
	assert.False(t, loc.IsMoving)
}

func TestPlaceAndTimezone(t *testing.T) {
	geo := &fakeGeocoder{place: Place{City: "Paris", CountryCode: "FR"}}
	tr := NewTracker(DefaultSettings(), geo, fixedZone("Europe/Paris"))

	loc, _ := tr.Apply(context.Background(), fix(orsay, t0))
	assert.Equal(t, "Paris", loc.City)
	assert.Equal(t, "FR", loc.CountryCode)
	assert.Equal(t, "Europe/Paris", loc.Timezone)
	require.NotNil(t, loc.Location())

	// Same rounded cell: served from the cache.
	tr.Apply(context.Background(), fix(orsay2, t0.Add(time.Minute)))
	assert.Equal(t, 1, geo.calls)
}

func TestGeocodeFailureIsSoft(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("boom")}
	tr := NewTracker(DefaultSettings(), geo, nil)

	loc, applied := tr.Apply(context.Background(), fix(orsay, t0))
	require.True(t, applied)
	assert.Empty(t, loc.City)

	// Failures are not cached.
	tr.Apply(context.Background(), fix(orsay, t0.Add(time.Minute)))
	assert.Equal(t, 2, geo.calls)
}

func TestErrorCodes(t *testing.T) {
	err := Wrap(CodeTimeout, errors.New("no fix in 10s"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "timeout")

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, CodeTimeout, le.Code)

	assert.Equal(t, CodeTimeout, CodeOf(context.DeadlineExceeded))
	assert.Equal(t, CodePositionUnavailable, CodeOf(errors.New("other")))
	assert.Equal(t, Code(""), CodeOf(nil))

	assert.True(t, Fatal(ErrPermissionDenied))
	assert.True(t, Fatal(Wrap(CodeUnsupported, nil)))
	assert.False(t, Fatal(ErrTimeout))
}

func TestWatchReplay(t *testing.T) {
	src := NewReplay([]Fix{
		fix(orsay, t0),
		fix(louvre, t0.Add(-time.Minute)), // out of order, dropped
		fix(orsay2, t0.Add(time.Minute)),
	}, 0)
	tr := NewTracker(DefaultSettings(), nil, nil)

	var got []model.Coordinates
	err := tr.Watch(context.Background(), src, func(l *model.LocationContext) {
		got = append(got, l.Coordinates)
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Coordinates{orsay, orsay2}, got)
	assert.Equal(t, orsay2, tr.Current().Coordinates)
}

func TestReplayCurrentAndRestamp(t *testing.T) {
	now := t0.Add(24 * time.Hour)
	src := NewReplay([]Fix{fix(orsay, t0)}, 0).Restamp(func() time.Time { return now })

	f, err := src.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now, f.Timestamp)

	_, err = NewReplay(nil, 0).Current(context.Background())
	assert.ErrorIs(t, err, ErrPositionUnavailable)

	tr := NewTracker(DefaultSettings(), nil, nil)
	loc, applied, err := tr.Refresh(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, orsay, loc.Coordinates)
}

type deniedSource struct{}

func (deniedSource) Current(context.Context) (Fix, error) { return Fix{}, ErrPermissionDenied }

func (deniedSource) Watch(ctx context.Context) (<-chan Fix, <-chan error) {
	errs := make(chan error, 1)
	errs <- Wrap(CodePermissionDenied, errors.New("user said no"))
	return make(chan Fix), errs
}

func TestWatchStopsOnPermissionDenied(t *testing.T) {
	tr := NewTracker(DefaultSettings(), nil, nil)
	err := tr.Watch(context.Background(), deniedSource{}, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, _, err = tr.Refresh(context.Background(), deniedSource{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestWatchStopsOnCancel(t *testing.T) {
	src := NewReplay([]Fix{fix(orsay, t0), fix(orsay2, t0.Add(time.Minute))}, time.Hour)
	tr := NewTracker(DefaultSettings(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Watch(ctx, src, func(*model.LocationContext) { cancel() })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, orsay, tr.Current().Coordinates)
}

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "48.860000", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.326600", r.URL.Query().Get("lon"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "companion-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address":{"town":"Giverny","country_code":"fr"}}`))
	}))
	defer srv.Close()

	p, err := NewNominatim(srv.URL, "companion-test").Reverse(context.Background(), orsay)
	require.NoError(t, err)
	assert.Equal(t, Place{City: "Giverny", CountryCode: "FR"}, p)
}

func TestNominatimErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "0.000000" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "")
	_, err := n.Reverse(context.Background(), model.Coordinates{})
	assert.ErrorContains(t, err, "Unable to geocode")

	_, err = n.Reverse(context.Background(), orsay)
	assert.ErrorContains(t, err, "503")
}

func TestTZF(t *testing.T) {
	if testing.Short() {
		t.Skip("loads timezone polygons")
	}
	z, err := NewTZF()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", z.Zone(orsay))
	assert.Equal(t, "Asia/Tokyo", z.Zone(model.Coordinates{Lat: 35.6762, Lng: 139.6503}))
	assert.Empty(t, z.Zone(invalid))
}
