package location

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/model"
)

// Settings tune movement detection.
type Settings struct {
	// MovingSpeed is the reported speed (m/s) above which a fix counts as moving.
	MovingSpeed float64
	// MinDisplacement is the smallest jump (m) between fixes that counts as
	// moving. The fix accuracy raises it when larger.
	MinDisplacement float64
	// PlaceTTL is how long reverse-geocoded places are cached.
	PlaceTTL time.Duration
}

// DefaultSettings returns walking-pace thresholds.
func DefaultSettings() Settings {
	return Settings{
		MovingSpeed:     1.0,
		MinDisplacement: 50,
		PlaceTTL:        6 * time.Hour,
	}
}

// Tracker keeps the newest LocationContext.
type Tracker struct {
	settings Settings
	geocoder Geocoder
	zoner    Zoner
	places   *cache.Cache

	mu      sync.RWMutex
	current *model.LocationContext
}

// NewTracker creates a tracker. geocoder and zoner may be nil.
func NewTracker(s Settings, geocoder Geocoder, zoner Zoner) *Tracker {
	if s.PlaceTTL <= 0 {
		s.PlaceTTL = DefaultSettings().PlaceTTL
	}
	return &Tracker{
		settings: s,
		geocoder: geocoder,
		zoner:    zoner,
		places:   cache.New(s.PlaceTTL, 2*s.PlaceTTL),
	}
}

// Current returns the newest snapshot, or nil before the first fix.
func (t *Tracker) Current() *model.LocationContext {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Apply turns fix into a snapshot. It returns the snapshot in force afterwards
// and whether fix replaced the previous one. Fixes that are not newer than
// the current snapshot, or have invalid coordinates, are dropped.
func (t *Tracker) Apply(ctx context.Context, fix Fix) (*model.LocationContext, bool) {
	if !fix.Coordinates.Valid() {
		logging.Warn("dropping invalid fix", "lat", fix.Coordinates.Lat, "lng", fix.Coordinates.Lng)
		return t.Current(), false
	}

	prev := t.Current()
	next := &model.LocationContext{
		Coordinates: fix.Coordinates,
		Accuracy:    fix.Accuracy,
		Timestamp:   fix.Timestamp,
		Heading:     fix.Heading,
		Speed:       fix.Speed,
	}
	if !next.Newer(prev) {
		return prev, false
	}
	next.IsMoving = t.moving(prev, fix)

	// Lookups happen unlocked; a newer fix may land meanwhile.
	place := t.place(ctx, fix.Coordinates)
	next.City = place.City
	next.CountryCode = place.CountryCode
	if t.zoner != nil {
		next.Timezone = t.zoner.Zone(fix.Coordinates)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !next.Newer(t.current) {
		return t.current, false
	}
	t.current = next
	return next, true
}

func (t *Tracker) moving(prev *model.LocationContext, fix Fix) bool {
	if fix.Speed != nil && *fix.Speed > t.settings.MovingSpeed {
		return true
	}
	if prev == nil {
		return false
	}
	threshold := math.Max(t.settings.MinDisplacement, fix.Accuracy)
	return model.DistanceMeters(prev.Coordinates, fix.Coordinates) > threshold
}

// place reverse-geocodes c through the cache. Failures yield an empty place.
func (t *Tracker) place(ctx context.Context, c model.Coordinates) Place {
	if t.geocoder == nil {
		return Place{}
	}
	key := c.Key()
	if v, ok := t.places.Get(key); ok {
		return v.(Place)
	}
	p, err := t.geocoder.Reverse(ctx, c)
	if err != nil {
		logging.Debug("reverse geocode failed", "key", key, "error", err)
		return Place{}
	}
	t.places.Set(key, p, cache.DefaultExpiration)
	return p
}

// Refresh reads one fix from src and applies it.
func (t *Tracker) Refresh(ctx context.Context, src Source) (*model.LocationContext, bool, error) {
	fix, err := src.Current(ctx)
	if err != nil {
		return t.Current(), false, err
	}
	loc, applied := t.Apply(ctx, fix)
	return loc, applied, nil
}

// Watch applies fixes from src until ctx is done or the stream ends, calling
// publish for every snapshot that replaced the previous one. Transient source
// errors are logged; permission_denied and unsupported end the watch with
// that error.
func (t *Tracker) Watch(ctx context.Context, src Source, publish func(*model.LocationContext)) error {
	fixes, errs := src.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case fix, ok := <-fixes:
			if !ok {
				return nil
			}
			if loc, applied := t.Apply(ctx, fix); applied && publish != nil {
				publish(loc)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if Fatal(err) {
				return err
			}
			logging.Warn("location source error", "code", CodeOf(err), "error", err)
		}
	}
}
