// Package weather keeps a fresh weather snapshot for the traveler's position.
//
// A Provider wraps a Fetcher with a short-lived cache keyed by rounded
// coordinates and applies results last-write-wins: a slow response that
// comes back after a newer one is dropped.
package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/model"
)

// Defaults for the provider.
const (
	DefaultCacheTTL        = 10 * time.Minute
	DefaultRefreshInterval = 15 * time.Minute
	DefaultForecastDays    = 2
)

// Fetcher retrieves a forecast for a position.
type Fetcher interface {
	Fetch(ctx context.Context, at model.Coordinates, days int) (*model.WeatherContext, error)
}

// Provider serves cached weather and tracks the current and previous snapshot.
type Provider struct {
	fetcher Fetcher
	cache   *cache.Cache
	days    int

	mu       sync.Mutex
	seq      uint64 // last issued request
	applied  uint64 // request that produced current
	current  *model.WeatherContext
	previous *model.WeatherContext
}

// NewProvider creates a provider. A zero ttl uses DefaultCacheTTL.
func NewProvider(f Fetcher, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Provider{
		fetcher: f,
		cache:   cache.New(ttl, 2*ttl),
		days:    DefaultForecastDays,
	}
}

// WithDays sets how many forecast days to request. n <= 0 keeps the default.
func (p *Provider) WithDays(n int) *Provider {
	if n > 0 {
		p.days = n
	}
	return p
}

// Current returns the latest applied snapshot and the one it replaced.
func (p *Provider) Current() (cur, prev *model.WeatherContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.previous
}

// Refresh returns weather for at, from cache when possible. The result
// becomes current unless a newer request has already been applied, in
// which case applied is false and the caller should ignore it.
func (p *Provider) Refresh(ctx context.Context, at model.Coordinates) (w *model.WeatherContext, applied bool, err error) {
	key := at.Key()

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	if cached, ok := p.cache.Get(key); ok {
		w = cached.(*model.WeatherContext)
	} else {
		w, err = p.fetcher.Fetch(ctx, at, p.days)
		if err != nil {
			return nil, false, fmt.Errorf("weather: fetch %s: %w", key, err)
		}
		if w.LocationKey == "" {
			w.LocationKey = key
		}
		p.cache.Set(key, w, cache.DefaultExpiration)
	}

	return w, p.apply(seq, w), nil
}

func (p *Provider) apply(seq uint64, w *model.WeatherContext) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.applied {
		return false
	}
	if p.current != nil && w.FetchedAt.Before(p.current.FetchedAt) {
		return false
	}
	p.applied = seq
	if p.current != w {
		p.previous = p.current
		p.current = w
	}
	return true
}

// Invalidate drops the cached entry for at.
func (p *Provider) Invalidate(at model.Coordinates) {
	p.cache.Delete(at.Key())
}

// Run refreshes on every tick until ctx is cancelled. position returns the
// coordinates to fetch for, or false when unknown. Each applied snapshot is
// passed to publish. Fetch errors are logged, never returned.
func (p *Provider) Run(ctx context.Context, interval time.Duration, position func() (model.Coordinates, bool), publish func(*model.WeatherContext)) error {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	refresh := func() {
		at, ok := position()
		if !ok {
			return
		}
		w, applied, err := p.Refresh(ctx, at)
		if err != nil {
			if ctx.Err() == nil {
				logging.Warn("weather: refresh failed", "error", err)
			}
			return
		}
		if applied {
			publish(w)
		}
	}

	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}
