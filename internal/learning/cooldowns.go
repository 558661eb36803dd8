package learning

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/store"
)

// CooldownKey is where trigger firing times live in the KV.
const CooldownKey = store.Namespace + "cooldowns"

// CorruptCooldownKey keeps an undecodable cooldown record for inspection.
const CorruptCooldownKey = CooldownKey + ".corrupt"

// Cooldowns remembers when each cooldown key last fired.
// A key is a trigger type, optionally followed by ":" and an entity id.
type Cooldowns struct {
	mu     sync.Mutex
	kv     store.KV
	stamps map[string]time.Time
	synced bool // durable stamps read; see Store.synced
}

// NewCooldowns loads firing times from kv. Failures are soft: stamps are
// kept in memory and merged into the durable record once it can be read.
func NewCooldowns(kv store.KV) *Cooldowns {
	c := &Cooldowns{kv: kv, stamps: make(map[string]time.Time)}
	c.load()
	return c
}

// load reads the durable stamps and folds the in-memory ones in, keeping
// the later firing per key. Caller holds c.mu or owns c.
func (c *Cooldowns) load() {
	if c.kv == nil {
		c.synced = true
		return
	}
	raw, ok, err := c.kv.Get(CooldownKey)
	if err != nil {
		logging.Warn("cooldowns: load failed, keeping stamps in memory", "error", err)
		return
	}

	durable := make(map[string]time.Time)
	if ok {
		if err := json.Unmarshal(raw, &durable); err != nil {
			if err := c.kv.Set(CorruptCooldownKey, raw); err != nil {
				logging.Warn("cooldowns: corrupt record could not be set aside", "error", err)
				return
			}
			logging.Warn("cooldowns: corrupt record moved aside, starting empty", "key", CorruptCooldownKey, "error", err)
			durable = make(map[string]time.Time)
		}
	}
	if durable == nil {
		durable = make(map[string]time.Time)
	}
	for k, t := range c.stamps {
		if t.After(durable[k]) {
			durable[k] = t
		}
	}
	c.stamps = durable
	c.synced = true
}

// LastFired returns when key last fired.
func (c *Cooldowns) LastFired(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.stamps[key]
	return t, ok
}

// Ready reports whether window has elapsed since key last fired.
// A key that never fired is always ready.
func (c *Cooldowns) Ready(key string, window time.Duration, now time.Time) bool {
	last, ok := c.LastFired(key)
	if !ok {
		return true
	}
	return now.Sub(last) >= window
}

// Commit records a batch of firings and persists once.
func (c *Cooldowns) Commit(fired map[string]time.Time) {
	if len(fired) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, t := range fired {
		c.stamps[k] = t
	}
	c.save()
}

// Prune drops stamps older than maxAge. They can no longer block anything.
func (c *Cooldowns) Prune(now time.Time, maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		c.load()
	}

	n := 0
	for k, t := range c.stamps {
		if now.Sub(t) > maxAge {
			delete(c.stamps, k)
			n++
		}
	}
	if n > 0 {
		c.save()
	}
	return n
}

// Entry is one cooldown stamp.
type Entry struct {
	Key       string
	LastFired time.Time
}

// List returns all stamps, most recent first.
func (c *Cooldowns) List() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.stamps))
	for k, t := range c.stamps {
		out = append(out, Entry{Key: k, LastFired: t})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastFired.Equal(out[j].LastFired) {
			return out[i].LastFired.After(out[j].LastFired)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Reset forgets every stamp, including the durable record.
func (c *Cooldowns) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stamps = make(map[string]time.Time)
	c.synced = true
	c.save()
}

// save persists stamps. Caller holds c.mu.
func (c *Cooldowns) save() {
	if c.kv == nil {
		return
	}
	if !c.synced {
		if c.load(); !c.synced {
			return
		}
	}
	raw, err := json.Marshal(c.stamps)
	if err != nil {
		logging.Warn("cooldowns: encode failed", "error", err)
		return
	}
	if err := c.kv.Set(CooldownKey, raw); err != nil {
		logging.Warn("cooldowns: save failed", "error", err)
	}
}
