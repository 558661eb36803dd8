// Package learning records how the traveler responds to suggestions and
// turns that into two signals: an interest level per category, and a
// suppression flag for categories that keep getting dismissed.
//
// State is persisted through a store.KV under a fixed namespace key.
// Persistence failures are soft: they are logged and the store keeps
// working from memory, defaulting to "no suppression". A record that could
// not be read is never overwritten; the session's changes are merged into
// it once a read succeeds.
package learning

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/store"
)

// Key is where learning data lives in the KV.
const Key = store.Namespace + "learning"

// CorruptKey keeps an undecodable learning record for inspection.
const CorruptKey = Key + ".corrupt"

// Defaults for Policy.
const (
	DefaultMinSamples    = 5
	DefaultSuppressBelow = 0.3
)

// NeutralInterest is reported when a category has no responses yet.
const NeutralInterest = 0.5

// Policy controls when a category is suppressed.
type Policy struct {
	MinSamples    int     // dismissals+clicks required before suppression applies
	SuppressBelow float64 // interest level under which a category is suppressed
}

// DefaultPolicy returns the stock thresholds: 5 responses, interest < 0.3.
func DefaultPolicy() Policy {
	return Policy{MinSamples: DefaultMinSamples, SuppressBelow: DefaultSuppressBelow}
}

// CategoryStats are the counters for one category.
type CategoryStats struct {
	Shown     int       `json:"shown"`
	Dismissed int       `json:"dismissed"`
	Clicked   int       `json:"clicked"`
	LastShown time.Time `json:"lastShown,omitempty"`
}

// Responses is dismissals plus clicks.
func (c CategoryStats) Responses() int {
	return c.Dismissed + c.Clicked
}

// Interest is clicks / (clicks + dismissals), or NeutralInterest with no data.
func (c CategoryStats) Interest() float64 {
	n := c.Responses()
	if n == 0 {
		return NeutralInterest
	}
	return float64(c.Clicked) / float64(n)
}

// Data is the persisted learning record.
type Data struct {
	TotalShown     int                      `json:"totalShown"`
	TotalDismissed int                      `json:"totalDismissed"`
	TotalClicked   int                      `json:"totalClicked"`
	LastSuggestion time.Time                `json:"lastSuggestion,omitempty"`
	Categories     map[string]CategoryStats `json:"categories"`
	NotInterested  map[string]time.Time     `json:"notInterested,omitempty"`
}

func newData() Data {
	return Data{
		Categories:    make(map[string]CategoryStats),
		NotInterested: make(map[string]time.Time),
	}
}

// Overall returns the totals as a CategoryStats.
func (d Data) Overall() CategoryStats {
	return CategoryStats{
		Shown:     d.TotalShown,
		Dismissed: d.TotalDismissed,
		Clicked:   d.TotalClicked,
		LastShown: d.LastSuggestion,
	}
}

// merge adds counters recorded in delta on top of d.
func (d *Data) merge(delta Data) {
	d.TotalShown += delta.TotalShown
	d.TotalDismissed += delta.TotalDismissed
	d.TotalClicked += delta.TotalClicked
	if delta.LastSuggestion.After(d.LastSuggestion) {
		d.LastSuggestion = delta.LastSuggestion
	}
	for c, st := range delta.Categories {
		cur := d.Categories[c]
		cur.Shown += st.Shown
		cur.Dismissed += st.Dismissed
		cur.Clicked += st.Clicked
		if st.LastShown.After(cur.LastShown) {
			cur.LastShown = st.LastShown
		}
		d.Categories[c] = cur
	}
	for id, at := range delta.NotInterested {
		if _, ok := d.NotInterested[id]; !ok {
			d.NotInterested[id] = at
		}
	}
}

// Store is the learning store. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	kv     store.KV
	policy Policy
	data   Data
	// synced is false until the durable record has been read. Until then
	// data holds only this session's changes and nothing is written back.
	synced bool
	now    func() time.Time
}

// New loads learning data from kv. A missing key starts empty. When the
// read fails the store works from memory and retries before each write.
func New(kv store.KV, policy Policy) *Store {
	if policy.MinSamples <= 0 {
		policy.MinSamples = DefaultMinSamples
	}
	if policy.SuppressBelow <= 0 {
		policy.SuppressBelow = DefaultSuppressBelow
	}

	s := &Store{kv: kv, policy: policy, data: newData(), now: time.Now}
	s.load()
	return s
}

// load reads the durable record and merges this session's changes into it.
// A corrupt record is copied to CorruptKey before it can be replaced.
func (s *Store) load() {
	if s.kv == nil {
		s.synced = true
		return
	}
	raw, ok, err := s.kv.Get(Key)
	if err != nil {
		logging.Warn("learning: load failed, keeping changes in memory", "error", err)
		return
	}

	d := newData()
	if ok {
		if err := json.Unmarshal(raw, &d); err != nil {
			if err := s.kv.Set(CorruptKey, raw); err != nil {
				logging.Warn("learning: corrupt record could not be set aside", "error", err)
				return
			}
			logging.Warn("learning: corrupt record moved aside, starting empty", "key", CorruptKey, "error", err)
			d = newData()
		}
	}
	if d.Categories == nil {
		d.Categories = make(map[string]CategoryStats)
	}
	if d.NotInterested == nil {
		d.NotInterested = make(map[string]time.Time)
	}
	d.merge(s.data)
	s.data = d
	s.synced = true
}

// save persists the current data. Caller holds s.mu.
func (s *Store) save() {
	if s.kv == nil {
		return
	}
	if !s.synced {
		if s.load(); !s.synced {
			return
		}
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		logging.Warn("learning: encode failed", "error", err)
		return
	}
	if err := s.kv.Set(Key, raw); err != nil {
		logging.Warn("learning: save failed", "error", err)
	}
}

func normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// RecordSuggestion counts a suggestion shown in category.
func (s *Store) RecordSuggestion(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.data.TotalShown++
	s.data.LastSuggestion = now
	if c := normalize(category); c != "" {
		st := s.data.Categories[c]
		st.Shown++
		st.LastShown = now
		s.data.Categories[c] = st
	}
	s.save()
}

// RecordDismissal counts a dismissed suggestion in category.
func (s *Store) RecordDismissal(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.TotalDismissed++
	if c := normalize(category); c != "" {
		st := s.data.Categories[c]
		st.Dismissed++
		s.data.Categories[c] = st
	}
	s.save()
}

// RecordClick counts a suggestion acted on in category.
func (s *Store) RecordClick(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.TotalClicked++
	if c := normalize(category); c != "" {
		st := s.data.Categories[c]
		st.Clicked++
		s.data.Categories[c] = st
	}
	s.save()
}

// InterestLevel returns clicks/(clicks+dismissals) for category, or the
// overall ratio when category is empty. 0.5 with no data.
func (s *Store) InterestLevel(category string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked(category).Interest()
}

func (s *Store) statsLocked(category string) CategoryStats {
	c := normalize(category)
	if c == "" {
		return s.data.Overall()
	}
	return s.data.Categories[c]
}

// ShouldSuppress reports whether suggestions in category should be held
// back: at least MinSamples responses and interest under SuppressBelow.
func (s *Store) ShouldSuppress(category string) bool {
	c := normalize(category)
	if c == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.data.Categories[c]
	if st.Responses() < s.policy.MinSamples {
		return false
	}
	return st.Interest() < s.policy.SuppressBelow
}

// Pressure is how over-suggested a category is, in [0,1]: unanswered or
// dismissed suggestions push it up, clicks pull it down.
func (s *Store) Pressure(category string) float64 {
	c := normalize(category)
	if c == "" {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.data.Categories[c]
	ignored := st.Shown - st.Clicked
	if ignored <= 0 {
		return 0
	}
	p := float64(ignored) / 10.0
	if p > 1 {
		p = 1
	}
	return p
}

// Suggested reports whether category has ever been suggested.
func (s *Store) Suggested(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Categories[normalize(category)].Shown > 0
}

// MarkNotInterested records that the traveler rejected an activity.
func (s *Store) MarkNotInterested(activityID string) {
	if activityID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.NotInterested[activityID]; ok {
		return
	}
	s.data.NotInterested[activityID] = s.now()
	s.save()
}

// IsNotInterested reports whether the activity was rejected.
func (s *Store) IsNotInterested(activityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data.NotInterested[activityID]
	return ok
}

// Snapshot returns a deep copy of the current data.
func (s *Store) Snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data
	d.Categories = make(map[string]CategoryStats, len(s.data.Categories))
	for k, v := range s.data.Categories {
		d.Categories[k] = v
	}
	d.NotInterested = make(map[string]time.Time, len(s.data.NotInterested))
	for k, v := range s.data.NotInterested {
		d.NotInterested[k] = v
	}
	return d
}

// Reset clears all counters, including the durable record. This is the
// only way counters go down.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newData()
	s.synced = true
	s.save()
}
