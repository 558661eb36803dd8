package trigger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/model"
)

// Suppressor says whether a learning category has been tuned out.
type Suppressor interface {
	ShouldSuppress(category string) bool
}

// CooldownStore remembers when each cooldown key last fired.
type CooldownStore interface {
	Ready(key string, window time.Duration, now time.Time) bool
	Commit(fired map[string]time.Time)
}

// Scheduler evaluates triggers against the current context.
type Scheduler struct {
	learning  Suppressor
	cooldowns CooldownStore
	newID     func() string
	onError   func(triggerID string, err error)
}

// NewScheduler creates a scheduler. learning may be nil (nothing suppressed).
func NewScheduler(learning Suppressor, cooldowns CooldownStore) *Scheduler {
	return &Scheduler{
		learning:  learning,
		cooldowns: cooldowns,
		newID:     uuid.NewString,
	}
}

// OnError registers a callback for failing triggers.
func (s *Scheduler) OnError(fn func(triggerID string, err error)) *Scheduler {
	s.onError = fn
	return s
}

// Check runs every trigger once and returns the messages that fired, in
// registry order. Each trigger fires at most once per call. Cooldown stamps
// for everything that fired are committed together at the end.
func (s *Scheduler) Check(ctx *Context, recs []model.EnrichedActivity, triggers []Trigger) []model.ProactiveMessage {
	return s.Sweep(ctx, recs, triggers, nil)
}

// Sweep is Check with a delivery step: each fired message is handed to
// accept, and only accepted messages are returned and stamp their cooldown
// key. A rejected message leaves its trigger ready for the next sweep. A nil
// accept takes everything.
func (s *Scheduler) Sweep(ctx *Context, recs []model.EnrichedActivity, triggers []Trigger, accept func(model.ProactiveMessage) bool) []model.ProactiveMessage {
	seen := make(map[string]time.Time)
	fired := make(map[string]time.Time)
	var out []model.ProactiveMessage

	for i := range triggers {
		t := &triggers[i]
		msg, key, ok := s.evaluate(ctx, recs, t, seen)
		if !ok {
			continue
		}
		seen[key] = ctx.Now
		if accept != nil && !accept(msg) {
			continue
		}
		fired[key] = ctx.Now
		out = append(out, msg)
	}

	if len(fired) > 0 && s.cooldowns != nil {
		s.cooldowns.Commit(fired)
	}
	return out
}

// evaluate returns the message a trigger fires, if any, and its cooldown key.
func (s *Scheduler) evaluate(ctx *Context, recs []model.EnrichedActivity, t *Trigger, seen map[string]time.Time) (model.ProactiveMessage, string, bool) {
	if !ctx.Mode.AllowsTrigger(t.Type) {
		return model.ProactiveMessage{}, "", false
	}

	subjects, err := s.condition(ctx, recs, t)
	if err != nil {
		s.fail(t, err)
		return model.ProactiveMessage{}, "", false
	}

	for _, subj := range subjects {
		key := t.CooldownKey(subj)
		if _, dup := seen[key]; dup {
			continue
		}
		if s.cooldowns != nil && !s.cooldowns.Ready(key, t.Cooldown, ctx.Now) {
			continue
		}
		if s.suppressed(t.category(subj)) {
			continue
		}

		msg, err := s.generate(ctx, t, subj)
		if err != nil {
			s.fail(t, err)
			return model.ProactiveMessage{}, "", false
		}
		s.stamp(&msg, ctx.Now, t, subj)
		if s.suppressed(msg.Category) {
			continue
		}
		return msg, key, true
	}
	return model.ProactiveMessage{}, "", false
}

func (s *Scheduler) suppressed(category string) bool {
	return s.learning != nil && category != "" && s.learning.ShouldSuppress(category)
}

func (s *Scheduler) condition(ctx *Context, recs []model.EnrichedActivity, t *Trigger) (subjects []Subject, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger %s: condition panic: %v", t.ID, r)
		}
	}()
	if t.Condition == nil {
		return nil, fmt.Errorf("trigger %s: no condition", t.ID)
	}
	return t.Condition(ctx, recs), nil
}

func (s *Scheduler) generate(ctx *Context, t *Trigger, subj Subject) (msg model.ProactiveMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger %s: generator panic: %v", t.ID, r)
		}
	}()
	if t.Generate == nil {
		return msg, fmt.Errorf("trigger %s: no generator", t.ID)
	}
	msg, err = t.Generate(ctx, subj)
	if err != nil {
		return msg, fmt.Errorf("trigger %s: %w", t.ID, err)
	}
	return msg, nil
}

// stamp fills in the fields the scheduler owns, and defaults the rest from
// the trigger and subject.
func (s *Scheduler) stamp(msg *model.ProactiveMessage, now time.Time, t *Trigger, subj Subject) {
	msg.ID = s.newID()
	msg.CreatedAt = now
	msg.ExpiresAt = now.Add(t.TTL)
	msg.IsDismissed = false

	if msg.Type == "" {
		msg.Type = t.Type
	}
	if msg.Category == "" {
		msg.Category = t.category(subj)
	}
	if msg.Priority == 0 {
		msg.Priority = t.Priority
	}
	if msg.ActivityID == "" && subj.Activity != nil {
		msg.ActivityID = subj.Activity.Activity.ID
	}
}

func (s *Scheduler) fail(t *Trigger, err error) {
	logging.Warn("trigger skipped", "trigger", t.ID, "error", err)
	if s.onError != nil {
		s.onError(t.ID, err)
	}
}
