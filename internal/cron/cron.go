// Package cron implements the host's best-effort pseudo-cron.
//
// Events live in the option store and run only when something calls Spawn,
// normally at the end of an HTTP request or from "autoblog cron run". Due
// events are rescheduled from the spawn time, so missed ticks are not
// replayed. There is no locking across processes: two concurrent spawns may
// both run the same due event.
package cron

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"autoblog/internal/metrics"
	"autoblog/pkg/host"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OptionKey is the option holding the event list.
const OptionKey = "cron"

// FilterSchedules is the filter that lets code add named recurrences.
// It receives and returns a map[string]Schedule.
const FilterSchedules = "cron_schedules"

// Named recurrences available without filters.
const (
	Hourly     = "hourly"
	TwiceDaily = "twicedaily"
	Daily      = "daily"
	Weekly     = "weekly"
)

var (
	// ErrNotScheduled is returned when an event does not exist.
	ErrNotScheduled = errors.New("event not scheduled")

	// ErrAlreadyScheduled is returned when a recurring event with the same
	// hook and args already exists.
	ErrAlreadyScheduled = errors.New("event already scheduled")

	// ErrUnknownRecurrence is returned for a recurrence that is neither a
	// named schedule nor a valid cron expression.
	ErrUnknownRecurrence = errors.New("unknown recurrence")
)

// Schedule is a named recurrence.
type Schedule struct {
	Interval time.Duration `json:"interval"`
	Display  string        `json:"display"`
}

// DefaultSchedules returns the built-in named recurrences.
func DefaultSchedules() map[string]Schedule {
	return map[string]Schedule{
		Hourly:     {Interval: time.Hour, Display: "Once Hourly"},
		TwiceDaily: {Interval: 12 * time.Hour, Display: "Twice Daily"},
		Daily:      {Interval: 24 * time.Hour, Display: "Once Daily"},
		Weekly:     {Interval: 7 * 24 * time.Hour, Display: "Once Weekly"},
	}
}

// Event is one scheduled hook invocation.
type Event struct {
	ID         string         `json:"id"`
	Hook       string         `json:"hook"`
	Recurrence string         `json:"recurrence,omitempty"`
	NextRun    time.Time      `json:"next_run"`
	Args       map[string]any `json:"args,omitempty"`
}

// Recurring reports whether the event repeats.
func (e Event) Recurring() bool {
	return e.Recurrence != ""
}

// Scheduler implements host.Scheduler on top of an option store.
type Scheduler struct {
	store   host.OptionStore
	hooks   host.Hooks
	logger  *zap.Logger
	metrics *metrics.Metrics

	// mu serializes read-modify-write cycles within this process only.
	mu sync.Mutex
}

var _ host.Scheduler = (*Scheduler)(nil)

// New creates a scheduler that persists to store and fires events on hooks.
func New(store host.OptionStore, hooks host.Hooks, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:   store,
		hooks:   hooks,
		logger:  logger.Named("cron"),
		metrics: m,
	}
}

// Schedules returns the named recurrences after the FilterSchedules filter.
func (s *Scheduler) Schedules(ctx context.Context) map[string]Schedule {
	schedules := DefaultSchedules()
	if s.hooks == nil {
		return schedules
	}
	if filtered, ok := s.hooks.ApplyFilters(ctx, FilterSchedules, schedules).(map[string]Schedule); ok {
		return filtered
	}
	s.logger.Warn("cron_schedules filter returned an unexpected type")
	return schedules
}

// NextRun computes the next run after from for a named recurrence or a
// 5-field cron expression.
func (s *Scheduler) NextRun(ctx context.Context, recurrence string, from time.Time) (time.Time, error) {
	recurrence = strings.TrimSpace(recurrence)
	if sched, ok := s.Schedules(ctx)[recurrence]; ok && sched.Interval > 0 {
		return from.Add(sched.Interval), nil
	}
	if strings.Count(recurrence, " ") >= 4 {
		expr, err := ParseExpr(recurrence)
		if err != nil {
			return time.Time{}, err
		}
		return expr.Next(from)
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRecurrence, recurrence)
}

// ScheduleRecurring adds a recurring event.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, first time.Time, recurrence, hook string, args map[string]any) error {
	if _, err := s.NextRun(ctx, recurrence, first); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Hook == hook && ev.Recurring() && sameArgs(ev.Args, args) {
			return fmt.Errorf("%s: %w", hook, ErrAlreadyScheduled)
		}
	}

	events = append(events, Event{
		ID:         uuid.NewString(),
		Hook:       hook,
		Recurrence: strings.TrimSpace(recurrence),
		NextRun:    first,
		Args:       args,
	})
	if err := s.save(ctx, events); err != nil {
		return err
	}

	s.logger.Info("Scheduled recurring event",
		zap.String("hook", hook),
		zap.String("recurrence", recurrence),
		zap.Time("first_run", first))
	return nil
}

// ScheduleSingle adds an event that runs once.
func (s *Scheduler) ScheduleSingle(ctx context.Context, at time.Time, hook string, args map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load(ctx)
	if err != nil {
		return err
	}
	events = append(events, Event{
		ID:      uuid.NewString(),
		Hook:    hook,
		NextRun: at,
		Args:    args,
	})
	return s.save(ctx, events)
}

// NextScheduled returns the earliest run time of any event for hook.
func (s *Scheduler) NextScheduled(ctx context.Context, hook string) (time.Time, bool, error) {
	events, err := s.Events(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	for _, ev := range events {
		if ev.Hook == hook {
			return ev.NextRun, true, nil
		}
	}
	return time.Time{}, false, nil
}

// Unschedule removes the event with id.
func (s *Scheduler) Unschedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i, ev := range events {
		if ev.ID == id {
			return s.save(ctx, append(events[:i], events[i+1:]...))
		}
	}
	return fmt.Errorf("%s: %w", id, ErrNotScheduled)
}

// ClearScheduledHook removes every event for hook.
func (s *Scheduler) ClearScheduledHook(ctx context.Context, hook string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	kept := events[:0]
	removed := 0
	for _, ev := range events {
		if ev.Hook == hook {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return 0, err
	}

	s.logger.Info("Cleared scheduled hook", zap.String("hook", hook), zap.Int("removed", removed))
	return removed, nil
}

// Events returns all events ordered by next run time.
func (s *Scheduler) Events(ctx context.Context) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// Spawn runs every event due at now and returns how many ran. Recurring
// events are rescheduled from now before their hooks fire; single events are
// removed. An event whose recurrence can no longer be resolved runs once and
// is dropped.
func (s *Scheduler) Spawn(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	events, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	var due []Event
	kept := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.NextRun.After(now) {
			kept = append(kept, ev)
			continue
		}
		due = append(due, ev)
		if !ev.Recurring() {
			continue
		}
		next, err := s.NextRun(ctx, ev.Recurrence, now)
		if err != nil {
			s.logger.Warn("Dropping event with invalid recurrence",
				zap.String("hook", ev.Hook),
				zap.String("recurrence", ev.Recurrence),
				zap.Error(err))
			continue
		}
		ev.NextRun = next
		kept = append(kept, ev)
	}

	if len(due) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	for _, ev := range due {
		s.logger.Debug("Running cron event", zap.String("hook", ev.Hook), zap.String("id", ev.ID))
		args := ev.Args
		if args == nil {
			args = map[string]any{}
		}
		s.hooks.DoAction(ctx, ev.Hook, args)
		s.metrics.CronRan(ev.Hook)
	}
	return len(due), nil
}

type document struct {
	Events []Event `json:"events"`
}

// load decodes the stored list through JSON, which normalizes values coming
// back from any option store backend.
func (s *Scheduler) load(ctx context.Context) ([]Event, error) {
	raw, found, err := s.store.Get(ctx, OptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load cron events: %w", err)
	}
	if !found {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cron events: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode cron events: %w", err)
	}

	sort.SliceStable(doc.Events, func(i, j int) bool {
		return doc.Events[i].NextRun.Before(doc.Events[j].NextRun)
	})
	return doc.Events, nil
}

func (s *Scheduler) save(ctx context.Context, events []Event) error {
	data, err := json.Marshal(document{Events: events})
	if err != nil {
		return fmt.Errorf("failed to encode cron events: %w", err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to encode cron events: %w", err)
	}
	if err := s.store.Set(ctx, OptionKey, raw); err != nil {
		return fmt.Errorf("failed to save cron events: %w", err)
	}
	return nil
}

func sameArgs(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return bytes.Equal(ja, jb)
}
