package queue

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/jobq/pkg/logger"
)

// Argument keys the scheduler adds to every recurring message.
const (
	ScheduleArgName = "schedule"
	ScheduleArgSlot = "scheduled_for"
)

// Scheduler keeps one delayed message pending for each recurring entry.
// Messages are pushed as unique, with the entry name and run time in their
// arguments, so any number of schedulers sharing a store plan each run once.
type Scheduler struct {
	queue    Queue
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*scheduleEntry
}

type scheduleEntry struct {
	name     string
	schedule Schedule
	target   string
	args     Arguments
	opts     []MessageOption
	planned  time.Time
}

// NewScheduler creates a scheduler pushing into q
func NewScheduler(q Queue, opts ...SchedulerOption) (*Scheduler, error) {
	if q == nil {
		return nil, ErrSchedulerNotReady
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		queue:    q,
		interval: options.checkInterval,
		now:      options.now,
		logger:   options.logger.With(logger.Component("queue.scheduler")),
		entries:  make(map[string]*scheduleEntry),
	}, nil
}

// Add registers a recurring message for target. opts apply to every
// message; the ready time and uniqueness are set by the scheduler.
func (s *Scheduler) Add(name string, schedule Schedule, target string, args Arguments, opts ...MessageOption) error {
	if name == "" || schedule == nil {
		return ErrInvalidSchedule
	}
	if target == "" {
		return ErrInvalidTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrScheduleExists, name)
	}
	s.entries[name] = &scheduleEntry{
		name:     name,
		schedule: schedule,
		target:   target,
		args:     args,
		opts:     opts,
	}

	s.logger.Info("registered recurring message",
		slog.String("schedule", name),
		slog.String("when", schedule.String()),
		logger.Target(target))
	return nil
}

// Remove unregisters an entry. A message already planned for it stays queued.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

// Entries returns the registered entry names, sorted
func (s *Scheduler) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.entries))
}

// Run plans due entries immediately and then every check interval until ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.Entries()) == 0 {
		return ErrSchedulerEmpty
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick pushes the next run of every entry whose planned run has passed.
// Failed pushes are logged and retried on the next tick.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*scheduleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.planned.IsZero() || !e.planned.After(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		// Missed runs are skipped: the next run is always planned from now.
		next := e.schedule.Next(now)
		if next.IsZero() {
			s.logger.WarnContext(ctx, "recurring message has no future run",
				slog.String("schedule", e.name),
				slog.String("when", e.schedule.String()))
			continue
		}
		added, err := s.queue.Push(ctx, s.message(e, next, now))
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to plan recurring message",
				slog.String("schedule", e.name),
				logger.Error(err))
			continue
		}

		s.mu.Lock()
		e.planned = next
		s.mu.Unlock()

		s.logger.DebugContext(ctx, "planned recurring message",
			slog.String("schedule", e.name),
			slog.Time("ready_at", next),
			slog.Bool("duplicate", !added))
	}
}

func (s *Scheduler) message(e *scheduleEntry, at, now time.Time) *Message {
	args := maps.Clone(e.args)
	if args == nil {
		args = Arguments{}
	}
	args[ScheduleArgName] = e.name
	args[ScheduleArgSlot] = at.UTC().Format(time.RFC3339)

	opts := append(slices.Clone(e.opts),
		WithReadyAt(at),
		WithUnique(true),
		WithMessageClock(func() time.Time { return now }),
	)
	return NewMessage(e.target, args, opts...)
}
