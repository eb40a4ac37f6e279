// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/config"
	"github.com/telekom/catfact-mailer/pkg/dispatch"
	"github.com/telekom/catfact-mailer/pkg/metrics"
)

const maxComputeBackoff = 5 * time.Minute

// State of the scheduler loop.
type State string

const (
	StateWaiting     State = "waiting"
	StateDispatching State = "dispatching"
)

// Cycle is one unit of scheduled work.
type Cycle interface {
	RunCycle(ctx context.Context) (*dispatch.CycleReport, error)
}

// ComputeError means the next trigger instant could not be determined.
type ComputeError struct {
	Spec string
	Now  time.Time
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("schedule %q has no activation after %s", e.Spec, e.Now.Format(time.RFC3339))
}

// Options configures New.
type Options struct {
	// Spec is a cron expression or descriptor. Default: "@midnight"
	Spec string
	// Location is the zone midnight is evaluated in. Default: time.Local
	Location *time.Location
	// ComputeRetryBackoff is the initial backoff after a ComputeError.
	ComputeRetryBackoff time.Duration
	Clock               Clock
}

// OptionsFromConfig maps the schedule section of the configuration.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Spec:                cfg.Schedule.Spec,
		Location:            loc,
		ComputeRetryBackoff: cfg.ComputeRetryBackoff(),
	}, nil
}

// Scheduler runs cycle once per activation of its schedule. At most one
// cycle is in flight and at most one cycle runs per calendar day.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	loc      *time.Location
	backoff  time.Duration
	clock    Clock
	cycle    Cycle
	log      *zap.SugaredLogger

	mu         sync.RWMutex
	state      State
	next       time.Time
	lastReport *dispatch.CycleReport
	lastRunDay string
}

// New parses the schedule. An invalid spec is a startup error.
func New(cycle Cycle, opts Options, log *zap.SugaredLogger) (*Scheduler, error) {
	if opts.Spec == "" {
		opts.Spec = config.DefaultScheduleSpec
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ComputeRetryBackoff <= 0 {
		opts.ComputeRetryBackoff = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	schedule, err := parseSchedule(opts.Spec, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", opts.Spec, err)
	}

	return &Scheduler{
		spec:     opts.Spec,
		schedule: schedule,
		loc:      opts.Location,
		backoff:  opts.ComputeRetryBackoff,
		clock:    opts.Clock,
		cycle:    cycle,
		log:      log.Named("scheduler"),
		state:    StateWaiting,
	}, nil
}

// NextTrigger returns the first activation strictly after now, evaluated on
// the calendar of the configured location.
func (s *Scheduler) NextTrigger(now time.Time) (time.Time, error) {
	next := s.schedule.Next(now.In(s.loc))
	if next.IsZero() || !next.After(now) {
		return time.Time{}, &ComputeError{Spec: s.spec, Now: now}
	}
	return next, nil
}

// DurationUntilNext returns how long to sleep from now until NextTrigger(now).
func (s *Scheduler) DurationUntilNext(now time.Time) (time.Duration, error) {
	next, err := s.NextTrigger(now)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}

// Run loops until ctx is cancelled. Cycle errors and panics are logged and the
// loop continues; trigger computation errors are retried with backoff.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infow("Scheduler started", "spec", s.spec, "location", s.loc.String())
	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("Scheduler stopped")
			return err
		}

		next, err := s.computeNext(ctx)
		if err != nil {
			s.log.Info("Scheduler stopped")
			return err
		}
		s.setWaiting(next)

		if err := s.sleepUntil(ctx, next); err != nil {
			s.log.Info("Scheduler stopped")
			return err
		}

		day := next.In(s.loc).Format(time.DateOnly)
		if day == s.lastDay() {
			s.log.Warnw("Trigger already handled today, skipping", "day", day)
			continue
		}
		s.runCycle(ctx, day)
	}
}

func (s *Scheduler) computeNext(ctx context.Context) (time.Time, error) {
	var next time.Time
	b := retry.WithCappedDuration(maxComputeBackoff, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		t, err := s.NextTrigger(s.clock.Now())
		if err != nil {
			metrics.SchedulerComputeErrors.Inc()
			s.log.Errorw("Failed to compute next trigger, retrying", "error", err)
			return retry.RetryableError(err)
		}
		next = t
		return nil
	})
	return next, err
}

// sleepUntil blocks until the clock reaches target. A wakeup that arrives
// early sleeps again for the remainder.
func (s *Scheduler) sleepUntil(ctx context.Context, target time.Time) error {
	for {
		remaining := target.Sub(s.clock.Now())
		if remaining <= 0 {
			return ctx.Err()
		}
		s.log.Debugw("Sleeping until next trigger", "target", target, "remaining", remaining.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(remaining):
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, day string) {
	s.mu.Lock()
	s.state = StateDispatching
	s.lastRunDay = day
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchCycles.WithLabelValues("panic").Inc()
			s.log.Errorw("Dispatch cycle panicked", "day", day, "panic", r)
		}
		s.mu.Lock()
		s.state = StateWaiting
		s.mu.Unlock()
	}()

	report, err := s.cycle.RunCycle(ctx)
	if err != nil {
		s.log.Errorw("Dispatch cycle failed", "day", day, "error", err)
		return
	}

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()
}

func (s *Scheduler) setWaiting(next time.Time) {
	s.mu.Lock()
	s.state = StateWaiting
	s.next = next
	s.mu.Unlock()
	metrics.SchedulerNextTriggerTimestamp.Set(float64(next.Unix()))
	s.log.Infow("Next dispatch scheduled", "at", next, "in", next.Sub(s.clock.Now()).Round(time.Second).String())
}

func (s *Scheduler) lastDay() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRunDay
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Next returns the trigger the loop is currently waiting for, or the zero
// time before the first computation.
func (s *Scheduler) Next() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

// LastReport returns the report of the last successful cycle, or nil.
func (s *Scheduler) LastReport() *dispatch.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}
