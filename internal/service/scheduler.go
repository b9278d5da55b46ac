package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pkordes/cruise-price-tracker/internal/config"
)

// Scheduler triggers full runs at the wall-clock times of the tracker
// file's schedule. A firing that finds a run in progress is dropped, so
// missed firings coalesce into the run already going.
type Scheduler struct {
	cron     *cron.Cron
	runner   *Runner
	logger   *slog.Logger
	location *time.Location
	times    []string
}

// NewScheduler parses sched and registers one daily entry per time.
func NewScheduler(runner *Runner, sched config.Schedule, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := sched.Location()
	if err != nil {
		return nil, fmt.Errorf("service.NewScheduler: %w", err)
	}
	times, err := sched.ParseTimes()
	if err != nil {
		return nil, fmt.Errorf("service.NewScheduler: %w", err)
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		runner:   runner,
		logger:   logger,
		location: loc,
	}
	for _, t := range times {
		spec := fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
		if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
			return nil, fmt.Errorf("service.NewScheduler: %s: %w", spec, err)
		}
		s.times = append(s.times, fmt.Sprintf("%02d:%02d", t.Hour, t.Minute))
	}
	return s, nil
}

func (s *Scheduler) fire() {
	err := s.runner.Trigger(context.Background(), ModuleAll)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("scheduled run skipped; a run is already in progress")
	case err != nil:
		s.logger.Error("scheduled run could not start", "error", err)
	}
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "timezone", s.location.String(), "times", s.times)
}

// Stop prevents further firings. Runs already triggered are owned by the
// Runner and are not waited for here.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next firing time, or the zero time when none is scheduled.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// Describe summarizes the schedule for the run-state message.
func (s *Scheduler) Describe() string {
	return fmt.Sprintf("Scheduler active for %s at %s", s.location.String(), strings.Join(s.times, ", "))
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
