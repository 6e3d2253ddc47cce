// Package scheduler fires the daily bulletin refresh and model run on cron
// schedules and retries transient failures with exponential backoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata" // schedules name IANA zones; keep them resolvable in minimal images

	"github.com/couchcryptid/solar-outlook-service/internal/domain"
	"github.com/couchcryptid/solar-outlook-service/internal/reconcile"
	"github.com/robfig/cron/v3"
)

// Cycles is the engine surface the scheduler triggers.
type Cycles interface {
	Refresh(ctx context.Context) (reconcile.RefreshResult, error)
	RunModel(ctx context.Context) (reconcile.MergeResult, error)
}

// Options configures the schedules. An empty ModelSpec disables the model job.
type Options struct {
	RefreshSpec     string
	RefreshTimezone string
	ModelSpec       string
	ModelTimezone   string

	// MaxAttempts bounds retries of a failed cycle; values below 1 mean one attempt.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron   *cron.Cron
	cycles Cycles
	logger *slog.Logger
	opts   Options
	ctx    context.Context
}

// New validates the schedules and registers the jobs without starting them.
func New(cycles Cycles, logger *slog.Logger, opts Options) (*Scheduler, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 30 * time.Second
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		cycles: cycles,
		logger: logger,
		opts:   opts,
		ctx:    context.Background(),
	}

	refreshSpec, err := withTimezone(opts.RefreshSpec, opts.RefreshTimezone)
	if err != nil {
		return nil, fmt.Errorf("refresh schedule: %w", err)
	}
	if _, err := s.cron.AddFunc(refreshSpec, func() { s.RunRefresh(s.ctx) }); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", opts.RefreshSpec, err)
	}

	if opts.ModelSpec != "" {
		modelSpec, err := withTimezone(opts.ModelSpec, opts.ModelTimezone)
		if err != nil {
			return nil, fmt.Errorf("model schedule: %w", err)
		}
		if _, err := s.cron.AddFunc(modelSpec, func() { s.RunModel(s.ctx) }); err != nil {
			return nil, fmt.Errorf("model schedule %q: %w", opts.ModelSpec, err)
		}
	}

	return s, nil
}

// withTimezone prefixes spec with CRON_TZ so each job keeps its own zone.
func withTimezone(spec, tz string) (string, error) {
	if tz == "" {
		return spec, nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", fmt.Errorf("timezone %q: %w", tz, err)
	}
	return "CRON_TZ=" + tz + " " + spec, nil
}

// Jobs returns the number of registered cron entries.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Run starts the cron runner and blocks until ctx is cancelled, then waits
// for any running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("job scheduled", "entry", e.ID, "next", e.Next)
	}

	<-ctx.Done()
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	<-s.cron.Stop().Done()
	return nil
}

// RunStartup performs the refresh and, when configured, the model run once.
func (s *Scheduler) RunStartup(ctx context.Context) {
	s.RunRefresh(ctx)
	if s.opts.ModelSpec != "" {
		s.RunModel(ctx)
	}
}

// RunRefresh triggers a bulletin refresh, retrying transient failures.
func (s *Scheduler) RunRefresh(ctx context.Context) {
	s.retry(ctx, "refresh", func(ctx context.Context) error {
		res, err := s.cycles.Refresh(ctx)
		if err == nil {
			s.logger.Info("scheduled refresh complete", "parsed", res.Parsed, "upserted", res.Upserted, "deleted", res.Deleted)
		}
		return err
	})
}

// RunModel triggers a model run and merge, retrying transient failures.
func (s *Scheduler) RunModel(ctx context.Context) {
	s.retry(ctx, "model", func(ctx context.Context) error {
		res, err := s.cycles.RunModel(ctx)
		if err == nil {
			s.logger.Info("scheduled model run complete", "accepted", res.Accepted, "upserted", res.Upserted, "skipped", res.Skipped)
		}
		return err
	})
}

func (s *Scheduler) retry(ctx context.Context, job string, fn func(context.Context) error) {
	backoff := s.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return
		}
		if !retryable(err) {
			s.logger.Warn("scheduled job not retried", "job", job, "error", err)
			return
		}
		if attempt >= s.opts.MaxAttempts {
			s.logger.Error("scheduled job failed", "job", job, "attempts", attempt, "error", err)
			return
		}
		s.logger.Warn("scheduled job failed, retrying", "job", job, "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, s.opts.MaxBackoff)
	}
}

// retryable reports whether a failed cycle may succeed on a later attempt.
// A concurrent cycle already covers the work and an empty bulletin will not
// change within the backoff window.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrCycleInProgress),
		errors.Is(err, domain.ErrEmptyBulletin),
		errors.Is(err, domain.ErrInvalidPrediction),
		errors.Is(err, reconcile.ErrModelNotConfigured),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
