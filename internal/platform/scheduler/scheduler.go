// Package scheduler runs the periodic reconciliation jobs. Jobs that fail
// are logged and retried on the next tick; overlapping runs are not fenced
// because every job is built from idempotent operations.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is one scheduled unit of work. A returned error is surfaced to the
// runner's logger for alerting; it never stops the schedule.
type Job func(ctx context.Context) error

type Runner struct {
	logger *slog.Logger
	now    func() time.Time
}

func New(logger *slog.Logger) *Runner {
	return &Runner{logger: logger, now: time.Now}
}

// WithClock overrides the runner clock. Test helper.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Every runs job on a fixed interval until ctx is cancelled. The first run
// happens one interval after start, matching cron-style schedules.
func (r *Runner) Every(ctx context.Context, name string, interval time.Duration, job Job) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "scheduled job started", "job", name, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduled job stopped", "job", name)
			return ctx.Err()
		case <-ticker.C:
			r.run(ctx, name, job)
		}
	}
}

// DailyAt runs job once a day at the given wall-clock time in loc.
func (r *Runner) DailyAt(ctx context.Context, name string, hour, minute int, loc *time.Location, job Job) error {
	r.logger.InfoContext(ctx, "scheduled job started",
		"job", name,
		"at", time.Date(0, 1, 1, hour, minute, 0, 0, loc).Format("15:04"),
		"tz", loc.String(),
	)
	for {
		wait := time.Until(NextDailyRun(r.now(), hour, minute, loc))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.InfoContext(ctx, "scheduled job stopped", "job", name)
			return ctx.Err()
		case <-timer.C:
			r.run(ctx, name, job)
		}
	}
}

func (r *Runner) run(ctx context.Context, name string, job Job) {
	start := r.now()
	if err := job(ctx); err != nil {
		r.logger.ErrorContext(ctx, "scheduled job failed",
			"job", name,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}
	r.logger.InfoContext(ctx, "scheduled job completed",
		"job", name,
		"duration", time.Since(start),
	)
}

// NextDailyRun returns the next occurrence of hour:minute in loc strictly
// after now.
func NextDailyRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
