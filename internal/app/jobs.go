package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/dispatch"
)

// cronSpec converts a HH:MM clock time into a daily cron expression.
func cronSpec(clock string) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// startJobs registers the daily cron jobs. Returns nil when no job is
// configured.
func (a *App) startJobs(ctx context.Context) (*cron.Cron, error) {
	type job struct {
		clock string
		name  string
		fn    func()
	}

	var jobs []job
	if a.mode == dispatch.ModeScheduled && a.cfg.Report.ScheduleTime != "" {
		jobs = append(jobs, job{a.cfg.Report.ScheduleTime, "scheduled summary",
			func() { a.runScheduledSummary(ctx) }})
	}
	if a.cfg.Report.ReminderTime != "" {
		jobs = append(jobs, job{a.cfg.Report.ReminderTime, "submission reminder",
			func() { a.runReminder(ctx) }})
	}
	if a.cfg.Report.CatchupTime != "" {
		jobs = append(jobs, job{a.cfg.Report.CatchupTime, "previous day catch-up",
			func() { a.runCatchup(ctx) }})
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	c := cron.New()
	for _, j := range jobs {
		spec, err := cronSpec(j.clock)
		if err != nil {
			return nil, err
		}
		if _, err := c.AddFunc(spec, j.fn); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
		a.logger.Info("job scheduled",
			zap.String("job", j.name), zap.String("at", j.clock))
	}
	c.Start()
	return c, nil
}

// runScheduledSummary dispatches today's summary at the configured time,
// skipping holidays and weekends.
func (a *App) runScheduledSummary(ctx context.Context) {
	today := a.store.Today()
	if !a.workdays.IsWorkday(ctx, today) {
		a.logger.Info("skipping scheduled summary on non-workday",
			zap.String("date", today))
		return
	}
	if err := a.coordinator.DispatchNow(ctx, today); err != nil {
		if errors.Is(err, dispatch.ErrAlreadyDispatched) {
			return
		}
		a.logger.Error("scheduled summary failed",
			zap.String("date", today), zap.Error(err))
	}
}

// runReminder nudges required submitters who have not reported yet.
func (a *App) runReminder(ctx context.Context) {
	today := a.store.Today()
	if !a.workdays.IsWorkday(ctx, today) {
		return
	}
	if a.store.IsDispatched(today) {
		return
	}

	missing := a.roster.Missing(a.store.Submitters(today), func(name string) bool {
		return a.vacations.IsOnVacation(name, today)
	})
	if len(missing) == 0 {
		return
	}

	var userIDs []string
	for _, name := range missing {
		if id, ok := a.roster.UserID(name); ok {
			userIDs = append(userIDs, id)
		}
	}

	text := fmt.Sprintf("Daily report reminder: still waiting on %s.",
		strings.Join(missing, ", "))
	if err := a.messenger.SendMention(ctx, a.cfg.Report.ChatID, text, userIDs); err != nil {
		a.logger.Error("reminder delivery failed", zap.Error(err))
		return
	}
	a.logger.Info("reminder sent", zap.Strings("missing", missing))
}

// runCatchup sends the previous day's summary if it never went out, so a
// day that ended below headcount still gets its report the next morning.
func (a *App) runCatchup(ctx context.Context) {
	yesterday, err := dispatch.ResolveTargetDate("yesterday", time.Now())
	if err != nil {
		return
	}
	if a.store.IsDispatched(yesterday) || a.store.Count(yesterday) == 0 {
		return
	}
	a.logger.Info("dispatching missed summary from previous day",
		zap.String("date", yesterday))
	if err := a.coordinator.DispatchNow(ctx, yesterday); err != nil &&
		!errors.Is(err, dispatch.ErrAlreadyDispatched) {
		a.logger.Error("catch-up dispatch failed",
			zap.String("date", yesterday), zap.Error(err))
	}
}
