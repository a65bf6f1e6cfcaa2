// Package dispatch decides when a day's collected reports are final and
// triggers the aggregated summary exactly once per date.
//
// Each (re)submission arms a per-submitter grace timer. When a timer fires it
// removes its own entry first, then evaluates global readiness: headcount
// reached and no submitter still inside its grace window, measured by wall
// clock rather than timer-handle liveness. Manual, scheduled, and realtime
// triggers share the same store and dispatched flag.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/report"
	"github.com/fyrsmithlabs/reportd/internal/store"
)

// DefaultGracePeriod is the per-submitter debounce window.
const DefaultGracePeriod = 10 * time.Minute

// ErrAlreadyDispatched is returned by explicit triggers when the date's
// summary has already been sent.
var ErrAlreadyDispatched = errors.New("summary already dispatched for date")

// Dispatcher renders and transmits an aggregated summary.
type Dispatcher interface {
	Send(ctx context.Context, reports []report.Report, displayDate string) error
}

// MembershipSource yields the number of submitters expected for a date.
type MembershipSource interface {
	ExpectedHeadcount(date string) int
}

// Mode selects how summaries are triggered.
type Mode string

const (
	// ModeRealtime sends a single-submitter summary on every upsert.
	ModeRealtime Mode = "realtime"
	// ModeManual sends only on an explicit command.
	ModeManual Mode = "manual"
	// ModeScheduled sends at a fixed daily time.
	ModeScheduled Mode = "scheduled"
	// ModeAuto sends once all expected submitters have stabilized.
	ModeAuto Mode = "auto"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRealtime, ModeManual, ModeScheduled, ModeAuto:
		return Mode(s), nil
	case "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown dispatch mode %q", s)
}

// Config configures the coordinator.
type Config struct {
	// GracePeriod is the per-submitter debounce window (default 10m).
	GracePeriod time.Duration
}

// graceEntry is one submitter's live debounce state. Entries are ephemeral
// and not persisted; a restart simply drops in-flight debounce state.
type graceEntry struct {
	submitter   string
	date        string
	messageID   string
	submittedAt time.Time
	timer       *time.Timer
}

// Coordinator owns the grace-timer set and the dispatch decision. All state
// is guarded by one mutex so timer callbacks and inbound events cannot
// interleave read-modify-write sequences.
type Coordinator struct {
	store   *store.Store
	sender  Dispatcher
	members MembershipSource
	logger  *zap.Logger
	grace   time.Duration

	mu     sync.Mutex
	timers map[string]*graceEntry

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

// New creates a Coordinator.
func New(st *store.Store, sender Dispatcher, members MembershipSource, cfg Config, logger *zap.Logger) (*Coordinator, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if sender == nil {
		return nil, errors.New("dispatcher is required")
	}
	if members == nil {
		return nil, errors.New("membership source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	return &Coordinator{
		store:     st,
		sender:    sender,
		members:   members,
		logger:    logger,
		grace:     grace,
		timers:    make(map[string]*graceEntry),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}, nil
}

// OnReportSubmitted arms (or re-arms) the submitter's grace timer after a
// successful upsert. The replacement is a single keyed swap: the old entry is
// stopped and superseded atomically under the lock, so a stale callback can
// never evaluate on behalf of a newer submission.
func (c *Coordinator) OnReportSubmitted(submitter, date, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.IsDispatched(date) {
		c.logger.Info("summary already dispatched, not arming grace timer",
			zap.String("submitter", submitter), zap.String("date", date))
		return
	}

	if old, ok := c.timers[submitter]; ok {
		old.timer.Stop()
		c.logger.Info("superseding grace timer",
			zap.String("submitter", submitter),
			zap.String("old_message_id", old.messageID),
			zap.String("message_id", messageID))
	}

	e := &graceEntry{
		submitter:   submitter,
		date:        date,
		messageID:   messageID,
		submittedAt: c.now(),
	}
	e.timer = c.afterFunc(c.grace, func() { c.onTimerFired(e) })
	c.timers[submitter] = e
	graceTimersActive.Set(float64(len(c.timers)))

	c.logger.Info("grace timer armed",
		zap.String("submitter", submitter),
		zap.String("date", date),
		zap.Duration("grace", c.grace))
}

// onTimerFired runs when a grace timer expires. The firing entry removes
// itself from the live set before readiness evaluation; removing it after
// would count the firing submitter as still active and, if it was the last
// one to clear, block dispatch permanently.
func (c *Coordinator) onTimerFired(e *graceEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.timers[e.submitter]
	if !ok || cur != e {
		// Superseded by a resubmission or cancelled by a recall after this
		// callback was already scheduled.
		return
	}
	delete(c.timers, e.submitter)
	graceTimersActive.Set(float64(len(c.timers)))

	c.logger.Info("grace period elapsed",
		zap.String("submitter", e.submitter), zap.String("date", e.date))

	c.evaluateLocked(context.Background(), e.date)
}

// EvaluateReadiness runs the dispatch decision for a date. Safe to call any
// number of times; after the date is dispatched it is a no-op.
func (c *Coordinator) EvaluateReadiness(ctx context.Context, date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluateLocked(ctx, date)
}

func (c *Coordinator) evaluateLocked(ctx context.Context, date string) {
	if c.store.IsDispatched(date) {
		c.logger.Info("summary already dispatched", zap.String("date", date))
		return
	}

	count := c.store.Count(date)
	expected := c.members.ExpectedHeadcount(date)
	if count < expected {
		c.logger.Info("headcount not reached",
			zap.String("date", date),
			zap.Int("count", count),
			zap.Int("expected", expected))
		return
	}

	// Wall-clock recheck. A timer object may be mid-callback when queried, so
	// handle liveness is not a reliable signal; recorded timestamps are.
	now := c.now()
	inGrace := 0
	for _, e := range c.timers {
		if e.date != date {
			continue
		}
		if now.Sub(e.submittedAt) < c.grace {
			inGrace++
		}
	}
	if inGrace > 0 {
		c.logger.Info("submitters still within grace window",
			zap.String("date", date), zap.Int("in_grace", inGrace))
		return
	}

	c.logger.Info("all submitters stabilized, dispatching summary",
		zap.String("date", date), zap.Int("count", count))

	if err := c.sendLocked(ctx, date); err != nil {
		// Leave the date undispatched so any later trigger can retry.
		c.logger.Error("summary dispatch failed", zap.String("date", date), zap.Error(err))
		return
	}

	c.clearTimersLocked(date)
}

// DispatchNow sends the date's summary for an explicit trigger (manual
// command or daily schedule), guarded by the dispatched flag.
func (c *Coordinator) DispatchNow(ctx context.Context, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.IsDispatched(date) {
		return ErrAlreadyDispatched
	}

	if err := c.sendLocked(ctx, date); err != nil {
		return err
	}

	c.clearTimersLocked(date)
	return nil
}

// SendSingle emits a one-submitter summary immediately (realtime mode); the
// grace-period machinery is bypassed entirely.
func (c *Coordinator) SendSingle(ctx context.Context, rec report.Report) error {
	if err := c.sender.Send(ctx, []report.Report{rec}, DisplayDate(rec.Date)); err != nil {
		sendFailures.Inc()
		return fmt.Errorf("failed to send realtime summary: %w", err)
	}
	summariesSent.Inc()
	return nil
}

// OnMessageRecalled removes the recalled report and cancels the matching
// grace timer so the submitter can resubmit cleanly. Returns whether a
// report was removed.
func (c *Coordinator) OnMessageRecalled(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.RemoveByMessageID(messageID) {
		return false
	}

	for submitter, e := range c.timers {
		if e.messageID != messageID {
			continue
		}
		e.timer.Stop()
		delete(c.timers, submitter)
		graceTimersActive.Set(float64(len(c.timers)))
		c.logger.Info("grace timer cancelled by recall",
			zap.String("submitter", submitter),
			zap.String("message_id", messageID))
		break
	}
	return true
}

// sendLocked transmits the date's aggregate and marks it dispatched on
// success. Callers hold c.mu, which is what makes the at-most-once guarantee
// hold across racing triggers.
func (c *Coordinator) sendLocked(ctx context.Context, date string) error {
	reports := c.store.All(date)
	if err := c.sender.Send(ctx, reports, DisplayDate(date)); err != nil {
		sendFailures.Inc()
		return err
	}
	summariesSent.Inc()
	c.store.MarkDispatched(date)
	return nil
}

// clearTimersLocked drops the dispatched date's timers only; entries armed
// for another calendar day keep running.
func (c *Coordinator) clearTimersLocked(date string) {
	for submitter, e := range c.timers {
		if e.date != date {
			continue
		}
		e.timer.Stop()
		delete(c.timers, submitter)
	}
	graceTimersActive.Set(float64(len(c.timers)))
}

// activeTimers reports the live grace-timer count. Test hook.
func (c *Coordinator) activeTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
