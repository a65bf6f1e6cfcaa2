package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/report"
	"github.com/fyrsmithlabs/reportd/internal/store"
)

const testDate = "2026-02-02"

type mockDispatcher struct {
	mu    sync.Mutex
	sends [][]report.Report
	fail  bool
}

func (m *mockDispatcher) Send(_ context.Context, reports []report.Report, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	snapshot := make([]report.Report, len(reports))
	copy(snapshot, reports)
	m.sends = append(m.sends, snapshot)
	return nil
}

func (m *mockDispatcher) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *mockDispatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

func (m *mockDispatcher) last() []report.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sends) == 0 {
		return nil
	}
	return m.sends[len(m.sends)-1]
}

type fixedHeadcount int

func (f fixedHeadcount) ExpectedHeadcount(string) int { return int(f) }

func newTestCoordinator(t *testing.T, expected int, grace time.Duration) (*Coordinator, *mockDispatcher, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "reports.json"), zap.NewNop())
	require.NoError(t, err)

	sender := &mockDispatcher{}
	c, err := New(st, sender, fixedHeadcount(expected), Config{GracePeriod: grace}, zap.NewNop())
	require.NoError(t, err)
	return c, sender, st
}

func submit(st *store.Store, c *Coordinator, submitter, messageID string) {
	st.Upsert(report.Report{
		Submitter:   submitter,
		WorkContent: "work by " + submitter,
		MessageID:   messageID,
	}, testDate)
	c.OnReportSubmitted(submitter, testDate, messageID)
}

func TestNew_Validation(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "reports.json"), zap.NewNop())
	require.NoError(t, err)

	_, err = New(nil, &mockDispatcher{}, fixedHeadcount(1), Config{}, nil)
	require.Error(t, err)

	_, err = New(st, nil, fixedHeadcount(1), Config{}, nil)
	require.Error(t, err)

	_, err = New(st, &mockDispatcher{}, nil, Config{}, nil)
	require.Error(t, err)

	c, err := New(st, &mockDispatcher{}, fixedHeadcount(1), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultGracePeriod, c.grace)
}

func TestAutoDispatch_AllTimersExpireInAnyOrder(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 3, 30*time.Millisecond)

	// Staggered submissions so the timers complete in arbitrary order.
	for i, name := range []string{"alice", "bob", "carol"} {
		submit(st, c, name, fmt.Sprintf("m%d", i))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return sender.count() == 1 },
		2*time.Second, 10*time.Millisecond, "expected exactly one dispatch")

	assert.True(t, st.IsDispatched(testDate))
	assert.Equal(t, 0, c.activeTimers())
	assert.Len(t, sender.last(), 3)

	// Idempotent: any number of later evaluations change nothing.
	for i := 0; i < 5; i++ {
		c.EvaluateReadiness(context.Background(), testDate)
	}
	assert.Equal(t, 1, sender.count())
}

func TestHeadcountGating(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 3, 20*time.Millisecond)

	submit(st, c, "alice", "m1")
	submit(st, c, "bob", "m2")

	// Both grace windows elapse, but the expected headcount is not reached.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, sender.count())
	assert.False(t, st.IsDispatched(testDate))

	submit(st, c, "carol", "m3")

	require.Eventually(t, func() bool { return sender.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.True(t, st.IsDispatched(testDate))
}

func TestResubmissionSupersedesTimer(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 1, 80*time.Millisecond)

	submit(st, c, "alice", "m1")
	time.Sleep(30 * time.Millisecond)

	st.Upsert(report.Report{
		Submitter:   "alice",
		WorkContent: "corrected report",
		MessageID:   "m2",
	}, testDate)
	c.OnReportSubmitted("alice", testDate, "m2")
	assert.Equal(t, 1, c.activeTimers())

	require.Eventually(t, func() bool { return sender.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	// The superseded timer's callback must not produce a second dispatch.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, sender.count())

	sent := sender.last()
	require.Len(t, sent, 1)
	assert.Equal(t, "corrected report", sent[0].WorkContent)
	assert.Equal(t, "m2", sent[0].MessageID)
}

func TestRecallBeforeGraceExpiry(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 1, 100*time.Millisecond)

	submit(st, c, "alice", "m1")
	require.Equal(t, 1, c.activeTimers())

	require.True(t, c.OnMessageRecalled("m1"))

	assert.Equal(t, 0, c.activeTimers())
	assert.Equal(t, 0, st.Count(testDate))

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 0, sender.count())
	assert.False(t, st.IsDispatched(testDate))
}

func TestRecallUnknownMessage(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 1, 50*time.Millisecond)
	assert.False(t, c.OnMessageRecalled("never-seen"))
}

func TestRecallThenResubmit(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 1, 30*time.Millisecond)

	submit(st, c, "alice", "m1")
	require.True(t, c.OnMessageRecalled("m1"))

	submit(st, c, "alice", "m2")

	require.Eventually(t, func() bool { return sender.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	sent := sender.last()
	require.Len(t, sent, 1)
	assert.Equal(t, "m2", sent[0].MessageID)
}

func TestDispatchNow_GuardedByDispatchedFlag(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 5, time.Hour)

	submit(st, c, "alice", "m1")

	require.NoError(t, c.DispatchNow(context.Background(), testDate))
	assert.Equal(t, 1, sender.count())
	assert.True(t, st.IsDispatched(testDate))
	assert.Equal(t, 0, c.activeTimers())

	err := c.DispatchNow(context.Background(), testDate)
	require.ErrorIs(t, err, ErrAlreadyDispatched)
	assert.Equal(t, 1, sender.count())
}

func TestSendFailureStaysRetryable(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 1, 20*time.Millisecond)
	sender.setFail(true)

	submit(st, c, "alice", "m1")

	// The timer fires, evaluation runs, the send fails.
	require.Eventually(t, func() bool { return c.activeTimers() == 0 },
		2*time.Second, 10*time.Millisecond)
	assert.False(t, st.IsDispatched(testDate))
	assert.Equal(t, 0, sender.count())

	// A later trigger retries the same date successfully.
	sender.setFail(false)
	c.EvaluateReadiness(context.Background(), testDate)

	assert.Equal(t, 1, sender.count())
	assert.True(t, st.IsDispatched(testDate))
}

func TestEvaluateReadiness_ScopedToDate(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 1, time.Hour)

	// Today's partition is complete and quiet.
	st.Upsert(report.Report{Submitter: "alice", WorkContent: "done", MessageID: "m1"}, testDate)

	// Bob is mid-grace for the next day.
	st.Upsert(report.Report{Submitter: "bob", WorkContent: "early", MessageID: "m2"}, "2026-02-03")
	c.OnReportSubmitted("bob", "2026-02-03", "m2")
	require.Equal(t, 1, c.activeTimers())

	c.EvaluateReadiness(context.Background(), testDate)

	assert.Equal(t, 1, sender.count())
	assert.True(t, st.IsDispatched(testDate))
	// Bob's timer belongs to the other date and survives the dispatch.
	assert.Equal(t, 1, c.activeTimers())
	assert.False(t, st.IsDispatched("2026-02-03"))
}

func TestDispatchNow_LeavesOtherDateTimers(t *testing.T) {
	c, _, st := newTestCoordinator(t, 5, time.Hour)

	submit(st, c, "alice", "m1")
	st.Upsert(report.Report{Submitter: "bob", WorkContent: "late", MessageID: "m2"}, "2026-02-01")

	require.NoError(t, c.DispatchNow(context.Background(), "2026-02-01"))

	assert.True(t, st.IsDispatched("2026-02-01"))
	assert.Equal(t, 1, c.activeTimers(), "today's grace timer keeps running")
}

func TestSendSingle(t *testing.T) {
	c, sender, _ := newTestCoordinator(t, 1, time.Hour)

	rec := report.Report{Submitter: "alice", WorkContent: "realtime", Date: testDate}
	require.NoError(t, c.SendSingle(context.Background(), rec))

	require.Equal(t, 1, sender.count())
	sent := sender.last()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice", sent[0].Submitter)
}

func TestOnReportSubmitted_AfterDispatchIsIgnored(t *testing.T) {
	c, sender, st := newTestCoordinator(t, 1, 20*time.Millisecond)

	submit(st, c, "alice", "m1")
	require.Eventually(t, func() bool { return sender.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	// A late arrival after dispatch must not arm a timer for the day.
	submit(st, c, "bob", "m2")
	assert.Equal(t, 0, c.activeTimers())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"realtime", ModeRealtime, false},
		{"manual", ModeManual, false},
		{"scheduled", ModeScheduled, false},
		{"auto", ModeAuto, false},
		{"", ModeAuto, false},
		{"yolo", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
