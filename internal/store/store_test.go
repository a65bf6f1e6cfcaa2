package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/reportd/internal/logging"
	"github.com/fyrsmithlabs/reportd/internal/report"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "reports.json"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func sample(submitter, messageID string) report.Report {
	return report.Report{
		Submitter:      submitter,
		TrackingIssues: "ABC-1",
		WorkContent:    "worked on ABC-1",
		Blockers:       report.None,
		NextPlan:       "ABC-2",
		MessageID:      messageID,
	}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("", zap.NewNop())
	require.Error(t, err)
}

func TestUpsert_AppendsAndStamps(t *testing.T) {
	s := newTestStore(t)

	before := time.Now()
	replaced := s.Upsert(sample("alice", "m1"), "2026-02-02")
	require.False(t, replaced, "first submission is an append")

	got := s.All("2026-02-02")
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Submitter)
	assert.Equal(t, "2026-02-02", got[0].Date)
	assert.False(t, got[0].SubmittedAt.Before(before))
}

func TestUpsert_ReplacesSameSubmitter(t *testing.T) {
	s := newTestStore(t)

	s.Upsert(sample("alice", "m1"), "2026-02-02")

	updated := sample("alice", "m2")
	updated.WorkContent = "rewrote everything"
	assert.True(t, s.Upsert(updated, "2026-02-02"))

	got := s.All("2026-02-02")
	require.Len(t, got, 1)
	assert.Equal(t, "rewrote everything", got[0].WorkContent)
	assert.Equal(t, "m2", got[0].MessageID)
	assert.Equal(t, 1, s.Count("2026-02-02"))
}

func TestUpsert_SeparateDatesSeparatePartitions(t *testing.T) {
	s := newTestStore(t)

	s.Upsert(sample("alice", "m1"), "2026-02-02")
	s.Upsert(sample("alice", "m2"), "2026-02-03")

	assert.Equal(t, 1, s.Count("2026-02-02"))
	assert.Equal(t, 1, s.Count("2026-02-03"))
}

func TestAll_ReturnsSnapshotCopy(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sample("alice", "m1"), "2026-02-02")

	got := s.All("2026-02-02")
	got[0].Submitter = "mallory"

	again := s.All("2026-02-02")
	assert.Equal(t, "alice", again[0].Submitter)
}

func TestDispatchedFlag_Monotonic(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.IsDispatched("2026-02-02"))
	s.MarkDispatched("2026-02-02")
	assert.True(t, s.IsDispatched("2026-02-02"))

	// Idempotent; safe to call again.
	s.MarkDispatched("2026-02-02")
	assert.True(t, s.IsDispatched("2026-02-02"))
}

func TestRemoveByMessageID(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sample("alice", "m1"), "2026-02-02")
	s.Upsert(sample("bob", "m2"), "2026-02-02")

	assert.True(t, s.RemoveByMessageID("m1"))
	assert.Equal(t, 1, s.Count("2026-02-02"))

	got := s.All("2026-02-02")
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Submitter)

	// Unknown id is a no-op, not an error.
	assert.False(t, s.RemoveByMessageID("m1"))
	assert.Equal(t, 1, s.Count("2026-02-02"))
}

func TestRemoveByMessageID_ScansAllDates(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sample("alice", "m1"), "2026-02-01")
	s.Upsert(sample("alice", "m2"), "2026-02-02")

	assert.True(t, s.RemoveByMessageID("m1"))
	assert.Equal(t, 0, s.Count("2026-02-01"))
	assert.Equal(t, 1, s.Count("2026-02-02"))
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sample("alice", "m1"), "2026-02-02")
	s.MarkDispatched("2026-02-02")

	s.Clear("2026-02-02")

	assert.Equal(t, 0, s.Count("2026-02-02"))
	assert.False(t, s.IsDispatched("2026-02-02"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")

	s, err := New(path, zap.NewNop())
	require.NoError(t, err)
	s.Upsert(sample("alice", "m1"), "2026-02-02")
	s.MarkDispatched("2026-02-02")

	reopened, err := New(path, zap.NewNop())
	require.NoError(t, err)

	got := reopened.All("2026-02-02")
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Submitter)
	assert.True(t, reopened.IsDispatched("2026-02-02"))
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")
	logger, logs := logging.NewObserved(zapcore.ErrorLevel)

	s, err := New(path, logger)
	require.NoError(t, err)

	// A directory at the snapshot path makes every write fail.
	require.NoError(t, os.Mkdir(path, 0o700))

	s.Upsert(sample("alice", "m1"), "2026-02-02")

	assert.Equal(t, 1, s.Count("2026-02-02"))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "failed to write report file")
}

func TestLoad_LegacySingleDateFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")

	legacy := map[string]any{
		"date": "2026-01-15",
		"reports": []report.Report{
			sample("alice", "m1"),
			sample("bob", "m2"),
		},
		"sent": true,
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := New(path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2, s.Count("2026-01-15"))
	assert.True(t, s.IsDispatched("2026-01-15"))
}

func TestLoad_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := New(path, zap.NewNop())
	require.Error(t, err)
}

func TestSubmitters(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sample("alice", "m1"), "2026-02-02")
	s.Upsert(sample("bob", "m2"), "2026-02-02")

	got := s.Submitters("2026-02-02")
	assert.Contains(t, got, "alice")
	assert.Contains(t, got, "bob")
	assert.Len(t, got, 2)
}
