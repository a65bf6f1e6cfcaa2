package vacation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "vacations.json"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSetAndCancel(t *testing.T) {
	s := newTestStore(t)

	assert.True(t, s.Set("alice", "2026-02-02"))
	assert.False(t, s.Set("alice", "2026-02-02"), "duplicate set reports false")
	assert.True(t, s.IsOnVacation("alice", "2026-02-02"))
	assert.False(t, s.IsOnVacation("alice", "2026-02-03"))

	assert.True(t, s.Cancel("alice", "2026-02-02"))
	assert.False(t, s.Cancel("alice", "2026-02-02"), "cancel of absent entry reports false")
	assert.False(t, s.IsOnVacation("alice", "2026-02-02"))
}

func TestListIsSorted(t *testing.T) {
	s := newTestStore(t)

	s.Set("carol", "2026-02-02")
	s.Set("alice", "2026-02-02")
	s.Set("bob", "2026-02-03")

	assert.Equal(t, []string{"alice", "carol"}, s.List("2026-02-02"))
	assert.Equal(t, []string{"bob"}, s.List("2026-02-03"))
	assert.Nil(t, s.List("2026-02-04"))
	assert.Equal(t, 2, s.Count("2026-02-02"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vacations.json")

	s, err := New(path, zap.NewNop())
	require.NoError(t, err)
	s.Set("alice", "2026-02-02")
	s.Set("bob", "2026-02-02")

	reloaded, err := New(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, reloaded.List("2026-02-02"))
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vacations.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := New(path, zap.NewNop())
	assert.Error(t, err)
}
