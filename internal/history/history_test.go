package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddStampsAtWriteTime(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	fixed := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Add(Entry{TaskID: "organize", TaskTitle: "Organize", Success: true}))

	entries, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, fixed, entries[0].Timestamp)
	require.True(t, entries[0].Success)
}

func TestCapAtMaxEntries(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < MaxEntries+20; i++ {
		require.NoError(t, s.Add(Entry{TaskID: fmt.Sprintf("task-%d", i)}))
	}

	entries, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, MaxEntries)

	// The oldest 20 were dropped.
	require.Equal(t, "task-20", entries[0].TaskID)
	require.Equal(t, fmt.Sprintf("task-%d", MaxEntries+19), entries[len(entries)-1].TaskID)
}

func TestRecentLimit(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Add(Entry{TaskID: fmt.Sprintf("task-%d", i)}))
	}

	entries, err := s.Recent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "task-7", entries[0].TaskID)
}

func TestRecentOnEmptyStore(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestClear(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Add(Entry{TaskID: "one"}))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear(), "clearing an empty store is fine")

	entries, err := s.Recent(0)
	require.NoError(t, err)
	require.Empty(t, entries)
}
