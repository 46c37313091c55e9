package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecentOrdering(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"s1", "s2", "s3"} {
		r := Run{Scenario: name, Passed: true, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Record(r))
	}

	recent, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s3", recent[0].Scenario)
	assert.Equal(t, "s2", recent[1].Scenario)
}

func TestRecordPreservesFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer s.Close()

	r := Run{Scenario: "s1", Passed: false, Error: "NAK exhausted", StartedAt: time.Now()}
	require.NoError(t, s.Record(r))

	recent, err := s.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].Passed)
	assert.Equal(t, "NAK exhausted", recent[0].Error)
}
