// ABOUTME: Tests for the SQLite triage store
// ABOUTME: Covers schema creation, unknown error upserts and the session journal

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tdsession/internal/session"
	"github.com/2389/tdsession/internal/tderr"
)

// Compile-time interface checks.
var (
	_ TriageStore     = (*SQLiteStore)(nil)
	_ tderr.Recorder  = (*SQLiteStore)(nil)
	_ session.Journal = (*SQLiteStore)(nil)
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "triage.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "triage.db")

	s, err := NewSQLiteStore(dbPath, DriverModernc)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
	assert.Equal(t, DriverModernc, s.Driver())
}

func TestNewSQLiteStore_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"), "postgres")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "triage.db")

	s, err := NewSQLiteStore(dbPath, "")
	require.NoError(t, err)
	require.NoError(t, s.RecordUnknownError(t.Context(), 999, "TOTALLY_UNKNOWN"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath, "")
	require.NoError(t, err)
	defer s.Close()

	errs, err := s.ListUnknownErrors(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, errs, 1)
}

func TestRecordUnknownError_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.RecordUnknownError(ctx, 999, "TOTALLY_UNKNOWN"))
	require.NoError(t, s.RecordUnknownError(ctx, 999, "TOTALLY_UNKNOWN"))
	require.NoError(t, s.RecordUnknownError(ctx, 400, "NEW_THING_42"))
	require.NoError(t, s.RecordUnknownError(ctx, 999, "TOTALLY_UNKNOWN"))

	errs, err := s.ListUnknownErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, errs, 2)

	assert.Equal(t, 999, errs[0].Code)
	assert.Equal(t, "TOTALLY_UNKNOWN", errs[0].Message)
	assert.Equal(t, 3, errs[0].Count)
	assert.True(t, errs[0].FirstSeen.After(before))
	assert.False(t, errs[0].LastSeen.Before(errs[0].FirstSeen))

	assert.Equal(t, 400, errs[1].Code)
	assert.Equal(t, "NEW_THING_X", errs[1].Pattern)
	assert.Equal(t, 1, errs[1].Count)
}

func TestListUnknownErrors_Empty(t *testing.T) {
	s := newTestStore(t)

	errs, err := s.ListUnknownErrors(t.Context(), 10)
	require.NoError(t, err)
	assert.NotNil(t, errs)
	assert.Empty(t, errs)
}

func TestResolverRecordsIntoStore(t *testing.T) {
	s := newTestStore(t)
	resolver := tderr.NewResolver(s, nil)

	known := resolver.Resolve(t.Context(), 400, "PHONE_NUMBER_INVALID")
	assert.True(t, known.Resolved())
	unknown := resolver.Resolve(t.Context(), 999, "TOTALLY_UNKNOWN")
	assert.False(t, unknown.Resolved())

	errs, err := s.ListUnknownErrors(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 999, errs[0].Code)
}

func TestSessionEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.RecordSessionEvent(ctx, "s-1", EventStart, ""))
	require.NoError(t, s.RecordSessionEvent(ctx, "s-2", EventStart, ""))
	require.NoError(t, s.RecordSessionEvent(ctx, "s-1", EventAuthState, "authorizationStateReady"))
	require.NoError(t, s.RecordSessionEvent(ctx, "s-1", EventStop, "engine reported authorizationStateClosed"))

	t.Run("one session oldest first", func(t *testing.T) {
		events, err := s.ListSessionEvents(ctx, "s-1", 0)
		require.NoError(t, err)
		require.Len(t, events, 3)

		kinds := []string{events[0].Kind, events[1].Kind, events[2].Kind}
		assert.Equal(t, []string{EventStart, EventAuthState, EventStop}, kinds)
		assert.Equal(t, "authorizationStateReady", events[1].Detail)
		assert.NotEmpty(t, events[0].ID)
	})

	t.Run("all sessions", func(t *testing.T) {
		events, err := s.ListSessionEvents(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, events, 4)
	})

	t.Run("limit keeps newest", func(t *testing.T) {
		events, err := s.ListSessionEvents(ctx, "s-1", 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventAuthState, events[0].Kind)
		assert.Equal(t, EventStop, events[1].Kind)
	})
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeLimit(0))
	assert.Equal(t, 100, normalizeLimit(-5))
	assert.Equal(t, 7, normalizeLimit(7))
	assert.Equal(t, 1000, normalizeLimit(5000))
}
