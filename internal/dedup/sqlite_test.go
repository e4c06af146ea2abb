package dedup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "alerts.db")

	s, err := NewSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx))

	s.Add("case-menlopark-26-001")
	s.Add("case-menlopark-26-001") // duplicate Add is a no-op
	s.Add("inc-paloalto-900123")
	require.NoError(t, s.Persist(ctx))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(dsn)
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.Load(ctx))
	assert.Equal(t, 2, s2.Len())
	assert.True(t, s2.Contains("case-menlopark-26-001"))
	assert.True(t, s2.Contains("inc-paloalto-900123"))
}

func TestSQLiteStore_PersistEmptyPendingIsNoop(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Persist(context.Background()))
}

func TestSQLiteStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	s.Add("x")
	require.NoError(t, s.Persist(ctx))
	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains("x"))

	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestSQLiteStore_History(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	first := Entry{
		RecordID:       "case-menlopark-26-001",
		Category:       "property_crime",
		DistanceMeters: 1200.5,
		Agency:         "menlopark",
		Headline:       "Burglary - Residential (F)",
		NotifiedAt:     time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
	}
	second := Entry{
		RecordID:       "inc-atherton-202601150042",
		Category:       "suspicious_activity",
		DistanceMeters: 160,
		Agency:         "atherton",
		Headline:       "Suspicious Person",
		NotifiedAt:     time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.AppendHistory(ctx, first))
	require.NoError(t, s.AppendHistory(ctx, second))

	entries, err := s.ListHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, second.RecordID, entries[0].RecordID)
	assert.Equal(t, first.RecordID, entries[1].RecordID)
	assert.Equal(t, "Burglary - Residential (F)", entries[1].Headline)
	assert.InDelta(t, 1200.5, entries[1].DistanceMeters, 0.001)
}

func TestSQLiteStore_HistoryLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, s.AppendHistory(ctx, Entry{
			RecordID:   "case-menlopark-26-00" + string(rune('1'+i)),
			Category:   "property_crime",
			NotifiedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := s.ListHistory(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
