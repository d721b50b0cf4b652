package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := Run{
		ID:     uuid.NewString(),
		Input:  "银行",
		Output: "yínháng",
		Report: []byte(`{"schema_version": 1}`),
	}
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Input, got.Input)
	assert.Equal(t, run.Output, got.Output)
	assert.JSONEq(t, string(run.Report), string(got.Report))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	require.Error(t, err)
}

func TestSQLiteStore_ListRuns_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		require.NoError(t, store.SaveRun(ctx, Run{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Input:     "行",
			Output:    "háng",
			Report:    []byte(`{}`),
		}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestSQLiteStore_Overrides(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID := uuid.NewString()
	rec := OverrideRecord{
		RuleID: "override_2026-03-01_0001",
		RunID:  runID,
		Rule:   []byte(`{"id": "override_2026-03-01_0001"}`),
	}
	require.NoError(t, store.SaveOverride(ctx, rec))
	// Idempotent on rule id.
	require.NoError(t, store.SaveOverride(ctx, rec))

	recs, err := store.ListOverrides(ctx, runID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.RuleID, recs[0].RuleID)

	recs, err = store.ListOverrides(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
