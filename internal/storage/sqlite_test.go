package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(root string, at time.Time, violations int) *Run {
	return &Run{
		Root:          root,
		CreatedAt:     at,
		FilesAnalyzed: 3,
		Violations:    violations,
		High:          violations,
		QualityScore:  0.8,
		OverallScore:  0.9,
	}
}

func TestSaveAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	id1, err := store.SaveRun(ctx, testRun("/proj", base, 5), nil, []byte(`{"ok":true}`))
	require.NoError(t, err)
	_, err = store.SaveRun(ctx, testRun("/proj", base.Add(time.Hour), 3), nil, nil)
	require.NoError(t, err)
	_, err = store.SaveRun(ctx, testRun("/other", base, 1), nil, nil)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, "/proj", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].Violations, "newest run first")
	assert.Equal(t, 5, runs[1].Violations)

	report, err := store.LoadReport(ctx, id1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(report))
}

func TestCompareBaseline(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	first := []Finding{
		{Fingerprint: "aaa", Kind: "connascence_of_position", Severity: "high", FilePath: "a.py", Line: 10},
		{Fingerprint: "bbb", Kind: "god_function", Severity: "high", FilePath: "a.py", Line: 20},
	}
	second := []Finding{
		{Fingerprint: "bbb", Kind: "god_function", Severity: "high", FilePath: "a.py", Line: 20},
		{Fingerprint: "ccc", Kind: "connascence_of_meaning", Severity: "medium", FilePath: "b.py", Line: 5},
	}

	_, err := store.SaveRun(ctx, testRun("/proj", base, 2), first, nil)
	require.NoError(t, err)
	_, err = store.SaveRun(ctx, testRun("/proj", base.Add(time.Hour), 2), second, nil)
	require.NoError(t, err)

	diff, err := store.CompareBaseline(ctx, "/proj")
	require.NoError(t, err)

	require.Len(t, diff.New, 1)
	assert.Equal(t, "ccc", diff.New[0].Fingerprint)
	require.Len(t, diff.Resolved, 1)
	assert.Equal(t, "aaa", diff.Resolved[0].Fingerprint)
	assert.True(t, diff.Latest.CreatedAt.After(diff.Baseline.CreatedAt))
}

func TestCompareBaselineNeedsTwoRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveRun(ctx, testRun("/proj", time.Now().UTC(), 1), nil, nil)
	require.NoError(t, err)

	_, err = store.CompareBaseline(ctx, "/proj")
	assert.ErrorIs(t, err, ErrNoBaseline)
}
