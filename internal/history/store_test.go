package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repatch/internal/history"
)

func openInitializedStore(testInstance *testing.T) *history.Store {
	testInstance.Helper()

	ledgerPath := filepath.Join(testInstance.TempDir(), "ledger.db")
	store, openError := history.Open(ledgerPath)
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() {
		require.NoError(testInstance, store.Close())
	})
	require.NoError(testInstance, store.Init(context.Background()))
	return store
}

func TestOpenRequiresLedgerPath(testInstance *testing.T) {
	_, openError := history.Open("   ")
	require.ErrorIs(testInstance, openError, history.ErrLedgerPathRequired)
}

func TestRecordRunRoundTrip(testInstance *testing.T) {
	store := openInitializedStore(testInstance)

	startedAt := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	recordedRunID, recordError := store.RecordRun(context.Background(), history.RunRecord{
		RemoteURL:    "https://github.com/example/service.git",
		BranchName:   "main",
		LocalPath:    "/tmp/service",
		Status:       "committed",
		CommitHash:   "abc123",
		FilesChanged: []string{"app/config.py", "legacy/cruft.txt"},
		StartedAt:    startedAt,
		FinishedAt:   startedAt.Add(5 * time.Second),
	})
	require.NoError(testInstance, recordError)
	require.NotEmpty(testInstance, recordedRunID)

	records, listError := store.ListRuns(context.Background(), 10)
	require.NoError(testInstance, listError)
	require.Len(testInstance, records, 1)
	require.Equal(testInstance, recordedRunID, records[0].RunID)
	require.Equal(testInstance, "committed", records[0].Status)
	require.Equal(testInstance, "abc123", records[0].CommitHash)
	require.Equal(testInstance, []string{"app/config.py", "legacy/cruft.txt"}, records[0].FilesChanged)
	require.Equal(testInstance, startedAt, records[0].StartedAt)
}

func TestListRunsReturnsNewestFirst(testInstance *testing.T) {
	store := openInitializedStore(testInstance)

	baseTime := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	for runIndex := 0; runIndex < 3; runIndex++ {
		_, recordError := store.RecordRun(context.Background(), history.RunRecord{
			RemoteURL:  "https://github.com/example/service.git",
			BranchName: "main",
			LocalPath:  "/tmp/service",
			Status:     "committed",
			StartedAt:  baseTime.Add(time.Duration(runIndex) * time.Minute),
			FinishedAt: baseTime.Add(time.Duration(runIndex)*time.Minute + time.Second),
		})
		require.NoError(testInstance, recordError)
	}

	records, listError := store.ListRuns(context.Background(), 2)
	require.NoError(testInstance, listError)
	require.Len(testInstance, records, 2)
	require.True(testInstance, records[0].StartedAt.After(records[1].StartedAt))
}

func TestRecordRunPersistsFailures(testInstance *testing.T) {
	store := openInitializedStore(testInstance)

	_, recordError := store.RecordRun(context.Background(), history.RunRecord{
		RemoteURL:  "https://github.com/example/service.git",
		BranchName: "main",
		LocalPath:  "/tmp/service",
		Status:     "failed",
		ErrorText:  "worktree is dirty (tracked: app/config.py; untracked: none)",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	})
	require.NoError(testInstance, recordError)

	records, listError := store.ListRuns(context.Background(), 0)
	require.NoError(testInstance, listError)
	require.Len(testInstance, records, 1)
	require.Equal(testInstance, "failed", records[0].Status)
	require.NotEmpty(testInstance, records[0].ErrorText)
	require.Empty(testInstance, records[0].CommitHash)
	require.Empty(testInstance, records[0].FilesChanged)
}

func TestListRunsOnEmptyLedger(testInstance *testing.T) {
	store := openInitializedStore(testInstance)

	records, listError := store.ListRuns(context.Background(), 5)
	require.NoError(testInstance, listError)
	require.Empty(testInstance, records)
}
