package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"repatch/internal/agent"
	"repatch/internal/gitrepo"
)

func TestNewWorktreeGuardRequiresRepositoryService(testInstance *testing.T) {
	_, creationError := agent.NewWorktreeGuard(nil, nil)
	require.ErrorIs(testInstance, creationError, agent.ErrRepositoryServiceNotConfigured)
}

func TestEnsureClean(testInstance *testing.T) {
	testCases := []struct {
		name               string
		worktreeStatus     gitrepo.WorktreeStatus
		allowUntracked     bool
		expectDirtyError   bool
		expectedTracked    []string
		expectedUntracked  []string
	}{
		{
			name:           "clean_worktree_passes",
			worktreeStatus: gitrepo.WorktreeStatus{},
			allowUntracked: false,
		},
		{
			name:              "tracked_changes_block",
			worktreeStatus:    gitrepo.WorktreeStatus{TrackedChanges: []string{"app/config.py"}},
			allowUntracked:    true,
			expectDirtyError:  true,
			expectedTracked:   []string{"app/config.py"},
		},
		{
			name:              "untracked_files_block_when_not_tolerated",
			worktreeStatus:    gitrepo.WorktreeStatus{UntrackedFiles: []string{"scratch.txt"}},
			allowUntracked:    false,
			expectDirtyError:  true,
			expectedUntracked: []string{"scratch.txt"},
		},
		{
			name:           "untracked_files_tolerated",
			worktreeStatus: gitrepo.WorktreeStatus{UntrackedFiles: []string{"scratch.txt"}},
			allowUntracked: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			stub := &repositoryServiceStub{worktreeStatusResults: []gitrepo.WorktreeStatus{testCase.worktreeStatus}}
			guard, creationError := agent.NewWorktreeGuard(stub, nil)
			require.NoError(subtest, creationError)

			guardError := guard.EnsureClean(context.Background(), "/tmp/repository", testCase.allowUntracked)
			if !testCase.expectDirtyError {
				require.NoError(subtest, guardError)
				return
			}

			dirtyWorktree := agent.DirtyWorktreeError{}
			require.ErrorAs(subtest, guardError, &dirtyWorktree)
			require.Equal(subtest, testCase.expectedTracked, dirtyWorktree.TrackedChanges)
			require.Equal(subtest, testCase.expectedUntracked, dirtyWorktree.UntrackedFiles)
		})
	}
}
