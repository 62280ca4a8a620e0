package agent

import (
	"context"

	"go.uber.org/zap"
)

const (
	cleanWorktreeLogMessageConstant      = "worktree verified clean"
	untrackedToleratedLogMessageConstant = "untracked files tolerated"
	untrackedCountLogFieldConstant       = "untracked_count"
)

// WorktreeGuard refuses to operate on a working copy with pre-existing modifications.
type WorktreeGuard struct {
	repository GitRepositoryService
	logger     *zap.Logger
}

// NewWorktreeGuard constructs a WorktreeGuard around the provided repository service.
func NewWorktreeGuard(repository GitRepositoryService, logger *zap.Logger) (*WorktreeGuard, error) {
	if repository == nil {
		return nil, ErrRepositoryServiceNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorktreeGuard{repository: repository, logger: logger}, nil
}

// EnsureClean fails with DirtyWorktreeError when tracked modifications exist, or
// when untracked files exist and allowUntracked is false.
func (guard *WorktreeGuard) EnsureClean(executionContext context.Context, repositoryPath string, allowUntracked bool) error {
	worktreeStatus, statusError := guard.repository.WorktreeStatus(executionContext, repositoryPath)
	if statusError != nil {
		return statusError
	}

	if len(worktreeStatus.TrackedChanges) > 0 {
		return DirtyWorktreeError{TrackedChanges: worktreeStatus.TrackedChanges, UntrackedFiles: worktreeStatus.UntrackedFiles}
	}
	if len(worktreeStatus.UntrackedFiles) > 0 {
		if !allowUntracked {
			return DirtyWorktreeError{UntrackedFiles: worktreeStatus.UntrackedFiles}
		}
		guard.logger.Debug(untrackedToleratedLogMessageConstant, zap.Int(untrackedCountLogFieldConstant, len(worktreeStatus.UntrackedFiles)))
	}

	guard.logger.Debug(cleanWorktreeLogMessageConstant, zap.String(repositoryPathLogFieldConstant, repositoryPath))
	return nil
}
