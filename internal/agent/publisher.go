package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"repatch/internal/commitmsg"
	"repatch/internal/gitrepo"
)

const (
	pushAttemptCountNumber        = 3
	pushInitialBackoffDuration    = 500 * time.Millisecond
	createdCommitLogMessage       = "created commit"
	pushedBranchLogMessage        = "pushed branch"
	pushRetryingLogMessage        = "push failed, retrying"
	commitHashLogFieldConstant    = "commit_hash"
	pushRetriesLogFieldConstant   = "push_retries"
	pushAttemptLogFieldConstant   = "attempt"
	publishBranchLogFieldConstant = "branch"
)

// PublishOptions tunes staging and worktree tolerance during publication.
type PublishOptions struct {
	AllowUntracked bool
	StageAll       bool
}

// CommitResult reports what a successful publication produced.
type CommitResult struct {
	CommitHash   string   `json:"commit_hash"`
	PushedRef    string   `json:"pushed_ref"`
	FilesChanged []string `json:"files_changed"`
	PushRetries  int      `json:"push_retries"`
}

// CommitPublisher stages exactly the applied paths, commits, and pushes with
// bounded retry.
type CommitPublisher struct {
	repository GitRepositoryService
	logger     *zap.Logger
	delay      func(time.Duration)
}

// NewCommitPublisher constructs a CommitPublisher around the provided repository service.
func NewCommitPublisher(repository GitRepositoryService, logger *zap.Logger) (*CommitPublisher, error) {
	if repository == nil {
		return nil, ErrRepositoryServiceNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitPublisher{repository: repository, logger: logger, delay: time.Sleep}, nil
}

// UseDelay overrides the backoff delay between push attempts.
func (publisher *CommitPublisher) UseDelay(delay func(time.Duration)) {
	if delay != nil {
		publisher.delay = delay
	}
}

// CommitAndPush verifies the worktree changed only within the applied paths,
// stages them, commits with the rendered message, and pushes the branch. A
// non-fast-forward rejection triggers one fetch and one retry before
// PushRejectedError; transient push failures retry with doubling backoff before
// RemoteUnavailableError.
func (publisher *CommitPublisher) CommitAndPush(executionContext context.Context, repositoryPath string, branchName string, appliedPaths []string, messageTemplate string, options PublishOptions) (CommitResult, error) {
	if foreignError := publisher.ensureOnlyAppliedChanges(executionContext, repositoryPath, appliedPaths, options.AllowUntracked); foreignError != nil {
		return CommitResult{}, foreignError
	}

	if options.StageAll {
		if stageError := publisher.repository.StageAllChanges(executionContext, repositoryPath); stageError != nil {
			return CommitResult{}, stageError
		}
	} else {
		if stageError := publisher.repository.StagePaths(executionContext, repositoryPath, appliedPaths); stageError != nil {
			return CommitResult{}, stageError
		}
	}

	stagedChangesExist, stagedProbeError := publisher.repository.HasStagedChanges(executionContext, repositoryPath)
	if stagedProbeError != nil {
		return CommitResult{}, stagedProbeError
	}
	if !stagedChangesExist {
		return CommitResult{}, ErrNothingToCommit
	}

	commitMessage := commitmsg.Render(messageTemplate, commitmsg.TemplateValues{BranchName: branchName, ChangedPaths: appliedPaths})
	if commitError := publisher.repository.CreateCommit(executionContext, repositoryPath, commitMessage); commitError != nil {
		return CommitResult{}, commitError
	}

	commitHash, revisionError := publisher.repository.HeadRevision(executionContext, repositoryPath)
	if revisionError != nil {
		return CommitResult{}, revisionError
	}
	publisher.logger.Info(createdCommitLogMessage,
		zap.String(commitHashLogFieldConstant, commitHash),
		zap.String(publishBranchLogFieldConstant, branchName),
	)

	pushRetries, pushError := publisher.pushWithRetry(executionContext, repositoryPath, branchName)
	if pushError != nil {
		return CommitResult{}, pushError
	}
	publisher.logger.Info(pushedBranchLogMessage,
		zap.String(publishBranchLogFieldConstant, branchName),
		zap.Int(pushRetriesLogFieldConstant, pushRetries),
	)

	return CommitResult{
		CommitHash:   commitHash,
		PushedRef:    branchName,
		FilesChanged: appliedPaths,
		PushRetries:  pushRetries,
	}, nil
}

// ensureOnlyAppliedChanges re-checks the worktree between application and
// staging: extra tracked modifications always abort, extra untracked files
// abort unless tolerated.
func (publisher *CommitPublisher) ensureOnlyAppliedChanges(executionContext context.Context, repositoryPath string, appliedPaths []string, allowUntracked bool) error {
	worktreeStatus, statusError := publisher.repository.WorktreeStatus(executionContext, repositoryPath)
	if statusError != nil {
		return statusError
	}

	appliedPathSet := make(map[string]struct{}, len(appliedPaths))
	for _, appliedPath := range appliedPaths {
		appliedPathSet[appliedPath] = struct{}{}
	}

	var foreignPaths []string
	for _, trackedPath := range worktreeStatus.TrackedChanges {
		if _, applied := appliedPathSet[trackedPath]; !applied {
			foreignPaths = append(foreignPaths, trackedPath)
		}
	}
	if !allowUntracked {
		for _, untrackedPath := range worktreeStatus.UntrackedFiles {
			if _, applied := appliedPathSet[untrackedPath]; !applied {
				foreignPaths = append(foreignPaths, untrackedPath)
			}
		}
	}

	if len(foreignPaths) > 0 {
		return UnexpectedChangesError{UnexpectedPaths: foreignPaths}
	}
	return nil
}

func (publisher *CommitPublisher) pushWithRetry(executionContext context.Context, repositoryPath string, branchName string) (int, error) {
	backoffDuration := pushInitialBackoffDuration
	fastForwardRetried := false
	pushRetries := 0

	var lastPushError error
	for attemptIndex := 0; attemptIndex < pushAttemptCountNumber; attemptIndex++ {
		lastPushError = publisher.repository.PushBranch(executionContext, repositoryPath, defaultRemoteNameConstant, branchName)
		if lastPushError == nil {
			return pushRetries, nil
		}
		if executionContext.Err() != nil {
			break
		}

		if gitrepo.IsNonFastForwardError(lastPushError) {
			if fastForwardRetried {
				return pushRetries, PushRejectedError{Ref: branchName, Cause: lastPushError}
			}
			fastForwardRetried = true
			if fetchError := publisher.repository.FetchRemote(executionContext, repositoryPath, defaultRemoteNameConstant); fetchError != nil {
				return pushRetries, fetchError
			}
			pushRetries++
			continue
		}

		if attemptIndex == pushAttemptCountNumber-1 {
			break
		}
		publisher.logger.Warn(pushRetryingLogMessage,
			zap.Int(pushAttemptLogFieldConstant, attemptIndex+1),
			zap.String(publishBranchLogFieldConstant, branchName),
		)
		publisher.delay(backoffDuration)
		backoffDuration *= 2
		pushRetries++
	}

	return pushRetries, RemoteUnavailableError{Remote: defaultRemoteNameConstant, Attempts: pushAttemptCountNumber, Cause: lastPushError}
}
