package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"repatch/internal/gitrepo"
	"repatch/internal/workspace"
)

const (
	repositoryServiceNotConfiguredMessageConstant = "repository service not configured"

	defaultRemoteNameConstant = "origin"

	conflictNotDirectoryReasonConstant    = "path exists and is not a directory"
	conflictNotRepositoryReasonConstant   = "existing directory is not a git repository"
	conflictRemoteMismatchReasonConstant  = "existing clone points at a different remote"
	remoteStartPointTemplateConstant      = "%s/%s"
	cloneAttemptCountNumber               = 2
	openedRepositoryLogMessageConstant    = "opened repository"
	clonedRepositoryLogMessageConstant    = "cloned repository"
	createdBranchLogMessageConstant       = "created missing branch"
	repositoryPathLogFieldConstant        = "path"
	repositoryRemoteLogFieldConstant      = "remote"
	repositoryBranchLogFieldConstant      = "branch"
)

// ErrRepositoryServiceNotConfigured indicates a component was constructed without
// its git repository service.
var ErrRepositoryServiceNotConfigured = errors.New(repositoryServiceNotConfiguredMessageConstant)

// GitRepositoryService is the git capability surface the agent depends on. The
// sole production implementation is gitrepo.RepositoryManager.
type GitRepositoryService interface {
	IsRepositoryRoot(executionContext context.Context, repositoryPath string) (bool, error)
	CloneRepository(executionContext context.Context, remoteURL string, destinationPath string) error
	FetchRemote(executionContext context.Context, repositoryPath string, remoteName string) error
	CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error
	CreateBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error
	LocalBranchExists(executionContext context.Context, repositoryPath string, branchName string) (bool, error)
	RemoteBranchExists(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (bool, error)
	DefaultRemoteBranch(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	WorktreeStatus(executionContext context.Context, repositoryPath string) (gitrepo.WorktreeStatus, error)
	GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	StagePaths(executionContext context.Context, repositoryPath string, paths []string) error
	StageAllChanges(executionContext context.Context, repositoryPath string) error
	HasStagedChanges(executionContext context.Context, repositoryPath string) (bool, error)
	CreateCommit(executionContext context.Context, repositoryPath string, commitMessage string) error
	HeadRevision(executionContext context.Context, repositoryPath string) (string, error)
	PushBranch(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error
}

// RepositoryHandle is the result of opening or creating a working copy: the
// sanitized workspace descriptor plus what the opener had to do to satisfy it.
type RepositoryHandle struct {
	Workspace     workspace.Workspace
	Cloned        bool
	CreatedBranch bool
}

// OpenOptions tunes how missing repositories and branches are handled.
type OpenOptions struct {
	CreateMissingBranch bool
}

// RepositoryOpener materializes a workspace descriptor into a checked-out
// working copy on the requested branch.
type RepositoryOpener struct {
	repository GitRepositoryService
	logger     *zap.Logger
}

// NewRepositoryOpener constructs a RepositoryOpener around the provided repository service.
func NewRepositoryOpener(repository GitRepositoryService, logger *zap.Logger) (*RepositoryOpener, error) {
	if repository == nil {
		return nil, ErrRepositoryServiceNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepositoryOpener{repository: repository, logger: logger}, nil
}

// OpenOrCreate opens the local path as a working copy of the workspace remote,
// cloning when the path is absent or empty, and leaves the requested branch
// checked out. An existing path that cannot serve the workspace yields a
// WorkspaceConflictError rather than any mutation.
func (opener *RepositoryOpener) OpenOrCreate(executionContext context.Context, descriptor workspace.Workspace, options OpenOptions) (RepositoryHandle, error) {
	descriptor = descriptor.Sanitize()
	if validationError := descriptor.Validate(); validationError != nil {
		return RepositoryHandle{}, validationError
	}

	cloned, openError := opener.ensureWorkingCopy(executionContext, descriptor)
	if openError != nil {
		return RepositoryHandle{}, openError
	}

	createdBranch, branchError := opener.ensureBranch(executionContext, descriptor, options)
	if branchError != nil {
		return RepositoryHandle{}, branchError
	}

	opener.logger.Info(openedRepositoryLogMessageConstant,
		zap.String(repositoryPathLogFieldConstant, descriptor.LocalPath),
		zap.String(repositoryRemoteLogFieldConstant, descriptor.RemoteURL),
		zap.String(repositoryBranchLogFieldConstant, descriptor.BranchName),
	)

	return RepositoryHandle{Workspace: descriptor, Cloned: cloned, CreatedBranch: createdBranch}, nil
}

func (opener *RepositoryOpener) ensureWorkingCopy(executionContext context.Context, descriptor workspace.Workspace) (bool, error) {
	pathInformation, statError := os.Stat(descriptor.LocalPath)
	switch {
	case statError == nil && !pathInformation.IsDir():
		return false, WorkspaceConflictError{Path: descriptor.LocalPath, Reason: conflictNotDirectoryReasonConstant}
	case statError == nil:
		directoryEntries, readError := os.ReadDir(descriptor.LocalPath)
		if readError != nil {
			return false, readError
		}
		if len(directoryEntries) > 0 {
			return false, opener.validateExistingClone(executionContext, descriptor)
		}
	case !os.IsNotExist(statError):
		return false, statError
	}

	if cloneError := opener.cloneWithRetry(executionContext, descriptor); cloneError != nil {
		return false, cloneError
	}
	opener.logger.Info(clonedRepositoryLogMessageConstant,
		zap.String(repositoryPathLogFieldConstant, descriptor.LocalPath),
		zap.String(repositoryRemoteLogFieldConstant, descriptor.RemoteURL),
	)
	return true, nil
}

func (opener *RepositoryOpener) validateExistingClone(executionContext context.Context, descriptor workspace.Workspace) error {
	insideWorktree, probeError := opener.repository.IsRepositoryRoot(executionContext, descriptor.LocalPath)
	if probeError != nil {
		return probeError
	}
	if !insideWorktree {
		return WorkspaceConflictError{Path: descriptor.LocalPath, Reason: conflictNotRepositoryReasonConstant}
	}

	configuredRemote, remoteError := opener.repository.GetRemoteURL(executionContext, descriptor.LocalPath, defaultRemoteNameConstant)
	if remoteError != nil {
		return remoteError
	}
	if !gitrepo.SameRepository(configuredRemote, descriptor.RemoteURL) {
		return WorkspaceConflictError{Path: descriptor.LocalPath, Reason: conflictRemoteMismatchReasonConstant}
	}
	return nil
}

func (opener *RepositoryOpener) cloneWithRetry(executionContext context.Context, descriptor workspace.Workspace) error {
	var lastCloneError error
	for attemptIndex := 0; attemptIndex < cloneAttemptCountNumber; attemptIndex++ {
		lastCloneError = opener.repository.CloneRepository(executionContext, descriptor.RemoteURL, descriptor.LocalPath)
		if lastCloneError == nil {
			return nil
		}
		if executionContext.Err() != nil {
			break
		}
	}
	return RemoteUnavailableError{Remote: descriptor.RemoteURL, Attempts: cloneAttemptCountNumber, Cause: lastCloneError}
}

func (opener *RepositoryOpener) ensureBranch(executionContext context.Context, descriptor workspace.Workspace, options OpenOptions) (bool, error) {
	branchExistsLocally, localProbeError := opener.repository.LocalBranchExists(executionContext, descriptor.LocalPath, descriptor.BranchName)
	if localProbeError != nil {
		return false, localProbeError
	}
	if branchExistsLocally {
		return false, opener.repository.CheckoutBranch(executionContext, descriptor.LocalPath, descriptor.BranchName)
	}

	branchExistsRemotely, remoteProbeError := opener.repository.RemoteBranchExists(executionContext, descriptor.LocalPath, defaultRemoteNameConstant, descriptor.BranchName)
	if remoteProbeError != nil {
		return false, remoteProbeError
	}
	if branchExistsRemotely {
		if fetchError := opener.repository.FetchRemote(executionContext, descriptor.LocalPath, defaultRemoteNameConstant); fetchError != nil {
			return false, fetchError
		}
		return false, opener.repository.CheckoutBranch(executionContext, descriptor.LocalPath, descriptor.BranchName)
	}

	if !options.CreateMissingBranch {
		return false, BranchNotFoundError{Branch: descriptor.BranchName, Remote: descriptor.RemoteURL}
	}

	defaultBranchName, defaultBranchError := opener.repository.DefaultRemoteBranch(executionContext, descriptor.LocalPath, defaultRemoteNameConstant)
	if defaultBranchError != nil {
		return false, defaultBranchError
	}
	if fetchError := opener.repository.FetchRemote(executionContext, descriptor.LocalPath, defaultRemoteNameConstant); fetchError != nil {
		return false, fetchError
	}
	startPoint := fmt.Sprintf(remoteStartPointTemplateConstant, defaultRemoteNameConstant, defaultBranchName)
	if createError := opener.repository.CreateBranch(executionContext, descriptor.LocalPath, descriptor.BranchName, startPoint); createError != nil {
		return false, createError
	}
	opener.logger.Info(createdBranchLogMessageConstant,
		zap.String(repositoryBranchLogFieldConstant, descriptor.BranchName),
		zap.String(repositoryPathLogFieldConstant, descriptor.LocalPath),
	)
	return true, nil
}
