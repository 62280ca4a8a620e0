package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"repatch/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant    = "git executor not configured"
	operationErrorTemplateConstant          = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"

	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"

	gitRevParseSubcommandConstant    = "rev-parse"
	gitWorkTreeFlagConstant          = "--is-inside-work-tree"
	gitVerifyFlagConstant            = "--verify"
	gitQuietFlagConstant             = "--quiet"
	gitHeadReferenceConstant         = "HEAD"
	gitLocalBranchReferencePrefix    = "refs/heads/"
	gitCloneSubcommandConstant       = "clone"
	gitFetchSubcommandConstant       = "fetch"
	gitFetchPruneFlagConstant        = "--prune"
	gitCheckoutSubcommandConstant    = "checkout"
	gitBranchFlagConstant            = "-b"
	gitStatusSubcommandConstant      = "status"
	gitStatusPorcelainFlagConstant   = "--porcelain"
	gitRemoteSubcommandConstant      = "remote"
	gitRemoteGetURLSubcommandConst   = "get-url"
	gitAddSubcommandConstant         = "add"
	gitAddAllFlagConstant            = "--all"
	gitPathspecSeparatorConstant     = "--"
	gitDiffSubcommandConstant        = "diff"
	gitDiffCachedFlagConstant        = "--cached"
	gitDiffQuietFlagConstant         = "--quiet"
	gitCommitSubcommandConstant      = "commit"
	gitMessageFlagConstant           = "-m"
	gitPushSubcommandConstant        = "push"
	gitLSRemoteSubcommandConstant    = "ls-remote"
	gitSymrefFlagConstant            = "--symref"
	gitHeadsFlagConstant             = "--heads"
	gitSetUpstreamFlagConstant       = "--set-upstream"
	symbolicReferencePrefixConstant  = "ref:"
	untrackedStatusPrefixConstant    = "??"
	renameStatusSeparatorConstant    = " -> "
	refspecTemplateConstant          = "%s:%s"
	trueLiteralConstant              = "true"
	porcelainMinimumLineLengthNumber = 4
)

// Push rejection markers surfaced by git when the remote moved ahead.
var nonFastForwardMarkers = []string{
	"non-fast-forward",
	"fetch first",
	"[rejected]",
}

// OperationName describes a named git workflow supported by the manager.
type OperationName string

// Operation enumerations used in error reporting.
const (
	OperationProbeWorktree       OperationName = "ProbeWorktree"
	OperationClone               OperationName = "Clone"
	OperationFetch               OperationName = "Fetch"
	OperationCheckout            OperationName = "Checkout"
	OperationCreateBranch        OperationName = "CreateBranch"
	OperationStatus              OperationName = "Status"
	OperationRemoteURL           OperationName = "RemoteURL"
	OperationStage               OperationName = "Stage"
	OperationStagedDiff          OperationName = "StagedDiff"
	OperationCommit              OperationName = "Commit"
	OperationPush                OperationName = "Push"
	OperationHeadRevision        OperationName = "HeadRevision"
	OperationLocalBranchProbe    OperationName = "LocalBranchProbe"
	OperationRemoteBranchProbe   OperationName = "RemoteBranchProbe"
	OperationDefaultRemoteBranch OperationName = "DefaultRemoteBranch"
)

// ErrExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// OperationError wraps execution issues for git operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// WorktreeStatus summarizes the porcelain status of a working tree.
type WorktreeStatus struct {
	TrackedChanges []string
	UntrackedFiles []string
}

// IsClean reports whether neither tracked changes nor untracked files exist.
func (status WorktreeStatus) IsClean() bool {
	return len(status.TrackedChanges) == 0 && len(status.UntrackedFiles) == 0
}

// ChangedPaths returns every path the worktree reports as changed or untracked.
func (status WorktreeStatus) ChangedPaths() []string {
	changedPaths := make([]string, 0, len(status.TrackedChanges)+len(status.UntrackedFiles))
	changedPaths = append(changedPaths, status.TrackedChanges...)
	changedPaths = append(changedPaths, status.UntrackedFiles...)
	return changedPaths
}

// GitExecutor exposes the subset of shell execution required by the manager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager is the concrete implementation of the git capability surface
// used by the repatch agent: probe, clone, fetch, checkout, status, stage,
// commit, and push.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager around the provided executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// IsRepositoryRoot reports whether the supplied path is inside a git work tree.
func (manager *RepositoryManager) IsRepositoryRoot(executionContext context.Context, repositoryPath string) (bool, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitWorkTreeFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		commandFailure := execshell.CommandFailedError{}
		if errors.As(executionError, &commandFailure) {
			return false, nil
		}
		return false, OperationError{Operation: OperationProbeWorktree, Cause: executionError}
	}
	return strings.TrimSpace(executionResult.StandardOutput) == trueLiteralConstant, nil
}

// CloneRepository clones the remote into the destination directory.
func (manager *RepositoryManager) CloneRepository(executionContext context.Context, remoteURL string, destinationPath string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitCloneSubcommandConstant, gitPathspecSeparatorConstant, remoteURL, destinationPath},
		EnvironmentVariables: networkEnvironment(),
	})
	if executionError != nil {
		return OperationError{Operation: OperationClone, Cause: executionError}
	}
	return nil
}

// FetchRemote fetches and prunes the named remote.
func (manager *RepositoryManager) FetchRemote(executionContext context.Context, repositoryPath string, remoteName string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitFetchSubcommandConstant, gitFetchPruneFlagConstant, remoteName},
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: networkEnvironment(),
	})
	if executionError != nil {
		return OperationError{Operation: OperationFetch, Cause: executionError}
	}
	return nil
}

// CheckoutBranch switches the work tree to the named branch.
func (manager *RepositoryManager) CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCheckoutSubcommandConstant, branchName},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return OperationError{Operation: OperationCheckout, Cause: executionError}
	}
	return nil
}

// CreateBranch creates and checks out a branch from the supplied start point.
func (manager *RepositoryManager) CreateBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error {
	commandArguments := []string{gitCheckoutSubcommandConstant, gitBranchFlagConstant, branchName}
	if len(strings.TrimSpace(startPoint)) > 0 {
		commandArguments = append(commandArguments, startPoint)
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        commandArguments,
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return OperationError{Operation: OperationCreateBranch, Cause: executionError}
	}
	return nil
}

// LocalBranchExists reports whether the branch exists in the local repository.
func (manager *RepositoryManager) LocalBranchExists(executionContext context.Context, repositoryPath string, branchName string) (bool, error) {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, gitLocalBranchReferencePrefix + branchName},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		commandFailure := execshell.CommandFailedError{}
		if errors.As(executionError, &commandFailure) {
			return false, nil
		}
		return false, OperationError{Operation: OperationLocalBranchProbe, Cause: executionError}
	}
	return true, nil
}

// RemoteBranchExists reports whether the branch exists on the named remote.
func (manager *RepositoryManager) RemoteBranchExists(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (bool, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitLSRemoteSubcommandConstant, gitHeadsFlagConstant, remoteName, branchName},
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: networkEnvironment(),
	})
	if executionError != nil {
		return false, OperationError{Operation: OperationRemoteBranchProbe, Cause: executionError}
	}
	return len(strings.TrimSpace(executionResult.StandardOutput)) > 0, nil
}

// DefaultRemoteBranch resolves the remote HEAD symbolic reference to a branch name.
func (manager *RepositoryManager) DefaultRemoteBranch(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitLSRemoteSubcommandConstant, gitSymrefFlagConstant, remoteName, gitHeadReferenceConstant},
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: networkEnvironment(),
	})
	if executionError != nil {
		return "", OperationError{Operation: OperationDefaultRemoteBranch, Cause: executionError}
	}

	for _, outputLine := range strings.Split(executionResult.StandardOutput, "\n") {
		trimmedLine := strings.TrimSpace(outputLine)
		if !strings.HasPrefix(trimmedLine, symbolicReferencePrefixConstant) {
			continue
		}
		referenceFields := strings.Fields(trimmedLine)
		if len(referenceFields) < 2 {
			continue
		}
		return strings.TrimPrefix(referenceFields[1], gitLocalBranchReferencePrefix), nil
	}

	return "", OperationError{Operation: OperationDefaultRemoteBranch}
}

// WorktreeStatus parses porcelain status output into tracked and untracked path sets.
func (manager *RepositoryManager) WorktreeStatus(executionContext context.Context, repositoryPath string) (WorktreeStatus, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitStatusSubcommandConstant, gitStatusPorcelainFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return WorktreeStatus{}, OperationError{Operation: OperationStatus, Cause: executionError}
	}

	worktreeStatus := WorktreeStatus{}
	for _, statusLine := range strings.Split(executionResult.StandardOutput, "\n") {
		if len(statusLine) < porcelainMinimumLineLengthNumber {
			continue
		}
		statusCode := statusLine[:2]
		statusPath := strings.TrimSpace(statusLine[3:])
		if renameIndex := strings.Index(statusPath, renameStatusSeparatorConstant); renameIndex >= 0 {
			statusPath = statusPath[renameIndex+len(renameStatusSeparatorConstant):]
		}
		statusPath = strings.Trim(statusPath, `"`)
		if statusCode == untrackedStatusPrefixConstant {
			worktreeStatus.UntrackedFiles = append(worktreeStatus.UntrackedFiles, statusPath)
			continue
		}
		worktreeStatus.TrackedChanges = append(worktreeStatus.TrackedChanges, statusPath)
	}

	return worktreeStatus, nil
}

// GetRemoteURL reads the configured URL of the named remote.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitRemoteGetURLSubcommandConst, remoteName},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", OperationError{Operation: OperationRemoteURL, Cause: executionError}
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// StagePaths stages exactly the supplied paths, including deletions.
func (manager *RepositoryManager) StagePaths(executionContext context.Context, repositoryPath string, paths []string) error {
	commandArguments := []string{gitAddSubcommandConstant, gitAddAllFlagConstant, gitPathspecSeparatorConstant}
	commandArguments = append(commandArguments, paths...)
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        commandArguments,
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return OperationError{Operation: OperationStage, Cause: executionError}
	}
	return nil
}

// StageAllChanges stages every change in the work tree.
func (manager *RepositoryManager) StageAllChanges(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, gitAddAllFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return OperationError{Operation: OperationStage, Cause: executionError}
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (manager *RepositoryManager) HasStagedChanges(executionContext context.Context, repositoryPath string) (bool, error) {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitDiffSubcommandConstant, gitDiffCachedFlagConstant, gitDiffQuietFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		commandFailure := execshell.CommandFailedError{}
		if errors.As(executionError, &commandFailure) && commandFailure.Result.ExitCode == 1 {
			return true, nil
		}
		return false, OperationError{Operation: OperationStagedDiff, Cause: executionError}
	}
	return false, nil
}

// CreateCommit records a commit with the provided message.
func (manager *RepositoryManager) CreateCommit(executionContext context.Context, repositoryPath string, commitMessage string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitMessageFlagConstant, commitMessage},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return OperationError{Operation: OperationCommit, Cause: executionError}
	}
	return nil
}

// HeadRevision resolves the current HEAD commit hash.
func (manager *RepositoryManager) HeadRevision(executionContext context.Context, repositoryPath string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", OperationError{Operation: OperationHeadRevision, Cause: executionError}
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// PushBranch pushes the branch to the named remote with upstream tracking.
func (manager *RepositoryManager) PushBranch(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error {
	refspec := fmt.Sprintf(refspecTemplateConstant, branchName, branchName)
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitPushSubcommandConstant, gitSetUpstreamFlagConstant, remoteName, refspec},
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: networkEnvironment(),
	})
	if executionError != nil {
		return OperationError{Operation: OperationPush, Cause: executionError}
	}
	return nil
}

// IsNonFastForwardError reports whether a push failure was a fast-forward rejection.
func IsNonFastForwardError(pushError error) bool {
	commandFailure := execshell.CommandFailedError{}
	if !errors.As(pushError, &commandFailure) {
		return false
	}
	combinedOutput := strings.ToLower(commandFailure.Result.StandardError + commandFailure.Result.StandardOutput)
	for _, rejectionMarker := range nonFastForwardMarkers {
		if strings.Contains(combinedOutput, rejectionMarker) {
			return true
		}
	}
	return false
}

func networkEnvironment() map[string]string {
	return map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant}
}
