package agent

import (
	"errors"
	"fmt"
	"strings"

	"repatch/internal/secrets"
)

const (
	workspaceConflictTemplateConstant    = "workspace conflict at %s: %s"
	remoteUnavailableTemplateConstant    = "remote %s unavailable after %d attempt(s): %s"
	branchNotFoundTemplateConstant       = "branch %s not found locally or on remote %s"
	dirtyWorktreeTemplateConstant        = "worktree is dirty (tracked: %s; untracked: %s)"
	secretDetectedTemplateConstant       = "refusing to apply edits: %d secret finding(s), first at %s"
	pathNotFoundTemplateConstant         = "cannot delete %s: path does not exist"
	partialApplyFailureTemplateConstant  = "edit application failed at %s after %d write(s): %s"
	unexpectedChangesTemplateConstant    = "worktree contains changes outside the applied edit set: %s"
	pushRejectedTemplateConstant         = "push of %s rejected after fetch and retry: %s"
	nothingToCommitMessageConstant       = "no staged changes to commit"
	offendingPathSeparatorConstant       = ", "
	emptyPathListPlaceholderConstant     = "none"
)

// ErrNothingToCommit indicates the staged diff was empty after staging the edit set.
var ErrNothingToCommit = errors.New(nothingToCommitMessageConstant)

// WorkspaceConflictError indicates the local path cannot serve the requested workspace.
type WorkspaceConflictError struct {
	Path   string
	Reason string
}

// Error describes the conflict.
func (conflictError WorkspaceConflictError) Error() string {
	return fmt.Sprintf(workspaceConflictTemplateConstant, conflictError.Path, conflictError.Reason)
}

// RemoteUnavailableError indicates a network git operation kept failing after bounded retry.
type RemoteUnavailableError struct {
	Remote   string
	Attempts int
	Cause    error
}

// Error describes the exhausted retries.
func (remoteError RemoteUnavailableError) Error() string {
	return fmt.Sprintf(remoteUnavailableTemplateConstant, remoteError.Remote, remoteError.Attempts, remoteError.Cause)
}

// Unwrap exposes the final attempt failure.
func (remoteError RemoteUnavailableError) Unwrap() error {
	return remoteError.Cause
}

// BranchNotFoundError indicates the requested branch exists neither locally nor on the remote.
type BranchNotFoundError struct {
	Branch string
	Remote string
}

// Error describes the missing branch.
func (branchError BranchNotFoundError) Error() string {
	return fmt.Sprintf(branchNotFoundTemplateConstant, branchError.Branch, branchError.Remote)
}

// DirtyWorktreeError indicates pre-existing modifications block the pipeline.
type DirtyWorktreeError struct {
	TrackedChanges []string
	UntrackedFiles []string
}

// Error lists the offending paths.
func (dirtyError DirtyWorktreeError) Error() string {
	return fmt.Sprintf(dirtyWorktreeTemplateConstant, joinPaths(dirtyError.TrackedChanges), joinPaths(dirtyError.UntrackedFiles))
}

// SecretDetectedError indicates proposed content matched a secret pattern.
type SecretDetectedError struct {
	Findings []secrets.Finding
}

// Error summarizes the findings without exposing matched material.
func (secretError SecretDetectedError) Error() string {
	firstLocation := emptyPathListPlaceholderConstant
	if len(secretError.Findings) > 0 {
		firstFinding := secretError.Findings[0]
		firstLocation = fmt.Sprintf("%s:%d (%s)", firstFinding.Path, firstFinding.LineNumber, firstFinding.PatternName)
	}
	return fmt.Sprintf(secretDetectedTemplateConstant, len(secretError.Findings), firstLocation)
}

// PathNotFoundError indicates a deletion targeted a path absent from the worktree.
type PathNotFoundError struct {
	Path string
}

// Error describes the missing deletion target.
func (pathError PathNotFoundError) Error() string {
	return fmt.Sprintf(pathNotFoundTemplateConstant, pathError.Path)
}

// PartialApplyFailureError indicates edit application stopped midway, leaving the
// worktree partially mutated.
type PartialApplyFailureError struct {
	Written    []string
	FailedPath string
	Cause      error
}

// Error describes where application stopped.
func (applyError PartialApplyFailureError) Error() string {
	return fmt.Sprintf(partialApplyFailureTemplateConstant, applyError.FailedPath, len(applyError.Written), applyError.Cause)
}

// Unwrap exposes the underlying I/O failure.
func (applyError PartialApplyFailureError) Unwrap() error {
	return applyError.Cause
}

// UnexpectedChangesError indicates the worktree changed outside the applied edit set
// between application and staging.
type UnexpectedChangesError struct {
	UnexpectedPaths []string
}

// Error lists the foreign paths.
func (unexpectedError UnexpectedChangesError) Error() string {
	return fmt.Sprintf(unexpectedChangesTemplateConstant, joinPaths(unexpectedError.UnexpectedPaths))
}

// PushRejectedError indicates the remote refused the push even after a fetch and retry.
type PushRejectedError struct {
	Ref   string
	Cause error
}

// Error describes the rejected ref.
func (pushError PushRejectedError) Error() string {
	return fmt.Sprintf(pushRejectedTemplateConstant, pushError.Ref, pushError.Cause)
}

// Unwrap exposes the rejection reported by git.
func (pushError PushRejectedError) Unwrap() error {
	return pushError.Cause
}

func joinPaths(paths []string) string {
	if len(paths) == 0 {
		return emptyPathListPlaceholderConstant
	}
	return strings.Join(paths, offendingPathSeparatorConstant)
}
