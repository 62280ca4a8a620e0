package workspace

import (
	"errors"
	"strings"

	pathutils "repatch/internal/utils/path"
)

const (
	remoteURLRequiredMessageConstant  = "workspace remote url must be provided"
	branchNameRequiredMessageConstant = "workspace branch name must be provided"
	localPathRequiredMessageConstant  = "workspace local path must be provided"
)

// ErrRemoteURLRequired indicates the workspace remote URL was empty.
var ErrRemoteURLRequired = errors.New(remoteURLRequiredMessageConstant)

// ErrBranchNameRequired indicates the workspace branch name was empty.
var ErrBranchNameRequired = errors.New(branchNameRequiredMessageConstant)

// ErrLocalPathRequired indicates the workspace local path was empty.
var ErrLocalPathRequired = errors.New(localPathRequiredMessageConstant)

// Workspace identifies the repository a pipeline run mutates.
type Workspace struct {
	RemoteURL  string
	BranchName string
	LocalPath  string
}

// Sanitize trims workspace values and expands a leading tilde in the local path.
func (descriptor Workspace) Sanitize() Workspace {
	sanitized := descriptor
	sanitized.RemoteURL = strings.TrimSpace(descriptor.RemoteURL)
	sanitized.BranchName = strings.TrimSpace(descriptor.BranchName)
	sanitized.LocalPath = pathutils.NewHomeExpander().Expand(strings.TrimSpace(descriptor.LocalPath))
	return sanitized
}

// Validate reports the first missing required workspace value.
func (descriptor Workspace) Validate() error {
	if len(descriptor.RemoteURL) == 0 {
		return ErrRemoteURLRequired
	}
	if len(descriptor.BranchName) == 0 {
		return ErrBranchNameRequired
	}
	if len(descriptor.LocalPath) == 0 {
		return ErrLocalPathRequired
	}
	return nil
}
