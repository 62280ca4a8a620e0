package agent

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"repatch/internal/secrets"
	"repatch/internal/workspace"
)

const (
	scannerNotConfiguredMessageConstant = "secret scanner not configured"

	editDirectoryPermissionsNumber os.FileMode = 0o755
	editFilePermissionsNumber      os.FileMode = 0o644

	appliedEditsLogMessageConstant = "applied edits"
	appliedCountLogFieldConstant   = "applied_count"
	deletedPathLogMessageConstant  = "deleted path"
	writtenPathLogMessageConstant  = "wrote path"
	editPathLogFieldConstant       = "path"
)

// ErrScannerNotConfigured indicates the applier was constructed without a scanner.
var ErrScannerNotConfigured = errors.New(scannerNotConfiguredMessageConstant)

// EditApplier writes an edit set into a working copy after a secret scan.
type EditApplier struct {
	scanner *secrets.Scanner
	logger  *zap.Logger
}

// NewEditApplier constructs an EditApplier around the provided scanner.
func NewEditApplier(scanner *secrets.Scanner, logger *zap.Logger) (*EditApplier, error) {
	if scanner == nil {
		return nil, ErrScannerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditApplier{scanner: scanner, logger: logger}, nil
}

// Apply scans the proposed content, verifies deletion targets exist, then writes
// every edit in sorted path order. Nothing is written unless both pre-checks pass;
// a mid-apply I/O failure surfaces as PartialApplyFailureError listing what was
// already written.
func (applier *EditApplier) Apply(repositoryPath string, editSet *workspace.EditSet) ([]string, error) {
	sortedPaths := editSet.SortedPaths()

	proposedContents := make(map[string]string, len(sortedPaths))
	for _, relativePath := range sortedPaths {
		proposedEdit, _ := editSet.Lookup(relativePath)
		if proposedEdit.Delete {
			continue
		}
		proposedContents[relativePath] = proposedEdit.Content
	}
	if findings := applier.scanner.ScanAll(proposedContents); len(findings) > 0 {
		return nil, SecretDetectedError{Findings: findings}
	}

	for _, relativePath := range sortedPaths {
		proposedEdit, _ := editSet.Lookup(relativePath)
		if !proposedEdit.Delete {
			continue
		}
		if _, statError := os.Stat(filepath.Join(repositoryPath, relativePath)); statError != nil {
			if os.IsNotExist(statError) {
				return nil, PathNotFoundError{Path: relativePath}
			}
			return nil, statError
		}
	}

	appliedPaths := make([]string, 0, len(sortedPaths))
	for _, relativePath := range sortedPaths {
		proposedEdit, _ := editSet.Lookup(relativePath)
		if applyError := applier.applyOne(repositoryPath, relativePath, proposedEdit); applyError != nil {
			return appliedPaths, PartialApplyFailureError{Written: appliedPaths, FailedPath: relativePath, Cause: applyError}
		}
		appliedPaths = append(appliedPaths, relativePath)
	}

	applier.logger.Info(appliedEditsLogMessageConstant, zap.Int(appliedCountLogFieldConstant, len(appliedPaths)))
	return appliedPaths, nil
}

func (applier *EditApplier) applyOne(repositoryPath string, relativePath string, proposedEdit workspace.Edit) error {
	absolutePath := filepath.Join(repositoryPath, relativePath)

	if proposedEdit.Delete {
		if removeError := os.Remove(absolutePath); removeError != nil {
			return removeError
		}
		applier.logger.Debug(deletedPathLogMessageConstant, zap.String(editPathLogFieldConstant, relativePath))
		return nil
	}

	if directoryError := os.MkdirAll(filepath.Dir(absolutePath), editDirectoryPermissionsNumber); directoryError != nil {
		return directoryError
	}
	if writeError := os.WriteFile(absolutePath, []byte(proposedEdit.Content), editFilePermissionsNumber); writeError != nil {
		return writeError
	}
	applier.logger.Debug(writtenPathLogMessageConstant, zap.String(editPathLogFieldConstant, relativePath))
	return nil
}
