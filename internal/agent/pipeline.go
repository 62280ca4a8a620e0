package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"repatch/internal/workspace"
)

// PipelineState names the stages a run moves through.
type PipelineState string

// Pipeline states. A run advances strictly forward and records its terminal state.
const (
	StateUnopened  PipelineState = "Unopened"
	StateOpened    PipelineState = "Opened"
	StateValidated PipelineState = "Validated"
	StateApplied   PipelineState = "Applied"
	StateCommitted PipelineState = "Committed"
	StateFailed    PipelineState = "Failed"
)

const (
	openerNotConfiguredMessageConstant    = "repository opener not configured"
	guardNotConfiguredMessageConstant     = "worktree guard not configured"
	applierNotConfiguredMessageConstant   = "edit applier not configured"
	publisherNotConfiguredMessageConstant = "commit publisher not configured"
	emptyEditSetMessageConstant           = "edit set is empty"

	diffOldPathPrefixConstant   = "a/"
	diffNewPathPrefixConstant   = "b/"
	diffMissingFileLabel        = "/dev/null"
	diffContextLineCountNumber  = 3
	runCompletedLogMessage      = "pipeline run completed"
	runFailedLogMessage         = "pipeline run failed"
	previewComputedLogMessage   = "preview computed"
	pipelineStateLogField       = "state"
	pipelineDiffCountLogField   = "diff_count"
	pipelineEditCountLogField   = "edit_count"
)

// Dependency validation sentinels for the pipeline constructor.
var (
	ErrOpenerNotConfigured    = errors.New(openerNotConfiguredMessageConstant)
	ErrGuardNotConfigured     = errors.New(guardNotConfiguredMessageConstant)
	ErrApplierNotConfigured   = errors.New(applierNotConfiguredMessageConstant)
	ErrPublisherNotConfigured = errors.New(publisherNotConfiguredMessageConstant)
	ErrEmptyEditSet           = errors.New(emptyEditSetMessageConstant)
)

// RunOptions tunes a pipeline run.
type RunOptions struct {
	AllowUntracked      bool
	StageAll            bool
	CreateMissingBranch bool
	MessageTemplate     string
}

// FileDiff is one per-path unified diff produced by preview.
type FileDiff struct {
	Path       string `json:"path"`
	Diff       string `json:"diff"`
	IsNewFile  bool   `json:"is_new_file"`
	IsDeletion bool   `json:"is_deletion"`
}

// Pipeline drives a full mutation run: open, validate, apply, publish. Preview
// stops after validation and computes diffs without writing.
type Pipeline struct {
	opener    *RepositoryOpener
	guard     *WorktreeGuard
	applier   *EditApplier
	publisher *CommitPublisher
	logger    *zap.Logger
	state     PipelineState
}

// NewPipeline constructs a Pipeline from its stage components.
func NewPipeline(opener *RepositoryOpener, guard *WorktreeGuard, applier *EditApplier, publisher *CommitPublisher, logger *zap.Logger) (*Pipeline, error) {
	if opener == nil {
		return nil, ErrOpenerNotConfigured
	}
	if guard == nil {
		return nil, ErrGuardNotConfigured
	}
	if applier == nil {
		return nil, ErrApplierNotConfigured
	}
	if publisher == nil {
		return nil, ErrPublisherNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{opener: opener, guard: guard, applier: applier, publisher: publisher, logger: logger, state: StateUnopened}, nil
}

// State reports the stage the most recent run reached.
func (pipeline *Pipeline) State() PipelineState {
	return pipeline.state
}

// Run executes the full pipeline and returns the publication result. Any stage
// failure marks the pipeline Failed and surfaces the originating error unchanged.
func (pipeline *Pipeline) Run(executionContext context.Context, descriptor workspace.Workspace, editSet *workspace.EditSet, options RunOptions) (CommitResult, error) {
	pipeline.state = StateUnopened
	if editSet == nil || editSet.Len() == 0 {
		return CommitResult{}, pipeline.fail(ErrEmptyEditSet)
	}

	repositoryHandle, openError := pipeline.opener.OpenOrCreate(executionContext, descriptor, OpenOptions{CreateMissingBranch: options.CreateMissingBranch})
	if openError != nil {
		return CommitResult{}, pipeline.fail(openError)
	}
	pipeline.state = StateOpened

	if guardError := pipeline.guard.EnsureClean(executionContext, repositoryHandle.Workspace.LocalPath, options.AllowUntracked); guardError != nil {
		return CommitResult{}, pipeline.fail(guardError)
	}
	pipeline.state = StateValidated

	appliedPaths, applyError := pipeline.applier.Apply(repositoryHandle.Workspace.LocalPath, editSet)
	if applyError != nil {
		return CommitResult{}, pipeline.fail(applyError)
	}
	pipeline.state = StateApplied

	commitResult, publishError := pipeline.publisher.CommitAndPush(
		executionContext,
		repositoryHandle.Workspace.LocalPath,
		repositoryHandle.Workspace.BranchName,
		appliedPaths,
		options.MessageTemplate,
		PublishOptions{AllowUntracked: options.AllowUntracked, StageAll: options.StageAll},
	)
	if publishError != nil {
		return CommitResult{}, pipeline.fail(publishError)
	}
	pipeline.state = StateCommitted

	pipeline.logger.Info(runCompletedLogMessage,
		zap.String(pipelineStateLogField, string(pipeline.state)),
		zap.String(commitHashLogFieldConstant, commitResult.CommitHash),
	)
	return commitResult, nil
}

// Preview opens and validates the workspace, then computes per-path unified
// diffs against the current worktree without writing anything. The pipeline
// remains in the Validated state on success.
func (pipeline *Pipeline) Preview(executionContext context.Context, descriptor workspace.Workspace, editSet *workspace.EditSet, options RunOptions) ([]FileDiff, error) {
	pipeline.state = StateUnopened
	if editSet == nil || editSet.Len() == 0 {
		return nil, pipeline.fail(ErrEmptyEditSet)
	}

	repositoryHandle, openError := pipeline.opener.OpenOrCreate(executionContext, descriptor, OpenOptions{CreateMissingBranch: options.CreateMissingBranch})
	if openError != nil {
		return nil, pipeline.fail(openError)
	}
	pipeline.state = StateOpened

	if guardError := pipeline.guard.EnsureClean(executionContext, repositoryHandle.Workspace.LocalPath, options.AllowUntracked); guardError != nil {
		return nil, pipeline.fail(guardError)
	}
	pipeline.state = StateValidated

	fileDiffs, diffError := computeDiffs(repositoryHandle.Workspace.LocalPath, editSet)
	if diffError != nil {
		return nil, pipeline.fail(diffError)
	}

	pipeline.logger.Info(previewComputedLogMessage,
		zap.Int(pipelineDiffCountLogField, len(fileDiffs)),
		zap.Int(pipelineEditCountLogField, editSet.Len()),
	)
	return fileDiffs, nil
}

func (pipeline *Pipeline) fail(stageError error) error {
	pipeline.state = StateFailed
	pipeline.logger.Warn(runFailedLogMessage,
		zap.String(pipelineStateLogField, string(pipeline.state)),
		zap.Error(stageError),
	)
	return stageError
}

func computeDiffs(repositoryPath string, editSet *workspace.EditSet) ([]FileDiff, error) {
	fileDiffs := make([]FileDiff, 0, editSet.Len())
	for _, relativePath := range editSet.SortedPaths() {
		proposedEdit, _ := editSet.Lookup(relativePath)

		existingContent, pathExists, readError := readExisting(filepath.Join(repositoryPath, relativePath))
		if readError != nil {
			return nil, readError
		}
		if proposedEdit.Delete && !pathExists {
			return nil, PathNotFoundError{Path: relativePath}
		}

		proposedContent := proposedEdit.Content
		if proposedEdit.Delete {
			proposedContent = ""
		}

		oldLabel := diffOldPathPrefixConstant + relativePath
		if !pathExists {
			oldLabel = diffMissingFileLabel
		}
		newLabel := diffNewPathPrefixConstant + relativePath
		if proposedEdit.Delete {
			newLabel = diffMissingFileLabel
		}

		unifiedDiff, diffError := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(existingContent),
			B:        difflib.SplitLines(proposedContent),
			FromFile: oldLabel,
			ToFile:   newLabel,
			Context:  diffContextLineCountNumber,
		})
		if diffError != nil {
			return nil, diffError
		}

		fileDiffs = append(fileDiffs, FileDiff{
			Path:       relativePath,
			Diff:       unifiedDiff,
			IsNewFile:  !pathExists,
			IsDeletion: proposedEdit.Delete,
		})
	}
	return fileDiffs, nil
}

func readExisting(absolutePath string) (string, bool, error) {
	existingBytes, readError := os.ReadFile(absolutePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return "", false, nil
		}
		return "", false, readError
	}
	return string(existingBytes), true, nil
}
