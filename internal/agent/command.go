package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"repatch/internal/execshell"
	"repatch/internal/gitrepo"
	"repatch/internal/history"
	"repatch/internal/secrets"
	"repatch/internal/workspace"
)

const (
	applyCommandUseConstant              = "apply"
	applyCommandShortDescriptionConstant = "Apply an edit set to a repository and push the resulting commit"
	applyCommandLongDescriptionConstant  = "apply opens or clones the requested repository, verifies the worktree is clean, scans the proposed content for secrets, writes the edit set, commits exactly the applied paths, and pushes with bounded retry."

	previewCommandUseConstant              = "preview"
	previewCommandShortDescriptionConstant = "Show the diffs an edit set would produce without writing anything"
	previewCommandLongDescriptionConstant  = "preview opens or clones the requested repository, verifies the worktree is clean, and prints per-file unified diffs of the proposed edit set. The worktree is never modified."

	commandExecutionErrorTemplateConstant = "%s failed: %w"

	flagRemoteNameConstant                 = "remote"
	flagRemoteDescriptionConstant          = "Remote URL of the repository to mutate"
	flagBranchNameConstant                 = "branch"
	flagBranchDescriptionConstant          = "Branch to apply the edit set on"
	flagPathNameConstant                   = "path"
	flagPathDescriptionConstant            = "Local working copy path"
	flagEditsNameConstant                  = "edits"
	flagEditsDescriptionConstant           = "Path to the YAML edit-set manifest"
	flagMessageNameConstant                = "message"
	flagMessageDescriptionConstant         = "Commit message template ({branch}, {count}, {files})"
	flagAllowUntrackedNameConstant         = "allow-untracked"
	flagAllowUntrackedDescriptionConstant  = "Tolerate untracked files in the worktree"
	flagStageAllNameConstant               = "stage-all"
	flagStageAllDescriptionConstant        = "Stage every worktree change instead of only the applied paths"
	flagCreateBranchNameConstant           = "create-branch"
	flagCreateBranchDescriptionConstant    = "Create the branch from the remote default branch when it does not exist"
	flagOutputNameConstant                 = "output"
	flagOutputDescriptionConstant          = "Output format: text or json"

	editsPathRequiredMessageConstant   = "edit-set manifest path not configured"
	unsupportedOutputTemplateConstant  = "unsupported output format: %s"
	outputFormatTextConstant           = "text"
	outputFormatJSONConstant           = "json"
	textResultTemplateConstant         = "committed %s to %s (%d file(s), %d push retr%s)\n"
	textDiffHeaderTemplateConstant     = "--- no changes for %s\n"
	ledgerRecordFailedLogMessage       = "failed to record run in ledger"
	ledgerStatusCommittedConstant      = "committed"
	ledgerStatusFailedConstant         = "failed"
	retrySingularSuffixConstant        = "y"
	retryPluralSuffixConstant          = "ies"
)

// ErrEditsPathRequired indicates no edit-set manifest path was supplied.
var ErrEditsPathRequired = errors.New(editsPathRequiredMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the effective command configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the apply and preview Cobra commands.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	RepositoryService     GitRepositoryService
	PreviewMode           bool
}

// Build constructs the apply or preview command depending on PreviewMode.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	useText := applyCommandUseConstant
	shortText := applyCommandShortDescriptionConstant
	longText := applyCommandLongDescriptionConstant
	if builder.PreviewMode {
		useText = previewCommandUseConstant
		shortText = previewCommandShortDescriptionConstant
		longText = previewCommandLongDescriptionConstant
	}

	command := &cobra.Command{
		Use:           useText,
		Short:         shortText,
		Long:          longText,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.run,
	}

	command.Flags().String(flagRemoteNameConstant, "", flagRemoteDescriptionConstant)
	command.Flags().String(flagBranchNameConstant, "", flagBranchDescriptionConstant)
	command.Flags().String(flagPathNameConstant, "", flagPathDescriptionConstant)
	command.Flags().String(flagEditsNameConstant, "", flagEditsDescriptionConstant)
	command.Flags().String(flagMessageNameConstant, "", flagMessageDescriptionConstant)
	command.Flags().Bool(flagAllowUntrackedNameConstant, true, flagAllowUntrackedDescriptionConstant)
	command.Flags().Bool(flagStageAllNameConstant, false, flagStageAllDescriptionConstant)
	command.Flags().Bool(flagCreateBranchNameConstant, false, flagCreateBranchDescriptionConstant)
	command.Flags().String(flagOutputNameConstant, "", flagOutputDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	configuration = applyFlagOverrides(command, configuration)

	if len(configuration.EditsPath) == 0 {
		return ErrEditsPathRequired
	}
	if configuration.OutputFormat != outputFormatTextConstant && configuration.OutputFormat != outputFormatJSONConstant {
		return fmt.Errorf(unsupportedOutputTemplateConstant, configuration.OutputFormat)
	}

	descriptor := workspace.Workspace{
		RemoteURL:  configuration.RemoteURL,
		BranchName: configuration.BranchName,
		LocalPath:  configuration.RepositoryPath,
	}.Sanitize()
	if validationError := descriptor.Validate(); validationError != nil {
		return validationError
	}

	editSet, manifestError := workspace.LoadManifest(configuration.EditsPath)
	if manifestError != nil {
		return manifestError
	}

	logger := builder.resolveLogger()
	pipeline, pipelineError := builder.buildPipeline(logger)
	if pipelineError != nil {
		return pipelineError
	}

	runContext, cancelRun := context.WithTimeout(command.Context(), time.Duration(configuration.PushTimeoutSeconds)*time.Second)
	defer cancelRun()

	runOptions := RunOptions{
		AllowUntracked:      configuration.AllowUntracked,
		StageAll:            configuration.StageAll,
		CreateMissingBranch: configuration.CreateMissingBranch,
		MessageTemplate:     configuration.MessageTemplate,
	}

	if builder.PreviewMode {
		fileDiffs, previewError := pipeline.Preview(runContext, descriptor, editSet, runOptions)
		if previewError != nil {
			return fmt.Errorf(commandExecutionErrorTemplateConstant, previewCommandUseConstant, previewError)
		}
		return writePreview(command, configuration.OutputFormat, fileDiffs)
	}

	startedAt := time.Now().UTC()
	commitResult, runError := pipeline.Run(runContext, descriptor, editSet, runOptions)
	builder.recordRun(logger, configuration, descriptor, commitResult, runError, startedAt)
	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, applyCommandUseConstant, runError)
	}
	return writeResult(command, configuration.OutputFormat, commitResult)
}

func applyFlagOverrides(command *cobra.Command, configuration CommandConfiguration) CommandConfiguration {
	flags := command.Flags()
	if flags.Changed(flagRemoteNameConstant) {
		configuration.RemoteURL, _ = flags.GetString(flagRemoteNameConstant)
	}
	if flags.Changed(flagBranchNameConstant) {
		configuration.BranchName, _ = flags.GetString(flagBranchNameConstant)
	}
	if flags.Changed(flagPathNameConstant) {
		configuration.RepositoryPath, _ = flags.GetString(flagPathNameConstant)
	}
	if flags.Changed(flagEditsNameConstant) {
		configuration.EditsPath, _ = flags.GetString(flagEditsNameConstant)
	}
	if flags.Changed(flagMessageNameConstant) {
		configuration.MessageTemplate, _ = flags.GetString(flagMessageNameConstant)
	}
	if flags.Changed(flagAllowUntrackedNameConstant) {
		configuration.AllowUntracked, _ = flags.GetBool(flagAllowUntrackedNameConstant)
	}
	if flags.Changed(flagStageAllNameConstant) {
		configuration.StageAll, _ = flags.GetBool(flagStageAllNameConstant)
	}
	if flags.Changed(flagCreateBranchNameConstant) {
		configuration.CreateMissingBranch, _ = flags.GetBool(flagCreateBranchNameConstant)
	}
	if flags.Changed(flagOutputNameConstant) {
		configuration.OutputFormat, _ = flags.GetString(flagOutputNameConstant)
	}
	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveRepositoryService(logger *zap.Logger) (GitRepositoryService, error) {
	if builder.RepositoryService != nil {
		return builder.RepositoryService, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner)
	if executorError != nil {
		return nil, executorError
	}
	return gitrepo.NewRepositoryManager(shellExecutor)
}

func (builder *CommandBuilder) buildPipeline(logger *zap.Logger) (*Pipeline, error) {
	repositoryService, serviceError := builder.resolveRepositoryService(logger)
	if serviceError != nil {
		return nil, serviceError
	}

	opener, openerError := NewRepositoryOpener(repositoryService, logger)
	if openerError != nil {
		return nil, openerError
	}
	guard, guardError := NewWorktreeGuard(repositoryService, logger)
	if guardError != nil {
		return nil, guardError
	}
	applier, applierError := NewEditApplier(secrets.NewScanner(nil), logger)
	if applierError != nil {
		return nil, applierError
	}
	publisher, publisherError := NewCommitPublisher(repositoryService, logger)
	if publisherError != nil {
		return nil, publisherError
	}
	return NewPipeline(opener, guard, applier, publisher, logger)
}

func (builder *CommandBuilder) recordRun(logger *zap.Logger, configuration CommandConfiguration, descriptor workspace.Workspace, commitResult CommitResult, runError error, startedAt time.Time) {
	if len(configuration.LedgerPath) == 0 {
		return
	}

	ledgerStore, openError := history.Open(configuration.LedgerPath)
	if openError != nil {
		logger.Warn(ledgerRecordFailedLogMessage, zap.Error(openError))
		return
	}
	defer func() {
		_ = ledgerStore.Close()
	}()

	ledgerContext := context.Background()
	if initError := ledgerStore.Init(ledgerContext); initError != nil {
		logger.Warn(ledgerRecordFailedLogMessage, zap.Error(initError))
		return
	}

	record := history.RunRecord{
		RemoteURL:    descriptor.RemoteURL,
		BranchName:   descriptor.BranchName,
		LocalPath:    descriptor.LocalPath,
		Status:       ledgerStatusCommittedConstant,
		CommitHash:   commitResult.CommitHash,
		FilesChanged: commitResult.FilesChanged,
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
	}
	if runError != nil {
		record.Status = ledgerStatusFailedConstant
		record.ErrorText = runError.Error()
	}

	if _, recordError := ledgerStore.RecordRun(ledgerContext, record); recordError != nil {
		logger.Warn(ledgerRecordFailedLogMessage, zap.Error(recordError))
	}
}

func writePreview(command *cobra.Command, outputFormat string, fileDiffs []FileDiff) error {
	if outputFormat == outputFormatJSONConstant {
		encodedDiffs, marshalError := json.MarshalIndent(fileDiffs, "", "  ")
		if marshalError != nil {
			return marshalError
		}
		fmt.Fprintln(command.OutOrStdout(), string(encodedDiffs))
		return nil
	}

	for _, fileDiff := range fileDiffs {
		if len(strings.TrimSpace(fileDiff.Diff)) == 0 {
			fmt.Fprintf(command.OutOrStdout(), textDiffHeaderTemplateConstant, fileDiff.Path)
			continue
		}
		fmt.Fprint(command.OutOrStdout(), fileDiff.Diff)
	}
	return nil
}

func writeResult(command *cobra.Command, outputFormat string, commitResult CommitResult) error {
	if outputFormat == outputFormatJSONConstant {
		encodedResult, marshalError := json.MarshalIndent(commitResult, "", "  ")
		if marshalError != nil {
			return marshalError
		}
		fmt.Fprintln(command.OutOrStdout(), string(encodedResult))
		return nil
	}

	retrySuffix := retrySingularSuffixConstant
	if commitResult.PushRetries != 1 {
		retrySuffix = retryPluralSuffixConstant
	}
	fmt.Fprintf(command.OutOrStdout(), textResultTemplateConstant,
		commitResult.CommitHash,
		commitResult.PushedRef,
		len(commitResult.FilesChanged),
		commitResult.PushRetries,
		retrySuffix,
	)
	return nil
}
