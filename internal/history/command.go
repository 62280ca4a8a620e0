package history

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	commandUseConstant              = "history"
	commandShortDescriptionConstant = "List recorded pipeline runs"
	commandLongDescriptionConstant  = "history lists the most recent pipeline runs recorded in the sqlite ledger, newest first."

	flagLimitNameConstant         = "limit"
	flagLimitDescriptionConstant  = "Maximum number of runs to list"
	flagOutputNameConstant        = "output"
	flagOutputDescriptionConstant = "Output format: text or json"

	outputFormatTextConstant          = "text"
	outputFormatJSONConstant          = "json"
	runLineTemplateConstant           = "%s  %-9s  %s@%s  %s\n"
	emptyLedgerMessageConstant        = "no recorded runs"
	runTimestampLayoutConstant        = "2006-01-02 15:04:05"
	runCommitPlaceholderConstant      = "-"
	unsupportedOutputTemplateConstant = "unsupported output format: %s"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the effective command configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the history Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
}

// Build constructs the history command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.run,
	}

	command.Flags().Int(flagLimitNameConstant, defaultHistoryLimitNumber, flagLimitDescriptionConstant)
	command.Flags().String(flagOutputNameConstant, "", flagOutputDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	if command.Flags().Changed(flagLimitNameConstant) {
		configuration.Limit, _ = command.Flags().GetInt(flagLimitNameConstant)
	}
	outputFormat, _ := command.Flags().GetString(flagOutputNameConstant)

	ledgerStore, openError := Open(configuration.LedgerPath)
	if openError != nil {
		return openError
	}
	defer func() {
		_ = ledgerStore.Close()
	}()

	if initError := ledgerStore.Init(command.Context()); initError != nil {
		return initError
	}

	records, listError := ledgerStore.ListRuns(command.Context(), configuration.Limit)
	if listError != nil {
		return listError
	}

	if outputFormat == outputFormatJSONConstant {
		encodedRecords, marshalError := json.MarshalIndent(records, "", "  ")
		if marshalError != nil {
			return marshalError
		}
		fmt.Fprintln(command.OutOrStdout(), string(encodedRecords))
		return nil
	}
	if len(outputFormat) > 0 && outputFormat != outputFormatTextConstant {
		return fmt.Errorf(unsupportedOutputTemplateConstant, outputFormat)
	}

	if len(records) == 0 {
		fmt.Fprintln(command.OutOrStdout(), emptyLedgerMessageConstant)
		return nil
	}
	for _, record := range records {
		commitHash := record.CommitHash
		if len(commitHash) == 0 {
			commitHash = runCommitPlaceholderConstant
		}
		fmt.Fprintf(command.OutOrStdout(), runLineTemplateConstant,
			record.StartedAt.Format(runTimestampLayoutConstant),
			record.Status,
			record.BranchName,
			record.RemoteURL,
			commitHash,
		)
	}
	return nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}
