package agent

import "strings"

const (
	defaultPushTimeoutSecondsNumber = 120
	defaultOutputFormatConstant     = "text"
)

// CommandConfiguration captures configuration values for the apply and preview commands.
type CommandConfiguration struct {
	RemoteURL           string `mapstructure:"remote"`
	BranchName          string `mapstructure:"branch"`
	RepositoryPath      string `mapstructure:"path"`
	EditsPath           string `mapstructure:"edits"`
	MessageTemplate     string `mapstructure:"message"`
	AllowUntracked      bool   `mapstructure:"allow_untracked"`
	StageAll            bool   `mapstructure:"stage_all"`
	CreateMissingBranch bool   `mapstructure:"create_missing_branch"`
	LedgerPath          string `mapstructure:"ledger_path"`
	PushTimeoutSeconds  int    `mapstructure:"push_timeout_seconds"`
	OutputFormat        string `mapstructure:"output"`
}

// DefaultCommandConfiguration provides baseline configuration values for the agent commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		AllowUntracked:     true,
		PushTimeoutSeconds: defaultPushTimeoutSecondsNumber,
		OutputFormat:       defaultOutputFormatConstant,
	}
}

// DefaultConfigurationValues exposes agent defaults keyed for the configuration loader.
func DefaultConfigurationValues(configurationKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKey + ".allow_untracked":      defaults.AllowUntracked,
		configurationKey + ".push_timeout_seconds": defaults.PushTimeoutSeconds,
		configurationKey + ".output":               defaults.OutputFormat,
	}
}

// Sanitize trims configuration values and restores defaults for empty entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.RemoteURL = strings.TrimSpace(configuration.RemoteURL)
	sanitized.BranchName = strings.TrimSpace(configuration.BranchName)
	sanitized.RepositoryPath = strings.TrimSpace(configuration.RepositoryPath)
	sanitized.EditsPath = strings.TrimSpace(configuration.EditsPath)
	sanitized.MessageTemplate = strings.TrimSpace(configuration.MessageTemplate)
	sanitized.LedgerPath = strings.TrimSpace(configuration.LedgerPath)
	sanitized.OutputFormat = strings.ToLower(strings.TrimSpace(configuration.OutputFormat))
	if len(sanitized.OutputFormat) == 0 {
		sanitized.OutputFormat = defaultOutputFormatConstant
	}
	if sanitized.PushTimeoutSeconds <= 0 {
		sanitized.PushTimeoutSeconds = defaultPushTimeoutSecondsNumber
	}

	return sanitized
}
