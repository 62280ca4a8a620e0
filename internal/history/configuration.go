package history

import "strings"

const defaultHistoryLimitNumber = 20

// CommandConfiguration captures configuration values for the history command.
type CommandConfiguration struct {
	LedgerPath string `mapstructure:"ledger_path"`
	Limit      int    `mapstructure:"limit"`
}

// DefaultCommandConfiguration provides baseline configuration values for the history command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Limit: defaultHistoryLimitNumber}
}

// DefaultConfigurationValues exposes history defaults keyed for the configuration loader.
func DefaultConfigurationValues(configurationKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKey + ".limit": defaults.Limit,
	}
}

// Sanitize trims configuration values and restores defaults for empty entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.LedgerPath = strings.TrimSpace(configuration.LedgerPath)
	if sanitized.Limit <= 0 {
		sanitized.Limit = defaultHistoryLimitNumber
	}
	return sanitized
}
