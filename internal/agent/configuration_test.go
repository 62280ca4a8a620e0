package agent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"repatch/internal/agent"
)

func TestDefaultCommandConfiguration(testInstance *testing.T) {
	configuration := agent.DefaultCommandConfiguration()
	require.True(testInstance, configuration.AllowUntracked)
	require.Equal(testInstance, 120, configuration.PushTimeoutSeconds)
	require.Equal(testInstance, "text", configuration.OutputFormat)
}

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	configuration := agent.CommandConfiguration{
		RemoteURL:          "  https://github.com/example/service.git  ",
		BranchName:         " main ",
		RepositoryPath:     " /tmp/service ",
		EditsPath:          " edits.yaml ",
		MessageTemplate:    "  ",
		OutputFormat:       " JSON ",
		PushTimeoutSeconds: -5,
	}

	sanitized := configuration.Sanitize()
	require.Equal(testInstance, "https://github.com/example/service.git", sanitized.RemoteURL)
	require.Equal(testInstance, "main", sanitized.BranchName)
	require.Equal(testInstance, "/tmp/service", sanitized.RepositoryPath)
	require.Equal(testInstance, "edits.yaml", sanitized.EditsPath)
	require.Empty(testInstance, sanitized.MessageTemplate)
	require.Equal(testInstance, "json", sanitized.OutputFormat)
	require.Equal(testInstance, 120, sanitized.PushTimeoutSeconds)
}
