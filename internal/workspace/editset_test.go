package workspace_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"repatch/internal/workspace"
)

func TestEditSetRejectsInvalidPaths(testInstance *testing.T) {
	testCases := []struct {
		name string
		path string
	}{
		{name: "empty_path", path: "   "},
		{name: "absolute_path", path: "/etc/passwd"},
		{name: "parent_traversal", path: "../outside.txt"},
		{name: "nested_parent_traversal", path: "nested/../../outside.txt"},
		{name: "current_directory", path: "."},
		{name: "volume_prefix", path: "C:\\repo\\file.txt"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			editSet := workspace.NewEditSet()
			registrationError := editSet.Put(testCase.path, "content")
			invalidPathError := workspace.InvalidPathError{}
			require.ErrorAs(testInstance, registrationError, &invalidPathError)
			require.Zero(testInstance, editSet.Len())
		})
	}
}

func TestEditSetRejectsDuplicatePaths(testInstance *testing.T) {
	editSet := workspace.NewEditSet()
	require.NoError(testInstance, editSet.Put("app/config.py", "DEBUG = False\n"))

	duplicateError := editSet.PutDeletion("app/config.py")
	expectedError := workspace.DuplicatePathError{}
	require.ErrorAs(testInstance, duplicateError, &expectedError)
	require.Equal(testInstance, "app/config.py", expectedError.Path)
}

func TestEditSetNormalizesAndSortsPaths(testInstance *testing.T) {
	editSet := workspace.NewEditSet()
	require.NoError(testInstance, editSet.Put("zeta/b.txt", "b"))
	require.NoError(testInstance, editSet.Put("./alpha/a.txt", "a"))
	require.NoError(testInstance, editSet.PutDeletion("middle.txt"))

	require.Equal(testInstance, []string{"alpha/a.txt", "middle.txt", "zeta/b.txt"}, editSet.SortedPaths())

	deletionEdit, exists := editSet.Lookup("middle.txt")
	require.True(testInstance, exists)
	require.True(testInstance, deletionEdit.Delete)

	contentEdit, exists := editSet.Lookup("alpha/a.txt")
	require.True(testInstance, exists)
	require.Equal(testInstance, "a", contentEdit.Content)
}
