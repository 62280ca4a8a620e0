package agent_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"repatch/internal/agent"
	"repatch/internal/workspace"
)

const (
	testRemoteURLConstant = "https://github.com/example/service.git"
	testBranchNameConstant = "main"
)

func testWorkspace(localPath string) workspace.Workspace {
	return workspace.Workspace{
		RemoteURL:  testRemoteURLConstant,
		BranchName: testBranchNameConstant,
		LocalPath:  localPath,
	}
}

func TestNewRepositoryOpenerRequiresRepositoryService(testInstance *testing.T) {
	_, creationError := agent.NewRepositoryOpener(nil, nil)
	require.ErrorIs(testInstance, creationError, agent.ErrRepositoryServiceNotConfigured)
}

func TestOpenOrCreateClonesMissingDirectory(testInstance *testing.T) {
	stub := &repositoryServiceStub{localBranchExistsResult: true}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := filepath.Join(testInstance.TempDir(), "clone-target")
	repositoryHandle, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})
	require.NoError(testInstance, openError)
	require.True(testInstance, repositoryHandle.Cloned)
	require.True(testInstance, stub.called("CloneRepository"))
	require.True(testInstance, stub.called("CheckoutBranch"))
}

func TestOpenOrCreateRetriesCloneOnce(testInstance *testing.T) {
	stub := &repositoryServiceStub{
		localBranchExistsResult: true,
		cloneResults:            []error{errors.New("connection reset"), nil},
	}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := filepath.Join(testInstance.TempDir(), "clone-target")
	repositoryHandle, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})
	require.NoError(testInstance, openError)
	require.True(testInstance, repositoryHandle.Cloned)
	require.Equal(testInstance, 2, stub.cloneIndex)
}

func TestOpenOrCreateReportsRemoteUnavailableAfterRetry(testInstance *testing.T) {
	stub := &repositoryServiceStub{
		cloneResults: []error{errors.New("connection reset"), errors.New("connection reset")},
	}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := filepath.Join(testInstance.TempDir(), "clone-target")
	_, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})

	remoteUnavailable := agent.RemoteUnavailableError{}
	require.ErrorAs(testInstance, openError, &remoteUnavailable)
	require.Equal(testInstance, testRemoteURLConstant, remoteUnavailable.Remote)
	require.Equal(testInstance, 2, remoteUnavailable.Attempts)
}

func TestOpenOrCreateRejectsFileAtLocalPath(testInstance *testing.T) {
	stub := &repositoryServiceStub{}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := filepath.Join(testInstance.TempDir(), "occupied")
	require.NoError(testInstance, os.WriteFile(localPath, []byte("not a directory"), 0o644))

	_, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})

	workspaceConflict := agent.WorkspaceConflictError{}
	require.ErrorAs(testInstance, openError, &workspaceConflict)
	require.Equal(testInstance, localPath, workspaceConflict.Path)
}

func TestOpenOrCreateRejectsNonRepositoryDirectory(testInstance *testing.T) {
	stub := &repositoryServiceStub{isRepositoryRootResult: false}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := populatedDirectory(testInstance)
	_, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})

	workspaceConflict := agent.WorkspaceConflictError{}
	require.ErrorAs(testInstance, openError, &workspaceConflict)
	require.False(testInstance, stub.called("CloneRepository"))
}

func TestOpenOrCreateRejectsForeignRemote(testInstance *testing.T) {
	stub := &repositoryServiceStub{
		isRepositoryRootResult: true,
		remoteURLResult:        "https://github.com/other/project.git",
	}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := populatedDirectory(testInstance)
	_, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})

	workspaceConflict := agent.WorkspaceConflictError{}
	require.ErrorAs(testInstance, openError, &workspaceConflict)
}

func TestOpenOrCreateAcceptsMatchingCloneAcrossProtocols(testInstance *testing.T) {
	stub := &repositoryServiceStub{
		isRepositoryRootResult:  true,
		remoteURLResult:         "git@github.com:example/service.git",
		localBranchExistsResult: true,
	}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := populatedDirectory(testInstance)
	repositoryHandle, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})
	require.NoError(testInstance, openError)
	require.False(testInstance, repositoryHandle.Cloned)
	require.False(testInstance, stub.called("CloneRepository"))
}

func TestOpenOrCreateFetchesRemoteBranch(testInstance *testing.T) {
	stub := &repositoryServiceStub{
		isRepositoryRootResult:   true,
		remoteURLResult:          testRemoteURLConstant,
		remoteBranchExistsResult: true,
	}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := populatedDirectory(testInstance)
	_, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})
	require.NoError(testInstance, openError)
	require.Equal(testInstance, 1, stub.fetchCallCount)
	require.True(testInstance, stub.called("CheckoutBranch"))
}

func TestOpenOrCreateReportsMissingBranch(testInstance *testing.T) {
	stub := &repositoryServiceStub{
		isRepositoryRootResult: true,
		remoteURLResult:        testRemoteURLConstant,
	}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := populatedDirectory(testInstance)
	_, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{})

	branchNotFound := agent.BranchNotFoundError{}
	require.ErrorAs(testInstance, openError, &branchNotFound)
	require.Equal(testInstance, testBranchNameConstant, branchNotFound.Branch)
}

func TestOpenOrCreateCreatesMissingBranchFromRemoteDefault(testInstance *testing.T) {
	stub := &repositoryServiceStub{
		isRepositoryRootResult: true,
		remoteURLResult:        testRemoteURLConstant,
		defaultBranchResult:    "trunk",
	}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	localPath := populatedDirectory(testInstance)
	repositoryHandle, openError := opener.OpenOrCreate(context.Background(), testWorkspace(localPath), agent.OpenOptions{CreateMissingBranch: true})
	require.NoError(testInstance, openError)
	require.True(testInstance, repositoryHandle.CreatedBranch)
	require.Equal(testInstance, testBranchNameConstant, stub.createBranchName)
	require.Equal(testInstance, "origin/trunk", stub.createStartPoint)
}

func TestOpenOrCreateValidatesDescriptor(testInstance *testing.T) {
	stub := &repositoryServiceStub{}
	opener, creationError := agent.NewRepositoryOpener(stub, nil)
	require.NoError(testInstance, creationError)

	_, openError := opener.OpenOrCreate(context.Background(), workspace.Workspace{}, agent.OpenOptions{})
	require.ErrorIs(testInstance, openError, workspace.ErrRemoteURLRequired)
}

func populatedDirectory(testInstance *testing.T) string {
	testInstance.Helper()

	localPath := filepath.Join(testInstance.TempDir(), "existing-clone")
	require.NoError(testInstance, os.MkdirAll(filepath.Join(localPath, ".git"), 0o755))
	return localPath
}
