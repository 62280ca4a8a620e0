package agent_test

import (
	"context"

	"repatch/internal/gitrepo"
)

// repositoryServiceStub scripts the git capability surface for pipeline tests.
// Result slices are consumed per call; an exhausted slice yields the zero value.
type repositoryServiceStub struct {
	callSequence []string

	isRepositoryRootResult  bool
	remoteURLResult         string
	localBranchExistsResult bool
	remoteBranchExistsResult bool
	defaultBranchResult     string
	hasStagedChangesResult  bool
	headRevisionResult      string

	worktreeStatusResults []gitrepo.WorktreeStatus
	worktreeStatusIndex   int
	cloneResults          []error
	cloneIndex            int
	pushResults           []error
	pushIndex             int
	checkoutError         error

	stagedPaths       []string
	createBranchName  string
	createStartPoint  string
	fetchCallCount    int
	stageAllCallCount int
}

func (stub *repositoryServiceStub) record(callName string) {
	stub.callSequence = append(stub.callSequence, callName)
}

func (stub *repositoryServiceStub) IsRepositoryRoot(_ context.Context, _ string) (bool, error) {
	stub.record("IsRepositoryRoot")
	return stub.isRepositoryRootResult, nil
}

func (stub *repositoryServiceStub) CloneRepository(_ context.Context, _ string, _ string) error {
	stub.record("CloneRepository")
	if stub.cloneIndex < len(stub.cloneResults) {
		cloneResult := stub.cloneResults[stub.cloneIndex]
		stub.cloneIndex++
		return cloneResult
	}
	return nil
}

func (stub *repositoryServiceStub) FetchRemote(_ context.Context, _ string, _ string) error {
	stub.record("FetchRemote")
	stub.fetchCallCount++
	return nil
}

func (stub *repositoryServiceStub) CheckoutBranch(_ context.Context, _ string, _ string) error {
	stub.record("CheckoutBranch")
	return stub.checkoutError
}

func (stub *repositoryServiceStub) CreateBranch(_ context.Context, _ string, branchName string, startPoint string) error {
	stub.record("CreateBranch")
	stub.createBranchName = branchName
	stub.createStartPoint = startPoint
	return nil
}

func (stub *repositoryServiceStub) LocalBranchExists(_ context.Context, _ string, _ string) (bool, error) {
	stub.record("LocalBranchExists")
	return stub.localBranchExistsResult, nil
}

func (stub *repositoryServiceStub) RemoteBranchExists(_ context.Context, _ string, _ string, _ string) (bool, error) {
	stub.record("RemoteBranchExists")
	return stub.remoteBranchExistsResult, nil
}

func (stub *repositoryServiceStub) DefaultRemoteBranch(_ context.Context, _ string, _ string) (string, error) {
	stub.record("DefaultRemoteBranch")
	return stub.defaultBranchResult, nil
}

func (stub *repositoryServiceStub) WorktreeStatus(_ context.Context, _ string) (gitrepo.WorktreeStatus, error) {
	stub.record("WorktreeStatus")
	if stub.worktreeStatusIndex < len(stub.worktreeStatusResults) {
		statusResult := stub.worktreeStatusResults[stub.worktreeStatusIndex]
		stub.worktreeStatusIndex++
		return statusResult, nil
	}
	return gitrepo.WorktreeStatus{}, nil
}

func (stub *repositoryServiceStub) GetRemoteURL(_ context.Context, _ string, _ string) (string, error) {
	stub.record("GetRemoteURL")
	return stub.remoteURLResult, nil
}

func (stub *repositoryServiceStub) StagePaths(_ context.Context, _ string, paths []string) error {
	stub.record("StagePaths")
	stub.stagedPaths = append([]string{}, paths...)
	return nil
}

func (stub *repositoryServiceStub) StageAllChanges(_ context.Context, _ string) error {
	stub.record("StageAllChanges")
	stub.stageAllCallCount++
	return nil
}

func (stub *repositoryServiceStub) HasStagedChanges(_ context.Context, _ string) (bool, error) {
	stub.record("HasStagedChanges")
	return stub.hasStagedChangesResult, nil
}

func (stub *repositoryServiceStub) CreateCommit(_ context.Context, _ string, _ string) error {
	stub.record("CreateCommit")
	return nil
}

func (stub *repositoryServiceStub) HeadRevision(_ context.Context, _ string) (string, error) {
	stub.record("HeadRevision")
	return stub.headRevisionResult, nil
}

func (stub *repositoryServiceStub) PushBranch(_ context.Context, _ string, _ string, _ string) error {
	stub.record("PushBranch")
	if stub.pushIndex < len(stub.pushResults) {
		pushResult := stub.pushResults[stub.pushIndex]
		stub.pushIndex++
		return pushResult
	}
	return nil
}

func (stub *repositoryServiceStub) called(callName string) bool {
	for _, recordedCall := range stub.callSequence {
		if recordedCall == callName {
			return true
		}
	}
	return false
}
