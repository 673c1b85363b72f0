package gitlab

import "context"

// GitLabClient is an interface for GitLab API operations
// This interface allows for easy mocking in tests
type GitLabClient interface {
	// Generic invocation (classified JSON-or-text result)
	Invoke(ctx context.Context, method, endpoint string, body interface{}) (interface{}, error)

	// Identity
	ResolveProjectID(ctx context.Context, projectPath string) (int, error)

	// Project operations
	GetProject(ctx context.Context, project string) (*Project, error)

	// Merge request operations
	ListMergeRequests(ctx context.Context, project, state, scope string) (interface{}, error)
	GetMergeRequest(ctx context.Context, project string, mrIID int) (interface{}, error)
	CreateMergeRequest(ctx context.Context, project string, opts CreateMROptions) (interface{}, error)
	ApproveMergeRequest(ctx context.Context, project string, mrIID int) (interface{}, error)
	MergeMergeRequest(ctx context.Context, project string, mrIID int, opts MergeMROptions) (interface{}, error)
	AddMergeRequestNote(ctx context.Context, project string, mrIID int, body string) (interface{}, error)
	GetMergeRequestChanges(ctx context.Context, project string, mrIID int) (*ChangeSet, error)

	// Pipeline and job operations
	ListPipelines(ctx context.Context, project, status, ref string) (interface{}, error)
	GetPipeline(ctx context.Context, project string, pipelineID int) (interface{}, error)
	ListJobs(ctx context.Context, project string, pipelineID int) (interface{}, error)
	GetJobLog(ctx context.Context, project string, jobID int) (string, error)

	// Repository operations
	ListBranches(ctx context.Context, project, search string) (interface{}, error)
	ListCommits(ctx context.Context, project string, opts CommitListOptions) ([]Commit, error)
	GetCommit(ctx context.Context, project, sha string) (interface{}, error)
	GetFile(ctx context.Context, project, filePath, ref string) (*FileContent, error)
	GetRepositoryTree(ctx context.Context, project, ref string) ([]TreeEntry, error)
}

// Verify that Client implements GitLabClient interface
var _ GitLabClient = (*Client)(nil)
