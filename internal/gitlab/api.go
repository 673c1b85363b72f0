package gitlab

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetProject fetches project details. project is a numeric ID or a full
// namespace path.
func (c *Client) GetProject(ctx context.Context, project string) (*Project, error) {
	var p Project
	endpoint := "/api/v4/projects/" + projectSegment(project)
	if err := c.invokeJSON(ctx, http.MethodGet, endpoint, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListMergeRequests lists merge requests for a project. The raw API payload
// is returned so the caller decides which fields to surface.
func (c *Client) ListMergeRequests(ctx context.Context, project, state, scope string) (interface{}, error) {
	if state == "" {
		state = "opened"
	}
	if scope == "" {
		scope = "all"
	}
	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests?state=%s&scope=%s",
		projectSegment(project), url.QueryEscape(state), url.QueryEscape(scope))
	return c.Invoke(ctx, http.MethodGet, endpoint, nil)
}

// GetMergeRequest fetches a specific merge request.
func (c *Client) GetMergeRequest(ctx context.Context, project string, mrIID int) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d", projectSegment(project), mrIID)
	return c.Invoke(ctx, http.MethodGet, endpoint, nil)
}

// CreateMergeRequest opens a new merge request.
func (c *Client) CreateMergeRequest(ctx context.Context, project string, opts CreateMROptions) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests", projectSegment(project))
	data := map[string]interface{}{
		"source_branch":                    opts.SourceBranch,
		"target_branch":                    opts.TargetBranch,
		"title":                            opts.Title,
		"remove_source_branch_after_merge": opts.RemoveSourceBranch,
	}
	if opts.Description != "" {
		data["description"] = opts.Description
	}
	return c.Invoke(ctx, http.MethodPost, endpoint, data)
}

// ApproveMergeRequest approves a merge request.
func (c *Client) ApproveMergeRequest(ctx context.Context, project string, mrIID int) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/approve", projectSegment(project), mrIID)
	return c.Invoke(ctx, http.MethodPost, endpoint, nil)
}

// MergeMergeRequest merges a merge request.
func (c *Client) MergeMergeRequest(ctx context.Context, project string, mrIID int, opts MergeMROptions) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/merge", projectSegment(project), mrIID)
	data := map[string]interface{}{
		"should_remove_source_branch":  opts.ShouldRemoveSourceBranch,
		"merge_when_pipeline_succeeds": opts.MergeWhenPipelineSucceeds,
	}
	if opts.MergeCommitMessage != "" {
		data["merge_commit_message"] = opts.MergeCommitMessage
	}
	return c.Invoke(ctx, http.MethodPut, endpoint, data)
}

// AddMergeRequestNote adds a comment to a merge request.
func (c *Client) AddMergeRequestNote(ctx context.Context, project string, mrIID int, body string) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/notes", projectSegment(project), mrIID)
	return c.Invoke(ctx, http.MethodPost, endpoint, map[string]string{"body": body})
}

// GetMergeRequestChanges fetches the changed-file set of a merge request.
func (c *Client) GetMergeRequestChanges(ctx context.Context, project string, mrIID int) (*ChangeSet, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%d/changes", projectSegment(project), mrIID)
	var cs ChangeSet
	if err := c.invokeJSON(ctx, http.MethodGet, endpoint, nil, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// ListPipelines lists pipelines for a project, optionally filtered by status
// and ref.
func (c *Client) ListPipelines(ctx context.Context, project, status, ref string) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/pipelines?per_page=20", projectSegment(project))
	if status != "" {
		endpoint += "&status=" + url.QueryEscape(status)
	}
	if ref != "" {
		endpoint += "&ref=" + url.QueryEscape(ref)
	}
	return c.Invoke(ctx, http.MethodGet, endpoint, nil)
}

// GetPipeline fetches a specific pipeline.
func (c *Client) GetPipeline(ctx context.Context, project string, pipelineID int) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/pipelines/%d", projectSegment(project), pipelineID)
	return c.Invoke(ctx, http.MethodGet, endpoint, nil)
}

// ListJobs lists jobs for a project, or for one pipeline when pipelineID is
// non-zero.
func (c *Client) ListJobs(ctx context.Context, project string, pipelineID int) (interface{}, error) {
	var endpoint string
	if pipelineID > 0 {
		endpoint = fmt.Sprintf("/api/v4/projects/%s/pipelines/%d/jobs", projectSegment(project), pipelineID)
	} else {
		endpoint = fmt.Sprintf("/api/v4/projects/%s/jobs", projectSegment(project))
	}
	return c.Invoke(ctx, http.MethodGet, endpoint, nil)
}

// GetJobLog fetches the trace of a job. Traces are plain text, not JSON.
func (c *Client) GetJobLog(ctx context.Context, project string, jobID int) (string, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/jobs/%d/trace", projectSegment(project), jobID)
	resp, err := c.invoke(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// ListBranches lists branches, optionally filtered by a search term.
func (c *Client) ListBranches(ctx context.Context, project, search string) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/repository/branches", projectSegment(project))
	if search != "" {
		endpoint += "?search=" + url.QueryEscape(search)
	}
	return c.Invoke(ctx, http.MethodGet, endpoint, nil)
}

// ListCommits lists commits for a project with optional ref and date bounds.
func (c *Client) ListCommits(ctx context.Context, project string, opts CommitListOptions) ([]Commit, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/repository/commits?per_page=100", projectSegment(project))
	if opts.RefName != "" {
		endpoint += "&ref_name=" + url.QueryEscape(opts.RefName)
	}
	if opts.Since != "" {
		endpoint += "&since=" + url.QueryEscape(opts.Since)
	}
	if opts.Until != "" {
		endpoint += "&until=" + url.QueryEscape(opts.Until)
	}
	var commits []Commit
	if err := c.invokeJSON(ctx, http.MethodGet, endpoint, nil, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// GetCommit fetches a single commit by SHA.
func (c *Client) GetCommit(ctx context.Context, project, sha string) (interface{}, error) {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/repository/commits/%s",
		projectSegment(project), url.PathEscape(sha))
	return c.Invoke(ctx, http.MethodGet, endpoint, nil)
}

// GetFile fetches file content from the repository at the given ref. Base64
// payloads are decoded before returning.
func (c *Client) GetFile(ctx context.Context, project, filePath, ref string) (*FileContent, error) {
	if ref == "" {
		ref = "main"
	}
	endpoint := fmt.Sprintf("/api/v4/projects/%s/repository/files/%s?ref=%s",
		projectSegment(project), url.PathEscape(filePath), url.QueryEscape(ref))

	var fc FileContent
	if err := c.invokeJSON(ctx, http.MethodGet, endpoint, nil, &fc); err != nil {
		return nil, err
	}

	if fc.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(fc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content of %s: %w", filePath, err)
		}
		fc.Content = decodeText(decoded)
	}

	return &fc, nil
}

// GetRepositoryTree fetches the full recursive tree listing for a ref,
// following pagination so the snapshot covers the whole repository.
func (c *Client) GetRepositoryTree(ctx context.Context, project, ref string) ([]TreeEntry, error) {
	if ref == "" {
		ref = "main"
	}
	endpoint := fmt.Sprintf("/api/v4/projects/%s/repository/tree?recursive=true&per_page=100&ref=%s",
		projectSegment(project), url.QueryEscape(ref))

	var entries []TreeEntry
	err := c.invokePaginated(ctx, endpoint, func(page []byte) error {
		var batch []TreeEntry
		if err := json.Unmarshal(page, &batch); err != nil {
			return fmt.Errorf("failed to decode tree page: %w", err)
		}
		entries = append(entries, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
