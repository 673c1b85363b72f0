// Package tools exposes the fixed catalogue of named operations the outside
// caller addresses: metadata reads, merge-request writes, and repository
// search. It routes, it never retries; retries belong to the GitLab client.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/swpd-platform/glbridge/internal/config"
	"github.com/swpd-platform/glbridge/internal/gitlab"
	"github.com/swpd-platform/glbridge/internal/search"
)

// DispatchError reports an operation name absent from the catalogue. This is
// a programmer error on the caller's side, not a transient condition.
type DispatchError struct {
	Tool string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Tool)
}

// ToolFunc handles one dispatched operation.
type ToolFunc func(ctx context.Context, args Args) (interface{}, error)

// ToolInfo describes one catalogue entry.
type ToolInfo struct {
	Name        string
	Description string
	handler     ToolFunc
}

// Caller is the dispatch surface handed to collaborators. Scoped views
// implement it too.
type Caller interface {
	Dispatch(ctx context.Context, name string, args Args) (interface{}, error)
}

// Dispatcher routes operation names to component methods through a static
// registry built at construction time.
type Dispatcher struct {
	cfg      *config.Config
	client   gitlab.GitLabClient
	searcher *search.Searcher
	tools    map[string]*ToolInfo
}

// NewDispatcher builds the catalogue.
func NewDispatcher(cfg *config.Config, client gitlab.GitLabClient, searcher *search.Searcher) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		client:   client,
		searcher: searcher,
		tools:    make(map[string]*ToolInfo),
	}
	d.registerBuiltInTools()
	return d
}

// Dispatch runs the named operation. Unknown names fail with DispatchError;
// every other error is flattened to a message with the credential scrubbed.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args Args) (interface{}, error) {
	info, ok := d.tools[name]
	if !ok {
		return nil, &DispatchError{Tool: name}
	}
	if args == nil {
		args = Args{}
	}

	result, err := info.handler(ctx, args)
	if err != nil {
		return nil, d.sanitize(err)
	}
	return result, nil
}

// List returns the catalogue sorted by name.
func (d *Dispatcher) List() []ToolInfo {
	out := make([]ToolInfo, 0, len(d.tools))
	for _, info := range d.tools {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Scoped returns a view restricted to the named tools. Operations outside
// the allowance fail with DispatchError.
func (d *Dispatcher) Scoped(names ...string) Caller {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return &scopedCaller{dispatcher: d, allowed: allowed}
}

type scopedCaller struct {
	dispatcher *Dispatcher
	allowed    map[string]bool
}

func (s *scopedCaller) Dispatch(ctx context.Context, name string, args Args) (interface{}, error) {
	if !s.allowed[name] {
		return nil, &DispatchError{Tool: name}
	}
	return s.dispatcher.Dispatch(ctx, name, args)
}

// sanitize converts an error into a human-readable message that never
// includes the credential token.
func (d *Dispatcher) sanitize(err error) error {
	msg := err.Error()
	if token := d.cfg.GitLab.Token; token != "" && strings.Contains(msg, token) {
		msg = strings.ReplaceAll(msg, token, config.MaskToken(token))
	}
	return fmt.Errorf("%s", msg)
}

// project resolves the project argument, defaulting to the configured
// project identity.
func (d *Dispatcher) project(args Args) (string, error) {
	if p := args.String("project", ""); p != "" {
		return p, nil
	}
	if d.cfg.HasProject() {
		return fmt.Sprintf("%d", d.cfg.GitLab.ProjectID), nil
	}
	if d.cfg.GitLab.ProjectPath != "" {
		return d.cfg.GitLab.ProjectPath, nil
	}
	return "", fmt.Errorf("no project configured: pass a 'project' argument or re-run 'glbridge setup'")
}

func (d *Dispatcher) register(name, description string, handler ToolFunc) {
	d.tools[name] = &ToolInfo{Name: name, Description: description, handler: handler}
}

func (d *Dispatcher) registerBuiltInTools() {
	d.register("get-project", "Get project metadata",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			return d.client.GetProject(ctx, project)
		})

	d.register("list-merge-requests", "List merge requests (state: opened, closed, merged, all)",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			return d.client.ListMergeRequests(ctx, project, args.String("state", "opened"), args.String("scope", "all"))
		})

	d.register("get-merge-request", "Get one merge request by IID",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			iid, err := args.RequireInt("mr_iid")
			if err != nil {
				return nil, err
			}
			return d.client.GetMergeRequest(ctx, project, iid)
		})

	d.register("create-merge-request", "Create a merge request",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			source, err := args.RequireString("source_branch")
			if err != nil {
				return nil, err
			}
			target, err := args.RequireString("target_branch")
			if err != nil {
				return nil, err
			}
			title, err := args.RequireString("title")
			if err != nil {
				return nil, err
			}
			return d.client.CreateMergeRequest(ctx, project, gitlab.CreateMROptions{
				SourceBranch:       source,
				TargetBranch:       target,
				Title:              title,
				Description:        args.String("description", ""),
				RemoveSourceBranch: args.Bool("remove_source_branch", false),
			})
		})

	d.register("approve-merge-request", "Approve a merge request",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			iid, err := args.RequireInt("mr_iid")
			if err != nil {
				return nil, err
			}
			return d.client.ApproveMergeRequest(ctx, project, iid)
		})

	d.register("merge-merge-request", "Merge a merge request",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			iid, err := args.RequireInt("mr_iid")
			if err != nil {
				return nil, err
			}
			return d.client.MergeMergeRequest(ctx, project, iid, gitlab.MergeMROptions{
				MergeCommitMessage:        args.String("merge_commit_message", ""),
				ShouldRemoveSourceBranch:  args.Bool("should_remove_source_branch", true),
				MergeWhenPipelineSucceeds: args.Bool("merge_when_pipeline_succeeds", false),
			})
		})

	d.register("add-merge-request-note", "Add a review comment to a merge request",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			iid, err := args.RequireInt("mr_iid")
			if err != nil {
				return nil, err
			}
			body, err := args.RequireString("body")
			if err != nil {
				return nil, err
			}
			return d.client.AddMergeRequestNote(ctx, project, iid, body)
		})

	d.register("get-merge-request-changes", "Get the changed-file set of a merge request",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			iid, err := args.RequireInt("mr_iid")
			if err != nil {
				return nil, err
			}
			return d.client.GetMergeRequestChanges(ctx, project, iid)
		})

	d.register("list-pipelines", "List pipelines, optionally by status and ref",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			return d.client.ListPipelines(ctx, project, args.String("status", ""), args.String("ref", ""))
		})

	d.register("get-pipeline", "Get one pipeline by ID",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			pipelineID, err := args.RequireInt("pipeline_id")
			if err != nil {
				return nil, err
			}
			return d.client.GetPipeline(ctx, project, pipelineID)
		})

	d.register("list-jobs", "List jobs for the project or one pipeline",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			return d.client.ListJobs(ctx, project, args.Int("pipeline_id", 0))
		})

	d.register("get-job-log", "Get the trace log of a job (plain text)",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			jobID, err := args.RequireInt("job_id")
			if err != nil {
				return nil, err
			}
			return d.client.GetJobLog(ctx, project, jobID)
		})

	d.register("list-branches", "List branches, optionally filtered by a search term",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			return d.client.ListBranches(ctx, project, args.String("search", ""))
		})

	d.register("list-commits", "List commits with optional ref and date bounds",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			return d.client.ListCommits(ctx, project, gitlab.CommitListOptions{
				RefName: args.String("ref_name", ""),
				Since:   args.String("since", ""),
				Until:   args.String("until", ""),
			})
		})

	d.register("get-commit", "Get one commit by SHA",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			sha, err := args.RequireString("sha")
			if err != nil {
				return nil, err
			}
			return d.client.GetCommit(ctx, project, sha)
		})

	d.register("get-file", "Get file content from the repository",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			filePath, err := args.RequireString("file_path")
			if err != nil {
				return nil, err
			}
			return d.client.GetFile(ctx, project, filePath, args.String("ref", "main"))
		})

	d.register("find-paths", "Find files matching a glob pattern (like find/ls)",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			pattern, err := args.RequireString("pattern")
			if err != nil {
				return nil, err
			}
			return d.searcher.FindPaths(ctx, project, pattern, args.String("ref", "main"), args.Int("max_results", 100))
		})

	d.register("grep-contents", "Search file contents for a pattern (like grep -r)",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			pattern, err := args.RequireString("pattern")
			if err != nil {
				return nil, err
			}
			opts := search.GrepOptions{
				Pattern:         pattern,
				FileFilter:      args.String("file_filter", ""),
				Ref:             args.String("ref", "main"),
				CaseInsensitive: args.Bool("case_insensitive", false),
				ContextLines:    args.Int("context_lines", 0),
				MaxFiles:        args.Int("max_files", 50),
			}
			if err := opts.Validate(); err != nil {
				return nil, err
			}
			return d.searcher.GrepContents(ctx, project, opts)
		})

	d.register("search-commits", "Search commits like git log --grep",
		func(ctx context.Context, args Args) (interface{}, error) {
			project, err := d.project(args)
			if err != nil {
				return nil, err
			}
			return d.searcher.SearchCommits(ctx, project, search.CommitSearchOptions{
				Grep:   args.String("grep", ""),
				Author: args.String("author", ""),
				Ref:    args.String("ref_name", ""),
				Since:  args.String("since", ""),
				Until:  args.String("until", ""),
				Limit:  args.Int("limit", 20),
			})
		})
}
