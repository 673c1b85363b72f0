package e2e

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/swpd-platform/glbridge/internal/gitlab"
)

// Verify that MockGitLabClient implements GitLabClient interface
var _ gitlab.GitLabClient = (*MockGitLabClient)(nil)

// MockGitLabClient implements a mock GitLab client for E2E testing.
// It reads files from the filesystem instead of making HTTP calls: the
// before/ directory stands in for the target branch, after/ for the source
// branch.
type MockGitLabClient struct {
	beforeDir string
	afterDir  string

	sourceBranch string
	targetBranch string

	mrIID   int
	mrTitle string

	commits []gitlab.Commit

	// Captured interactions for validation
	CapturedNotes []CapturedNote
	FetchedFiles  []string
}

// CapturedNote is a review comment that would have been posted to GitLab.
type CapturedNote struct {
	Project string
	MRIID   int
	Body    string
}

// NewMockGitLabClient creates a mock backed by the given before/ and after/
// directories.
func NewMockGitLabClient(beforeDir, afterDir string) *MockGitLabClient {
	return &MockGitLabClient{
		beforeDir:     beforeDir,
		afterDir:      afterDir,
		sourceBranch:  "feature/test",
		targetBranch:  "main",
		mrIID:         123,
		CapturedNotes: []CapturedNote{},
		FetchedFiles:  []string{},
	}
}

// SetMR sets the merge request identity this mock serves.
func (m *MockGitLabClient) SetMR(iid int, title, sourceBranch, targetBranch string) {
	m.mrIID = iid
	m.mrTitle = title
	m.sourceBranch = sourceBranch
	m.targetBranch = targetBranch
}

// SetCommits sets the history returned by ListCommits.
func (m *MockGitLabClient) SetCommits(commits []gitlab.Commit) {
	m.commits = commits
}

// dirFor maps a ref to the backing directory. The target branch reads from
// before/, everything else from after/.
func (m *MockGitLabClient) dirFor(ref string) string {
	if ref == m.targetBranch {
		return m.beforeDir
	}
	return m.afterDir
}

func (m *MockGitLabClient) Invoke(context.Context, string, string, interface{}) (interface{}, error) {
	return map[string]interface{}{}, nil
}

func (m *MockGitLabClient) ResolveProjectID(context.Context, string) (int, error) {
	return 456, nil
}

func (m *MockGitLabClient) GetProject(_ context.Context, project string) (*gitlab.Project, error) {
	return &gitlab.Project{
		ID:                456,
		Name:              "test-project",
		PathWithNamespace: project,
		DefaultBranch:     m.targetBranch,
	}, nil
}

func (m *MockGitLabClient) ListMergeRequests(context.Context, string, string, string) (interface{}, error) {
	return []interface{}{m.mrMap()}, nil
}

func (m *MockGitLabClient) GetMergeRequest(context.Context, string, int) (interface{}, error) {
	return m.mrMap(), nil
}

func (m *MockGitLabClient) mrMap() map[string]interface{} {
	return map[string]interface{}{
		"iid":           m.mrIID,
		"title":         m.mrTitle,
		"source_branch": m.sourceBranch,
		"target_branch": m.targetBranch,
		"state":         "opened",
	}
}

func (m *MockGitLabClient) CreateMergeRequest(context.Context, string, gitlab.CreateMROptions) (interface{}, error) {
	return m.mrMap(), nil
}

func (m *MockGitLabClient) ApproveMergeRequest(context.Context, string, int) (interface{}, error) {
	return map[string]interface{}{"approved": true}, nil
}

func (m *MockGitLabClient) MergeMergeRequest(context.Context, string, int, gitlab.MergeMROptions) (interface{}, error) {
	return map[string]interface{}{"state": "merged"}, nil
}

// AddMergeRequestNote captures the note instead of posting it.
func (m *MockGitLabClient) AddMergeRequestNote(_ context.Context, project string, mrIID int, body string) (interface{}, error) {
	m.CapturedNotes = append(m.CapturedNotes, CapturedNote{Project: project, MRIID: mrIID, Body: body})
	return map[string]interface{}{"body": body}, nil
}

// GetMergeRequestChanges derives the change set by comparing before/ and
// after/ on every call, the way the real endpoint reflects branch state.
func (m *MockGitLabClient) GetMergeRequestChanges(context.Context, string, int) (*gitlab.ChangeSet, error) {
	changes, err := CompareFolders(m.beforeDir, m.afterDir)
	if err != nil {
		return nil, err
	}
	return &gitlab.ChangeSet{
		MRIID:        m.mrIID,
		Title:        m.mrTitle,
		SourceBranch: m.sourceBranch,
		TargetBranch: m.targetBranch,
		Changes:      changes,
	}, nil
}

func (m *MockGitLabClient) ListPipelines(context.Context, string, string, string) (interface{}, error) {
	return []interface{}{}, nil
}

func (m *MockGitLabClient) GetPipeline(context.Context, string, int) (interface{}, error) {
	return map[string]interface{}{"status": "success"}, nil
}

func (m *MockGitLabClient) ListJobs(context.Context, string, int) (interface{}, error) {
	return []interface{}{}, nil
}

func (m *MockGitLabClient) GetJobLog(context.Context, string, int) (string, error) {
	return "", nil
}

func (m *MockGitLabClient) ListBranches(context.Context, string, string) (interface{}, error) {
	return []interface{}{
		map[string]interface{}{"name": m.targetBranch, "default": true},
		map[string]interface{}{"name": m.sourceBranch, "default": false},
	}, nil
}

func (m *MockGitLabClient) ListCommits(context.Context, string, gitlab.CommitListOptions) ([]gitlab.Commit, error) {
	return m.commits, nil
}

func (m *MockGitLabClient) GetCommit(_ context.Context, _ string, sha string) (interface{}, error) {
	for _, c := range m.commits {
		if c.ID == sha {
			return c, nil
		}
	}
	return nil, fmt.Errorf("commit not found: %s", sha)
}

// GetFile reads file content from the directory the ref maps to.
func (m *MockGitLabClient) GetFile(_ context.Context, _ string, filePath, ref string) (*gitlab.FileContent, error) {
	m.FetchedFiles = append(m.FetchedFiles, filePath)

	fullPath := filepath.Join(m.dirFor(ref), filePath)
	content, err := os.ReadFile(fullPath) // #nosec G304 - reading test fixture files
	if err != nil {
		return nil, fmt.Errorf("file not found: %s (ref: %s)", filePath, ref)
	}

	return &gitlab.FileContent{
		FileName: filepath.Base(filePath),
		FilePath: filePath,
		Content:  string(content),
		Ref:      ref,
	}, nil
}

// GetRepositoryTree walks the directory the ref maps to and lists it the way
// the recursive tree endpoint would.
func (m *MockGitLabClient) GetRepositoryTree(_ context.Context, _ string, ref string) ([]gitlab.TreeEntry, error) {
	root := m.dirFor(ref)

	var entries []gitlab.TreeEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		entryType := "blob"
		if d.IsDir() {
			entryType = "tree"
		}
		entries = append(entries, gitlab.TreeEntry{
			Name: d.Name(),
			Path: filepath.ToSlash(rel),
			Type: entryType,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ValidateFileWasFetched checks if a specific file was fetched.
func (m *MockGitLabClient) ValidateFileWasFetched(filePath string) bool {
	for _, fetched := range m.FetchedFiles {
		if fetched == filePath {
			return true
		}
	}
	return false
}

// Reset clears all captured data.
func (m *MockGitLabClient) Reset() {
	m.CapturedNotes = []CapturedNote{}
	m.FetchedFiles = []string{}
}

// CompareFolders diffs two directory trees and produces the file-change list
// the MR changes endpoint would report, with unified diffs.
func CompareFolders(beforeDir, afterDir string) ([]gitlab.FileChange, error) {
	beforeFiles, err := listFiles(beforeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read before dir: %w", err)
	}
	afterFiles, err := listFiles(afterDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read after dir: %w", err)
	}

	paths := make(map[string]bool, len(beforeFiles)+len(afterFiles))
	for p := range beforeFiles {
		paths[p] = true
	}
	for p := range afterFiles {
		paths[p] = true
	}

	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var changes []gitlab.FileChange
	for _, p := range ordered {
		before, inBefore := beforeFiles[p]
		after, inAfter := afterFiles[p]

		switch {
		case inBefore && !inAfter:
			diff, err := unifiedDiff(p, before, "")
			if err != nil {
				return nil, err
			}
			changes = append(changes, gitlab.FileChange{
				OldPath: p, NewPath: p, DeletedFile: true, Diff: diff,
			})
		case !inBefore && inAfter:
			diff, err := unifiedDiff(p, "", after)
			if err != nil {
				return nil, err
			}
			changes = append(changes, gitlab.FileChange{
				OldPath: p, NewPath: p, NewFile: true, Diff: diff,
			})
		case before != after:
			diff, err := unifiedDiff(p, before, after)
			if err != nil {
				return nil, err
			}
			changes = append(changes, gitlab.FileChange{
				OldPath: p, NewPath: p, Diff: diff,
			})
		}
	}
	return changes, nil
}

func listFiles(root string) (map[string]string, error) {
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(path) // #nosec G304 - reading test fixture files
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func unifiedDiff(path, before, after string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
}
