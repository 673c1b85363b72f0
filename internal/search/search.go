// Package search implements repository content search on top of a single
// recursive tree listing: glob path finding and grep-style content scanning.
package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/singleflight"

	"github.com/swpd-platform/glbridge/internal/gitlab"
	"github.com/swpd-platform/glbridge/internal/logging"
)

// binaryExtensions is the fixed denylist of file extensions grep never
// fetches content for.
var binaryExtensions = []string{
	".jpg", ".png", ".gif", ".pdf", ".zip", ".exe", ".bin", ".so",
}

// Match is one grep hit: the file, the line, the matched text, and optional
// surrounding context clipped to file bounds.
type Match struct {
	Path       string   `json:"file"`
	LineNumber int      `json:"line_number"`
	Line       string   `json:"line"`
	Matched    string   `json:"match"`
	Context    []string `json:"context,omitempty"`
}

// GrepOptions control a content scan.
type GrepOptions struct {
	Pattern         string
	FileFilter      string // Glob over file paths; empty means all files
	Ref             string
	CaseInsensitive bool
	ContextLines    int
	MaxFiles        int
}

// Searcher runs tree-based searches against one GitLab project.
type Searcher struct {
	client gitlab.GitLabClient
	trees  singleflight.Group
}

// NewSearcher creates a Searcher backed by the given client.
func NewSearcher(client gitlab.GitLabClient) *Searcher {
	return &Searcher{client: client}
}

// snapshot fetches the recursive tree listing for a ref. Concurrent calls
// for the same project and ref share one flight; the snapshot is immutable
// for the duration of a search call.
func (s *Searcher) snapshot(ctx context.Context, project, ref string) ([]gitlab.TreeEntry, error) {
	key := project + "@" + ref
	v, err, _ := s.trees.Do(key, func() (interface{}, error) {
		return s.client.GetRepositoryTree(ctx, project, ref)
	})
	if err != nil {
		return nil, err
	}
	return v.([]gitlab.TreeEntry), nil
}

// FindPaths returns file entries whose path matches the glob pattern, in
// tree order, capped at maxResults.
func (s *Searcher) FindPaths(ctx context.Context, project, pattern, ref string, maxResults int) ([]gitlab.TreeEntry, error) {
	if maxResults <= 0 {
		maxResults = 100
	}

	tree, err := s.snapshot(ctx, project, ref)
	if err != nil {
		return nil, err
	}

	matches := make([]gitlab.TreeEntry, 0)
	for _, entry := range tree {
		if !entry.IsFile() {
			continue
		}
		if !matchGlob(pattern, entry.Path) {
			continue
		}
		matches = append(matches, entry)
		if len(matches) >= maxResults {
			break
		}
	}
	return matches, nil
}

// GrepContents scans candidate file contents line by line for the pattern.
// Files are scanned in tree order; matches within a file are reported in
// ascending line order. A file that cannot be fetched or decoded is logged
// and skipped, never aborting the remaining scan.
func (s *Searcher) GrepContents(ctx context.Context, project string, opts GrepOptions) ([]Match, error) {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 50
	}

	tree, err := s.snapshot(ctx, project, opts.Ref)
	if err != nil {
		return nil, err
	}

	candidates := make([]gitlab.TreeEntry, 0)
	for _, entry := range tree {
		if !entry.IsFile() {
			continue
		}
		if opts.FileFilter != "" && !matchGlob(opts.FileFilter, entry.Path) {
			continue
		}
		if isBinaryPath(entry.Path) {
			continue
		}
		candidates = append(candidates, entry)
		if len(candidates) >= opts.MaxFiles {
			break
		}
	}

	re := compilePattern(opts.Pattern, opts.CaseInsensitive)

	matches := make([]Match, 0)
	for _, entry := range candidates {
		if ctx.Err() != nil {
			return matches, ctx.Err()
		}

		file, err := s.client.GetFile(ctx, project, entry.Path, opts.Ref)
		if err != nil {
			logging.Warn("Failed to search in %s, skipping: %v", entry.Path, err)
			continue
		}

		lines := strings.Split(file.Content, "\n")
		for i, line := range lines {
			loc := re.FindString(line)
			if loc == "" && !re.MatchString(line) {
				continue
			}

			m := Match{
				Path:       entry.Path,
				LineNumber: i + 1,
				Line:       strings.TrimSpace(line),
				Matched:    loc,
			}
			if opts.ContextLines > 0 {
				start := max(0, i-opts.ContextLines)
				end := min(len(lines), i+opts.ContextLines+1)
				m.Context = lines[start:end]
			}
			matches = append(matches, m)
		}
	}

	return matches, nil
}

// matchGlob matches a path against a glob pattern. A pattern without a path
// separator applies at any depth, so "*.py" finds nested files; patterns
// with separators or "**" keep their doublestar meaning.
func matchGlob(pattern, path string) bool {
	if ok, _ := doublestar.Match(pattern, path); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match("**/"+pattern, path)
		return ok
	}
	return false
}

// compilePattern compiles the search pattern as a regular expression. An
// invalid pattern is matched literally instead of erroring; grep must still
// succeed on inputs a user intends literally.
func compilePattern(pattern string, caseInsensitive bool) *regexp.Regexp {
	expr := pattern
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		expr = regexp.QuoteMeta(pattern)
		if caseInsensitive {
			expr = "(?i)" + expr
		}
		re = regexp.MustCompile(expr)
	}
	return re
}

func isBinaryPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Validate reports whether the grep options are usable.
func (o GrepOptions) Validate() error {
	if o.Pattern == "" {
		return fmt.Errorf("search pattern must not be empty")
	}
	return nil
}
