package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/swpd-platform/glbridge/internal/gitlab"
)

// CommitSearchOptions filter a commit search.
type CommitSearchOptions struct {
	Grep   string // Regex over commit messages; invalid patterns match literally
	Author string // Case-insensitive substring of author name or email
	Ref    string
	Since  string
	Until  string
	Limit  int
}

// SearchCommits filters the project's commit log like git log --grep. The
// listing is scanned up to three times the requested limit before filtering
// to bound API load while leaving headroom for filtered-out commits.
func (s *Searcher) SearchCommits(ctx context.Context, project string, opts CommitSearchOptions) ([]gitlab.Commit, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	commits, err := s.client.ListCommits(ctx, project, gitlab.CommitListOptions{
		RefName: opts.Ref,
		Since:   opts.Since,
		Until:   opts.Until,
	})
	if err != nil {
		return nil, err
	}

	var grep *regexp.Regexp
	if opts.Grep != "" {
		grep = compilePattern(opts.Grep, true)
	}

	window := opts.Limit * 3
	if window > len(commits) {
		window = len(commits)
	}

	filtered := make([]gitlab.Commit, 0, opts.Limit)
	for _, commit := range commits[:window] {
		if grep != nil && !grep.MatchString(commit.Message) {
			continue
		}
		if opts.Author != "" && !authorMatches(commit, opts.Author) {
			continue
		}
		filtered = append(filtered, commit)
		if len(filtered) >= opts.Limit {
			break
		}
	}

	return filtered, nil
}

func authorMatches(commit gitlab.Commit, author string) bool {
	needle := strings.ToLower(author)
	return strings.Contains(strings.ToLower(commit.AuthorName), needle) ||
		strings.Contains(strings.ToLower(commit.AuthorEmail), needle)
}
