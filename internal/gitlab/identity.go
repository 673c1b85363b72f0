package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/swpd-platform/glbridge/internal/logging"
)

// NotFoundError reports a project path that could not be resolved to a
// numeric identifier. The message carries remediation guidance rather than
// a bare failure.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("project not found: %q: verify the full namespace path, "+
		"that the token has read_api scope, and that the project is visible to the token's user", e.Path)
}

// ResolveProjectID maps a namespace path (group/project) to the project's
// numeric ID. It first attempts a direct lookup keyed by the percent-encoded
// path; if the host rejects that, it falls back to a name search and accepts
// only a candidate whose full path equals the requested path exactly. Name
// search alone is ambiguous when projects share a short name, so fuzzy
// matches are treated as non-matches.
func (c *Client) ResolveProjectID(ctx context.Context, projectPath string) (int, error) {
	direct, err := c.GetProject(ctx, projectPath)
	if err == nil && direct.ID > 0 {
		return direct.ID, nil
	}
	logging.Debug("Direct project lookup failed for %s, falling back to search: %v", projectPath, err)

	name := path.Base(projectPath)
	endpoint := "/api/v4/projects?search=" + url.QueryEscape(name) + "&per_page=100"

	var candidates []Project
	if err := c.invokeJSON(ctx, http.MethodGet, endpoint, nil, &candidates); err != nil {
		return 0, fmt.Errorf("project search failed for %q: %w", projectPath, err)
	}

	for _, candidate := range candidates {
		if candidate.PathWithNamespace == projectPath {
			return candidate.ID, nil
		}
	}

	return 0, &NotFoundError{Path: projectPath}
}
