package tools

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swpd-platform/glbridge/internal/config"
	"github.com/swpd-platform/glbridge/internal/gitlab"
	"github.com/swpd-platform/glbridge/internal/search"
)

// stubClient records the project identifier each call received.
type stubClient struct {
	gitlab.GitLabClient

	lastProject string
	projectErr  error
}

func (s *stubClient) GetProject(_ context.Context, project string) (*gitlab.Project, error) {
	s.lastProject = project
	if s.projectErr != nil {
		return nil, s.projectErr
	}
	return &gitlab.Project{ID: 1, PathWithNamespace: project}, nil
}

func (s *stubClient) GetMergeRequest(_ context.Context, project string, _ int) (interface{}, error) {
	s.lastProject = project
	return map[string]interface{}{}, nil
}

func (s *stubClient) GetPipeline(_ context.Context, project string, pipelineID int) (interface{}, error) {
	s.lastProject = project
	return map[string]interface{}{"id": pipelineID, "status": "success"}, nil
}

func (s *stubClient) GetCommit(_ context.Context, project, sha string) (interface{}, error) {
	s.lastProject = project
	return map[string]interface{}{"id": sha}, nil
}

func newTestDispatcher(cfg *config.Config, client gitlab.GitLabClient) *Dispatcher {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.GitLab.ProjectID = 42
	}
	return NewDispatcher(cfg, client, search.NewSearcher(client))
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newTestDispatcher(nil, &stubClient{})

	_, err := d.Dispatch(context.Background(), "no-such-tool", nil)
	require.Error(t, err)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "no-such-tool", de.Tool)
	assert.Equal(t, `unknown tool: "no-such-tool"`, err.Error())
}

func TestDispatch_ErrorsScrubTheToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.GitLab.Token = "glpat-supersecret99"
	cfg.GitLab.ProjectID = 42

	client := &stubClient{
		projectErr: fmt.Errorf("401 Unauthorized (token glpat-supersecret99 rejected)"),
	}
	d := newTestDispatcher(cfg, client)

	_, err := d.Dispatch(context.Background(), "get-project", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "glpat-supersecret99")
	assert.Contains(t, err.Error(), config.MaskToken("glpat-supersecret99"))
	assert.Contains(t, err.Error(), "401 Unauthorized")
}

func TestDispatch_MissingRequiredArgument(t *testing.T) {
	d := newTestDispatcher(nil, &stubClient{})

	_, err := d.Dispatch(context.Background(), "get-merge-request", Args{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mr_iid")
}

func TestDispatch_ProjectDefaulting(t *testing.T) {
	t.Run("explicit argument wins", func(t *testing.T) {
		client := &stubClient{}
		d := newTestDispatcher(nil, client)

		_, err := d.Dispatch(context.Background(), "get-project", Args{"project": "group/other"})
		require.NoError(t, err)
		assert.Equal(t, "group/other", client.lastProject)
	})

	t.Run("falls back to configured id", func(t *testing.T) {
		client := &stubClient{}
		d := newTestDispatcher(nil, client)

		_, err := d.Dispatch(context.Background(), "get-project", nil)
		require.NoError(t, err)
		assert.Equal(t, "42", client.lastProject)
	})

	t.Run("falls back to configured path", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.GitLab.ProjectPath = "group/app"
		client := &stubClient{}
		d := newTestDispatcher(cfg, client)

		_, err := d.Dispatch(context.Background(), "get-project", nil)
		require.NoError(t, err)
		assert.Equal(t, "group/app", client.lastProject)
	})

	t.Run("nothing configured", func(t *testing.T) {
		d := newTestDispatcher(&config.Config{}, &stubClient{})

		_, err := d.Dispatch(context.Background(), "get-project", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "glbridge setup")
	})
}

func TestDispatch_PipelineAndCommitLookups(t *testing.T) {
	client := &stubClient{}
	d := newTestDispatcher(nil, client)

	result, err := d.Dispatch(context.Background(), "get-pipeline", Args{"pipeline_id": float64(88)})
	require.NoError(t, err)
	pipeline, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 88, pipeline["id"])

	result, err = d.Dispatch(context.Background(), "get-commit", Args{"sha": "abc123"})
	require.NoError(t, err)
	commit, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc123", commit["id"])

	_, err = d.Dispatch(context.Background(), "get-pipeline", Args{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline_id")

	_, err = d.Dispatch(context.Background(), "get-commit", Args{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sha")
}

func TestScoped_BlocksToolsOutsideAllowance(t *testing.T) {
	client := &stubClient{}
	d := newTestDispatcher(nil, client)

	caller := d.Scoped("get-project")

	_, err := caller.Dispatch(context.Background(), "get-project", nil)
	require.NoError(t, err)

	_, err = caller.Dispatch(context.Background(), "merge-merge-request", Args{"mr_iid": 1})
	require.Error(t, err)
	var de *DispatchError
	assert.ErrorAs(t, err, &de)
}

func TestList_SortedCatalogue(t *testing.T) {
	d := newTestDispatcher(nil, &stubClient{})

	catalogue := d.List()
	require.NotEmpty(t, catalogue)

	names := make([]string, 0, len(catalogue))
	for _, info := range catalogue {
		assert.NotEmpty(t, info.Description, "tool %s has no description", info.Name)
		names = append(names, info.Name)
	}
	assert.True(t, sort.StringsAreSorted(names))

	// The search trio and the MR surface are part of the fixed catalogue.
	assert.Contains(t, names, "find-paths")
	assert.Contains(t, names, "grep-contents")
	assert.Contains(t, names, "search-commits")
	assert.Contains(t, names, "get-merge-request-changes")
}

func TestArgs_IntToleratesJSONForms(t *testing.T) {
	args := Args{"a": float64(7), "b": 8, "c": "9", "d": "x"}

	assert.Equal(t, 7, args.Int("a", 0))
	assert.Equal(t, 8, args.Int("b", 0))
	assert.Equal(t, 9, args.Int("c", 0))
	assert.Equal(t, 5, args.Int("d", 5))
	assert.Equal(t, 5, args.Int("missing", 5))
}
