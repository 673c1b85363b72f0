package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swpd-platform/glbridge/internal/config"
	"github.com/swpd-platform/glbridge/internal/gitlab"
	"github.com/swpd-platform/glbridge/internal/review"
	"github.com/swpd-platform/glbridge/internal/search"
	"github.com/swpd-platform/glbridge/internal/tools"
)

type stubClient struct {
	gitlab.GitLabClient
}

func (s *stubClient) GetProject(_ context.Context, project string) (*gitlab.Project, error) {
	return &gitlab.Project{ID: 42, Name: "app", PathWithNamespace: project}, nil
}

func (s *stubClient) GetMergeRequestChanges(context.Context, string, int) (*gitlab.ChangeSet, error) {
	return &gitlab.ChangeSet{MRIID: 7, Changes: []gitlab.FileChange{{NewPath: "a.py"}}}, nil
}

func newTestServer(t *testing.T, withOrchestrator bool) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.GitLab.ProjectID = 42
	cfg.GitLab.ProjectPath = "group/app"
	cfg.GitLab.Token = "glpat-1234567890abcd"

	client := &stubClient{}
	dispatcher := tools.NewDispatcher(cfg, client, search.NewSearcher(client))

	var orchestrator *review.Orchestrator
	if withOrchestrator {
		analyze := func(_ context.Context, task review.Task, _ *gitlab.ChangeSet, _ tools.Caller) (string, error) {
			return "findings for " + task.Name, nil
		}
		orchestrator = review.NewOrchestrator(client, dispatcher, analyze, nil)
	}

	return New(cfg, dispatcher, orchestrator)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "group/app", body["project"])
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, false)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	entries, ok := body["tools"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, entries)
}

func TestDispatch_Success(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/tools/get-project", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), result["id"])
}

func TestDispatch_UnknownToolIs404(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/tools/no-such-tool", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "unknown tool")
	_, hasResult := body["result"]
	assert.False(t, hasResult)
}

func TestDispatch_MalformedBodyIs400(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/tools/get-project", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReview_RunsAndReportsPerTask(t *testing.T) {
	s := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(`{"mr_iid": 7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(7), body["mr_iid"])
	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, results, 3)
}

func TestReview_RequiresMRIID(t *testing.T) {
	s := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "mr_iid")
}

func TestReview_UnavailableWithoutOrchestrator(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(`{"mr_iid": 7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
