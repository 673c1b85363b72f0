package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/swpd-platform/glbridge/internal/gitlab"
	"github.com/swpd-platform/glbridge/internal/tools"
)

// AgentClient adapts a remote analysis agent (an HTTP service wrapping the
// AI reviewer) to the AnalysisFunc contract. The agent receives the task
// instruction and the change set; its internal reasoning is not this
// package's concern.
type AgentClient struct {
	endpoint string
	http     *http.Client
}

// NewAgentClient creates an adapter for the agent at endpoint.
func NewAgentClient(endpoint string) *AgentClient {
	return &AgentClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

type agentRequest struct {
	Task        string            `json:"task"`
	Instruction string            `json:"instruction"`
	Tools       []string          `json:"tools"`
	ChangeSet   *gitlab.ChangeSet `json:"change_set"`
}

type agentResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Analyze satisfies AnalysisFunc. The scoped tool caller is not forwarded
// over the wire; the agent calls back through the tool surface itself.
func (a *AgentClient) Analyze(ctx context.Context, task Task, changes *gitlab.ChangeSet, _ tools.Caller) (string, error) {
	payload, err := json.Marshal(agentRequest{
		Task:        task.Name,
		Instruction: task.Instruction,
		Tools:       task.Tools,
		ChangeSet:   changes,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read agent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	var out agentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		// Plain-text agents are acceptable; take the body verbatim.
		return string(body), nil
	}
	if out.Error != "" {
		return "", fmt.Errorf("agent task %s failed: %s", task.Name, out.Error)
	}
	return out.Result, nil
}
