// Package review runs independent analysis tasks over one merge request's
// change set in parallel and synthesizes their results, tolerating partial
// failure.
package review

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/swpd-platform/glbridge/internal/gitlab"
	"github.com/swpd-platform/glbridge/internal/logging"
	"github.com/swpd-platform/glbridge/internal/tools"
)

// State is the orchestrator's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateDispatching
	StateAwaitingAll
	StateSynthesizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingAll:
		return "awaiting_all"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Task result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Overall report statuses.
const (
	ReportSuccess = "success"
	ReportPartial = "partial"
	ReportFailed  = "failed"
)

// AnalysisFunc is the opaque analysis capability invoked once per task. It
// receives the task definition, the shared read-only change set, and a tool
// caller scoped to the task's declared allowance.
type AnalysisFunc func(ctx context.Context, task Task, changes *gitlab.ChangeSet, caller tools.Caller) (string, error)

// TaskResult is the terminal outcome of one dispatched task.
type TaskResult struct {
	Task    string `json:"task"`
	Status  string `json:"status"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SynthesisReport aggregates every dispatched task's result. It always holds
// one entry per task; failed tasks are never silently dropped.
type SynthesisReport struct {
	Status   string       `json:"status"`
	MRIID    int          `json:"mr_iid"`
	Results  []TaskResult `json:"results"`
	Failures []string     `json:"failures"`
}

// Orchestrator fans analysis tasks out over a change set and joins their
// results.
type Orchestrator struct {
	client     gitlab.GitLabClient
	dispatcher *tools.Dispatcher
	analyze    AnalysisFunc
	tasks      []Task
	state      atomic.Int32
}

// NewOrchestrator wires an orchestrator over the given client, dispatcher
// and analysis capability. An empty task list falls back to the built-in
// catalogue.
func NewOrchestrator(client gitlab.GitLabClient, dispatcher *tools.Dispatcher, analyze AnalysisFunc, taskList []Task) *Orchestrator {
	if len(taskList) == 0 {
		taskList = DefaultTasks()
	}
	return &Orchestrator{
		client:     client,
		dispatcher: dispatcher,
		analyze:    analyze,
		tasks:      taskList,
	}
}

// State reports the current lifecycle position.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Run executes one fan-out/fan-in review of the merge request. The change
// set is fetched once and shared read-only by every task; tasks share no
// other state and cannot observe each other. The join waits for the slowest
// task, and a failed task contributes an explicit failure entry instead of
// aborting the others. Cancellation skips tasks not yet dispatched and is
// reflected as failure entries without corrupting collected results.
func (o *Orchestrator) Run(ctx context.Context, project string, mrIID int) (*SynthesisReport, error) {
	if o.analyze == nil {
		return nil, fmt.Errorf("no analysis capability configured: set REVIEW_AGENT_ENDPOINT")
	}

	o.setState(StateDispatching)
	defer o.setState(StateDone)

	changes, err := o.client.GetMergeRequestChanges(ctx, project, mrIID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch MR %d changes: %w", mrIID, err)
	}

	logging.Info("Dispatching %d analysis tasks for MR %d (%d changed files)",
		len(o.tasks), mrIID, len(changes.Changes))

	// One slot per task, indexed by task position. Each goroutine writes
	// only its own slot, so no further synchronization is needed past the
	// join.
	results := make([]TaskResult, len(o.tasks))

	var g errgroup.Group
	for i, task := range o.tasks {
		if ctx.Err() != nil {
			results[i] = TaskResult{
				Task:   task.Name,
				Status: StatusFailed,
				Error:  fmt.Sprintf("not dispatched: %v", ctx.Err()),
			}
			continue
		}

		i, task := i, task
		g.Go(func() error {
			caller := o.dispatcher.Scoped(task.Tools...)
			payload, err := o.analyze(ctx, task, changes, caller)
			if err != nil {
				logging.Warn("Analysis task %s failed for MR %d: %v", task.Name, mrIID, err)
				results[i] = TaskResult{Task: task.Name, Status: StatusFailed, Error: err.Error()}
				return nil
			}
			results[i] = TaskResult{Task: task.Name, Status: StatusSuccess, Payload: payload}
			return nil
		})
	}

	o.setState(StateAwaitingAll)
	_ = g.Wait()

	o.setState(StateSynthesizing)
	report := synthesize(mrIID, results)

	logging.Info("Review of MR %d complete: %s (%d/%d tasks succeeded)",
		mrIID, report.Status, len(results)-len(report.Failures), len(results))
	return report, nil
}

// synthesize merges per-task results into the report. Every dispatched task
// appears exactly once.
func synthesize(mrIID int, results []TaskResult) *SynthesisReport {
	report := &SynthesisReport{
		MRIID:    mrIID,
		Results:  results,
		Failures: make([]string, 0),
	}

	for _, r := range results {
		if r.Status != StatusSuccess {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %s", r.Task, r.Error))
		}
	}

	switch len(report.Failures) {
	case 0:
		report.Status = ReportSuccess
	case len(results):
		report.Status = ReportFailed
	default:
		report.Status = ReportPartial
	}
	return report
}
