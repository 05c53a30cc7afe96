package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/live"
	"github.com/Aaditya-brrt/adminflow/pkg/llm"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/google/uuid"
)

// Run-source markers recorded in a run's input_data under
// "triggered_by".
const (
	TriggeredByManual   = "manual"
	TriggeredBySchedule = "schedule"
	TriggeredByWebhook  = "webhook"
)

// SessionRunner drives one multi-step model session.
type SessionRunner interface {
	RunSession(ctx context.Context, req llm.SessionRequest) (*llm.SessionResult, error)
}

// ExecutionResult is the outcome of one workflow execution attempt.
// Execution failures land here rather than in an error return; the
// caller always gets a result to report.
type ExecutionResult struct {
	Success       bool          `json:"success"`
	Output        string        `json:"output,omitempty"`
	ToolCallCount int           `json:"tool_call_count"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	RunID         string        `json:"run_id,omitempty"`
}

// Executor runs workflows: it resolves the user's tools, drives the
// model session against the workflow description, records the
// execution log and mirrors progress to live viewers.
type Executor struct {
	store       storage.Store
	workflows   *WorkflowService
	broker      Broker
	llm         SessionRunner
	broadcaster live.Broadcaster
	logger      Logger

	maxAttempts int
	retryWait   time.Duration
	maxSteps    int
}

// ExecutorOption tunes executor behavior.
type ExecutorOption func(*Executor)

// WithRetryWait overrides the base wait between retry attempts.
func WithRetryWait(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.retryWait = d }
}

// WithMaxAttempts overrides how many times a session is attempted.
func WithMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func NewExecutor(store storage.Store, workflows *WorkflowService, b Broker, runner SessionRunner, broadcaster live.Broadcaster, logger Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:       store,
		workflows:   workflows,
		broker:      b,
		llm:         runner,
		broadcaster: broadcaster,
		logger:      logger,
		maxAttempts: 3,
		retryWait:   time.Second,
		maxSteps:    5,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteWorkflow runs a workflow from scratch, creating its run row.
// triggeredBy records how the run came about; it defaults to manual.
func (e *Executor) ExecuteWorkflow(ctx context.Context, workflowID, userID, triggeredBy string) (*ExecutionResult, error) {
	start := time.Now()
	if triggeredBy == "" {
		triggeredBy = TriggeredByManual
	}

	wf, err := e.store.GetWorkflow(workflowID)
	if err != nil {
		return e.fail(start, "", fmt.Sprintf("workflow %s not found: %v", workflowID, err)), nil
	}
	if userID == "" {
		userID = wf.UserID
	}
	if !wf.Active {
		run := e.recordFailedRun(wf.ID, "workflow is not active")
		return e.fail(start, run, "workflow is not active"), nil
	}

	run, err := e.workflows.CreateRun(wf.ID, models.RunningRunStatus, models.JSONMap{"triggered_by": triggeredBy})
	if err != nil {
		return e.fail(start, "", fmt.Sprintf("failed to create run: %v", err)), nil
	}

	return e.run(ctx, wf, run, userID, start), nil
}

// ExecuteWorkflowRun runs a workflow against an existing run row, the
// webhook path having already recorded the trigger payload on it.
func (e *Executor) ExecuteWorkflowRun(ctx context.Context, workflowID, userID string, run models.WorkflowRun) (*ExecutionResult, error) {
	start := time.Now()

	wf, err := e.store.GetWorkflow(workflowID)
	if err != nil {
		return e.fail(start, run.ID, fmt.Sprintf("workflow %s not found: %v", workflowID, err)), nil
	}
	if userID == "" {
		userID = wf.UserID
	}

	run.Status = models.RunningRunStatus
	if err := e.store.UpdateWorkflowRun(run); err != nil {
		e.logger.Errorf("Failed to mark run %s running: %v", run.ID, err)
	}

	return e.run(ctx, wf, run, userID, start), nil
}

func (e *Executor) run(ctx context.Context, wf models.Workflow, run models.WorkflowRun, userID string, start time.Time) *ExecutionResult {
	e.logger.Infof("Executing workflow %s (%s), run %s", wf.ID, wf.Name, run.ID)
	e.publishStatus(ctx, run.ID, models.RunningRunStatus)

	steps := newStepLog(e.store, e.broadcaster, e.logger, run.ID)

	defs, toolkits, err := resolveTools(ctx, e.broker, userID, stepToolkits(wf))
	if err != nil {
		return e.finalize(ctx, wf, run, steps, start, nil, fmt.Sprintf("failed to resolve tools: %v", err))
	}

	req := llm.SessionRequest{
		System:   workflowSystemPrompt(wf, toolkits, e.maxSteps),
		Messages: []llm.Message{{Role: "user", Content: workflowPrompt(wf, run.InputData)}},
		Tools:    defs,
		Runner:   brokerToolRunner(e.broker, userID),
		MaxSteps: e.maxSteps,
		OnStepFinish: func(info llm.StepInfo) {
			recordStep(ctx, steps, info)
		},
	}

	var res *llm.SessionResult
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		res, lastErr = e.llm.RunSession(ctx, req)
		if lastErr == nil {
			break
		}
		steps.AddError(ctx, fmt.Sprintf("Attempt %d/%d failed: %v", attempt, e.maxAttempts, lastErr))
		e.logger.Warnf("Workflow %s run %s attempt %d failed: %v", wf.ID, run.ID, attempt, lastErr)
		if attempt < e.maxAttempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = e.maxAttempts
			case <-time.After(time.Duration(attempt) * e.retryWait):
			}
		}
	}

	if lastErr != nil {
		return e.finalize(ctx, wf, run, steps, start, nil, lastErr.Error())
	}
	return e.finalize(ctx, wf, run, steps, start, res, "")
}

func (e *Executor) finalize(ctx context.Context, wf models.Workflow, run models.WorkflowRun, steps *stepLog, start time.Time, res *llm.SessionResult, errMsg string) *ExecutionResult {
	now := time.Now()
	run.CompletedAt = &now
	run.ExecutionLog = steps.Steps()

	result := &ExecutionResult{RunID: run.ID, ExecutionTime: time.Since(start)}
	if errMsg == "" {
		run.Status = models.CompletedRunStatus
		run.OutputData = models.JSONMap{
			"response":   res.Text,
			"tool_calls": toolCallSummaries(res.ToolCalls),
		}
		steps.AddCompletion(ctx, "Workflow completed")
		result.Success = true
		result.Output = res.Text
		result.ToolCallCount = len(res.ToolCalls)
	} else {
		run.Status = models.FailedRunStatus
		run.ErrorMessage = errMsg
		result.Error = errMsg
	}

	if err := e.store.UpdateWorkflowRun(run); err != nil {
		e.logger.Errorf("Failed to persist run %s: %v", run.ID, err)
	}
	if err := e.workflows.MarkRan(wf.ID, now); err != nil {
		e.logger.Errorf("Failed to stamp last run for workflow %s: %v", wf.ID, err)
	}
	e.publishStatus(ctx, run.ID, run.Status)
	e.logger.Infof("Workflow %s run %s finished with status %s in %s", wf.ID, run.ID, run.Status, result.ExecutionTime)
	return result
}

// fail builds a failure result for errors that happen before a run is
// underway.
func (e *Executor) fail(start time.Time, runID, msg string) *ExecutionResult {
	e.logger.Errorf("Workflow execution failed: %s", msg)
	return &ExecutionResult{
		Error:         msg,
		ExecutionTime: time.Since(start),
		RunID:         runID,
	}
}

// recordFailedRun writes a synthetic failed run so early failures stay
// visible in the run history.
func (e *Executor) recordFailedRun(workflowID, msg string) string {
	now := time.Now()
	run := models.WorkflowRun{
		ID:           uuid.New().String(),
		WorkflowID:   workflowID,
		Status:       models.FailedRunStatus,
		StartedAt:    now,
		CompletedAt:  &now,
		ErrorMessage: msg,
		CreatedAt:    now,
	}
	if err := e.store.SaveWorkflowRun(run); err != nil {
		e.logger.Errorf("Failed to record failed run for workflow %s: %v", workflowID, err)
		return ""
	}
	return run.ID
}

func (e *Executor) publishStatus(ctx context.Context, runID string, status models.RunStatus) {
	if e.broadcaster == nil {
		return
	}
	ev := live.Event{Type: live.StatusUpdateEvent, RunID: runID, Status: status}
	if err := e.broadcaster.Publish(ctx, ev); err != nil {
		e.logger.Errorf("Failed to broadcast status for run %s: %v", runID, err)
	}
}

// recordStep mirrors one session round into the execution log.
func recordStep(ctx context.Context, steps *stepLog, info llm.StepInfo) {
	if info.Text != "" {
		steps.AddGeneration(ctx, info.Text)
	}
	results := map[string]llm.ToolCallResult{}
	for _, res := range info.ToolResults {
		results[res.ID] = res
	}
	for _, call := range info.ToolCalls {
		steps.AddToolCall(ctx, call.ID, call.Name, models.JSONMap(call.Arguments))
		if res, ok := results[call.ID]; ok {
			errMsg := ""
			if res.Err != nil {
				errMsg = res.Err.Error()
			}
			steps.AddToolResult(ctx, res.ID, res.Result, errMsg)
		}
	}
}

// stepToolkits collects the toolkit slugs referenced by a workflow's
// declarative steps.
func stepToolkits(wf models.Workflow) []string {
	var slugs []string
	for _, st := range wf.Steps {
		if st.Service != "" {
			slugs = append(slugs, st.Service)
		}
	}
	return slugs
}

func workflowSystemPrompt(wf models.Workflow, toolkits []string, maxSteps int) string {
	var b strings.Builder
	b.WriteString("You are an automation agent executing the workflow \"")
	b.WriteString(wf.Name)
	b.WriteString("\".\n")
	if len(toolkits) > 0 {
		b.WriteString("Available toolkits: " + strings.Join(toolkits, ", ") + ".\n")
	}
	b.WriteString("Use the composio toolkit to look up and plan tool usage, then execute through the user's connected toolkits.\n")
	fmt.Fprintf(&b, "You have at most %d steps; be decisive and avoid redundant tool calls.\n", maxSteps)
	b.WriteString("Narrate each action you take so the execution log reads as an audit trail.\n")
	b.WriteString("If the workflow cannot be completed, say exactly what is missing instead of guessing.\n")
	b.WriteString("When the work is done, reply with a concise summary of what was accomplished.")
	return b.String()
}

func workflowPrompt(wf models.Workflow, input models.JSONMap) string {
	var b strings.Builder
	b.WriteString(wf.Description)
	if wf.Type == models.ScheduleWorkflowType {
		b.WriteString("\n\n")
		b.WriteString(scheduleContext(wf.ScheduleConfig))
	}
	if len(wf.Steps) > 0 {
		b.WriteString("\n\nPlanned steps:\n")
		for _, st := range wf.Steps {
			fmt.Fprintf(&b, "%d. [%s] %s %s", st.StepOrder, st.Type, st.Service, st.Action)
			if st.Description != "" {
				b.WriteString(" - " + st.Description)
			}
			b.WriteString("\n")
		}
	}
	if payloadKeys(input) {
		b.WriteString("\nTrigger payload:\n")
		for k, v := range input {
			if k == "triggered_by" {
				continue
			}
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}
	return b.String()
}

// payloadKeys reports whether the run input carries anything beyond the
// triggered_by marker.
func payloadKeys(input models.JSONMap) bool {
	for k := range input {
		if k != "triggered_by" {
			return true
		}
	}
	return false
}

// scheduleContext phrases the schedule so the model knows this is a
// recurring run firing now.
func scheduleContext(cfg models.JSONMap) string {
	switch cfg.String("frequency") {
	case "daily":
		hour, min := parseClock(cfg.String("time"))
		return fmt.Sprintf("This workflow runs daily at %02d:%02d. Execute it now.", hour, min)
	case "weekly":
		hour, min := parseClock(cfg.String("time"))
		if day, ok := cfg.Int("day_of_week"); ok {
			return fmt.Sprintf("This workflow runs weekly on %s at %02d:%02d. Execute it now.",
				time.Weekday(day%7), hour, min)
		}
		return fmt.Sprintf("This workflow runs weekly at %02d:%02d. Execute it now.", hour, min)
	case "interval":
		if minutes, ok := cfg.Int("minutes"); ok && minutes > 0 {
			return fmt.Sprintf("This workflow runs every %d minutes. Execute it now.", minutes)
		}
	}
	return "This workflow runs on a schedule. Execute it now."
}
