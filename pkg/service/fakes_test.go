package service_test

import (
	"context"
	"sync"

	"github.com/Aaditya-brrt/adminflow/pkg/broker"
	"github.com/Aaditya-brrt/adminflow/pkg/llm"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/service"
	"github.com/pkg/errors"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{})  {}
func (l logger) Warnf(format string, args ...interface{})  {}
func (l logger) Errorf(format string, args ...interface{}) {}

// fakeBroker satisfies service.Broker with canned data.
type fakeBroker struct {
	mu              sync.Mutex
	accounts        []broker.ConnectedAccount
	tools           []broker.Tool
	toolkitsSeen    []string
	ranTools        []string
	runToolErr      error
	createdTriggers int
	deletedTriggers []string
}

func (f *fakeBroker) ListToolkits(ctx context.Context) ([]broker.Toolkit, error) {
	return []broker.Toolkit{{Slug: "gmail", Name: "Gmail"}}, nil
}

func (f *fakeBroker) ListConnectedAccounts(ctx context.Context, userID string) ([]broker.ConnectedAccount, error) {
	if f.accounts != nil {
		return f.accounts, nil
	}
	return []broker.ConnectedAccount{{ID: "acc-1", ToolkitSlug: "gmail", Status: "ACTIVE"}}, nil
}

func (f *fakeBroker) GetTools(ctx context.Context, userID string, toolkits []string, limit int) ([]broker.Tool, error) {
	f.mu.Lock()
	f.toolkitsSeen = append([]string(nil), toolkits...)
	f.mu.Unlock()
	return f.tools, nil
}

func (f *fakeBroker) seenToolkits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.toolkitsSeen...)
}

func (f *fakeBroker) RunTool(ctx context.Context, userID, toolSlug string, args map[string]interface{}) (map[string]interface{}, error) {
	f.mu.Lock()
	f.ranTools = append(f.ranTools, toolSlug)
	f.mu.Unlock()
	if f.runToolErr != nil {
		return nil, f.runToolErr
	}
	return map[string]interface{}{"ok": true}, nil
}

func (f *fakeBroker) ListTriggerTypes(ctx context.Context, toolkitSlug string) ([]broker.TriggerType, error) {
	return []broker.TriggerType{{Slug: "GMAIL_NEW_GMAIL_MESSAGE", Name: "New message"}}, nil
}

func (f *fakeBroker) CreateTrigger(ctx context.Context, userID, triggerSlug, connectedAccountID string, config map[string]interface{}) (broker.TriggerInstance, error) {
	f.mu.Lock()
	f.createdTriggers++
	f.mu.Unlock()
	return broker.TriggerInstance{ID: "bt-1", Status: "active"}, nil
}

func (f *fakeBroker) DeleteTrigger(ctx context.Context, triggerID string) error {
	f.mu.Lock()
	f.deletedTriggers = append(f.deletedTriggers, triggerID)
	f.mu.Unlock()
	return nil
}

// fakeRunner fails the first `failures` sessions, then succeeds feeding
// the configured steps through OnStepFinish.
type fakeRunner struct {
	mu       sync.Mutex
	failures int
	calls    int
	text     string
	steps    []llm.StepInfo
	lastReq  llm.SessionRequest
}

func (f *fakeRunner) RunSession(ctx context.Context, req llm.SessionRequest) (*llm.SessionResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.lastReq = req
	f.mu.Unlock()
	if n <= f.failures {
		return nil, errors.New("model unavailable")
	}
	res := &llm.SessionResult{Text: f.text, Steps: f.steps}
	for _, step := range f.steps {
		if req.OnStepFinish != nil {
			req.OnStepFinish(step)
		}
		res.ToolCalls = append(res.ToolCalls, step.ToolCalls...)
	}
	return res, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRunner) lastRequest() llm.SessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// fakeExecutor satisfies the runner interfaces the scheduler and the
// webhook path depend on.
type fakeExecutor struct {
	mu       sync.Mutex
	executed []string
	sources  []string
	runs     []models.WorkflowRun
	signal   chan string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{signal: make(chan string, 16)}
}

func (f *fakeExecutor) ExecuteWorkflow(ctx context.Context, workflowID, userID, triggeredBy string) (*service.ExecutionResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, workflowID)
	f.sources = append(f.sources, triggeredBy)
	f.mu.Unlock()
	f.signal <- workflowID
	return &service.ExecutionResult{Success: true, RunID: "run-" + workflowID}, nil
}

func (f *fakeExecutor) ExecuteWorkflowRun(ctx context.Context, workflowID, userID string, run models.WorkflowRun) (*service.ExecutionResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, workflowID)
	f.runs = append(f.runs, run)
	f.mu.Unlock()
	f.signal <- workflowID
	return &service.ExecutionResult{Success: true, RunID: run.ID}, nil
}

func (f *fakeExecutor) executedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

func (f *fakeExecutor) executedSources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}
