package service

import (
	"context"
	"sync"
	"time"
)

// WorkflowRunner is the slice of the executor the scheduler needs.
type WorkflowRunner interface {
	ExecuteWorkflow(ctx context.Context, workflowID, userID, triggeredBy string) (*ExecutionResult, error)
}

// SchedulerStatus is a snapshot of the scheduler state.
type SchedulerStatus struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
}

// Scheduler periodically finds due schedule workflows and executes
// them sequentially. It is constructed and owned by the composition
// root; Start and Stop are idempotent and safe for concurrent use.
type Scheduler struct {
	workflows *WorkflowService
	executor  WorkflowRunner
	logger    Logger
	interval  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(workflows *WorkflowService, executor WorkflowRunner, logger Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		workflows: workflows,
		executor:  executor,
		logger:    logger,
		interval:  interval,
	}
}

// Start launches the scheduling loop. The first pass runs immediately;
// subsequent passes follow the configured interval. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.logger.Infof("Scheduler started with interval %s", s.interval)

	go s.loop(loopCtx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.runPass(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// Stop halts the loop and waits for an in-flight pass to finish.
// Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Infof("Scheduler stopped")
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{Running: s.running, Interval: s.interval}
}

// runPass executes every due workflow in order, then re-arms each by
// recomputing its next fire time. A workflow whose execution fails is
// still re-armed; only a missing workflow falls out of the rotation.
func (s *Scheduler) runPass(ctx context.Context) {
	due, err := s.workflows.ListDue(time.Now())
	if err != nil {
		s.logger.Errorf("Scheduler failed to list due workflows: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Infof("Scheduler found %d due workflow(s)", len(due))

	for _, wf := range due {
		if ctx.Err() != nil {
			return
		}
		result, err := s.executor.ExecuteWorkflow(ctx, wf.ID, wf.UserID, TriggeredBySchedule)
		if err != nil {
			s.logger.Errorf("Scheduled execution of workflow %s errored: %v", wf.ID, err)
		} else if !result.Success {
			s.logger.Warnf("Scheduled execution of workflow %s failed: %s", wf.ID, result.Error)
		}

		if _, err := s.workflows.SetActive(wf.ID, true); err != nil {
			s.logger.Errorf("Failed to re-arm workflow %s: %v", wf.ID, err)
		}
	}
}
