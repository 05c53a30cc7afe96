package service

import (
	"strings"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// defaultRunListLimit caps how many runs a single listing returns.
const defaultRunListLimit = 50

// WorkflowService manages workflow definitions and their run records.
// Execution itself lives in the Executor; this service owns the
// lifecycle state, including schedule arming via next_run_at.
type WorkflowService struct {
	store  storage.Store
	logger Logger
}

func NewWorkflowService(store storage.Store, logger Logger) *WorkflowService {
	return &WorkflowService{store: store, logger: logger}
}

// Create persists a new workflow together with its declarative steps.
// Workflows always start inactive.
func (s *WorkflowService) Create(w models.Workflow) (models.Workflow, error) {
	if strings.TrimSpace(w.Name) == "" {
		w.Name = DeriveTitle(w.Description)
	}
	if strings.TrimSpace(w.Name) == "" {
		return models.Workflow{}, errors.New("workflow name or description required")
	}
	if w.Type != models.ScheduleWorkflowType && w.Type != models.TriggerWorkflowType {
		return models.Workflow{}, errors.Errorf("invalid workflow type: %q", w.Type)
	}
	if w.UserID == "" {
		return models.Workflow{}, errors.New("user id required")
	}

	now := time.Now()
	w.ID = uuid.New().String()
	w.Active = false
	w.NextRunAt = nil
	w.CreatedAt = now
	w.UpdatedAt = now

	tx, err := s.store.Begin()
	if err != nil {
		return models.Workflow{}, err
	}
	if err := tx.SaveWorkflow(w); err != nil {
		_ = tx.Rollback()
		return models.Workflow{}, err
	}
	for i := range w.Steps {
		st := &w.Steps[i]
		st.ID = uuid.New().String()
		st.WorkflowID = w.ID
		if st.StepOrder == 0 {
			st.StepOrder = i + 1
		}
		st.CreatedAt = now
		st.UpdatedAt = now
		if err := tx.SaveWorkflowStep(*st); err != nil {
			_ = tx.Rollback()
			return models.Workflow{}, errors.Wrap(err, "saving workflow step")
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Workflow{}, err
	}

	s.logger.Infof("Created workflow %s (%s) for user %s", w.ID, w.Name, w.UserID)
	return w, nil
}

func (s *WorkflowService) Get(id string) (models.Workflow, error) {
	return s.store.GetWorkflow(id)
}

func (s *WorkflowService) List(userID string) ([]models.Workflow, error) {
	return s.store.ListWorkflows(userID)
}

// Update applies the mutable fields of in onto the stored workflow.
func (s *WorkflowService) Update(in models.Workflow) (models.Workflow, error) {
	wf, err := s.store.GetWorkflow(in.ID)
	if err != nil {
		return models.Workflow{}, err
	}
	if in.Name != "" {
		wf.Name = in.Name
	}
	if in.Description != "" {
		wf.Description = in.Description
	}
	if in.ScheduleConfig != nil {
		wf.ScheduleConfig = in.ScheduleConfig
	}
	if in.TriggerConfig != nil {
		wf.TriggerConfig = in.TriggerConfig
	}
	if in.Metadata != nil {
		wf.Metadata = in.Metadata
	}
	if err := s.store.UpdateWorkflow(wf); err != nil {
		return models.Workflow{}, err
	}
	return s.store.GetWorkflow(wf.ID)
}

func (s *WorkflowService) Delete(id string) error {
	return s.store.DeleteWorkflow(id)
}

// SetActive flips a workflow's active flag. Activating a schedule
// workflow arms it by computing next_run_at from its schedule config;
// deactivating disarms it.
func (s *WorkflowService) SetActive(id string, active bool) (models.Workflow, error) {
	wf, err := s.store.GetWorkflow(id)
	if err != nil {
		return models.Workflow{}, err
	}
	wf.Active = active
	if active && wf.Type == models.ScheduleWorkflowType {
		next := NextRunAt(wf.ScheduleConfig, time.Now())
		wf.NextRunAt = &next
	}
	if !active {
		wf.NextRunAt = nil
	}
	if err := s.store.UpdateWorkflow(wf); err != nil {
		return models.Workflow{}, err
	}
	if active {
		s.logger.Infof("Activated workflow %s", id)
	} else {
		s.logger.Infof("Deactivated workflow %s", id)
	}
	return wf, nil
}

// CreateRun records a new run for a workflow.
func (s *WorkflowService) CreateRun(workflowID string, status models.RunStatus, input models.JSONMap) (models.WorkflowRun, error) {
	now := time.Now()
	run := models.WorkflowRun{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     status,
		StartedAt:  now,
		InputData:  input,
		CreatedAt:  now,
	}
	if err := s.store.SaveWorkflowRun(run); err != nil {
		return models.WorkflowRun{}, err
	}
	return run, nil
}

func (s *WorkflowService) GetRun(id string) (models.WorkflowRun, error) {
	return s.store.GetWorkflowRun(id)
}

func (s *WorkflowService) GetRuns(workflowID string) ([]models.WorkflowRun, error) {
	return s.store.ListWorkflowRuns(workflowID, defaultRunListLimit)
}

// UpdateRun persists run progress. A run that already reached a
// terminal status is never updated again.
func (s *WorkflowService) UpdateRun(run models.WorkflowRun) error {
	current, err := s.store.GetWorkflowRun(run.ID)
	if err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return errors.Errorf("run %s already finished with status %s", run.ID, current.Status)
	}
	if run.Status.IsTerminal() && run.CompletedAt == nil {
		now := time.Now()
		run.CompletedAt = &now
	}
	return s.store.UpdateWorkflowRun(run)
}

// GetRunSteps returns the live steps recorded for a run, in order.
func (s *WorkflowService) GetRunSteps(runID string) ([]models.LiveStep, error) {
	if _, err := s.store.GetWorkflowRun(runID); err != nil {
		return nil, err
	}
	return s.store.ListLiveSteps(runID)
}

func (s *WorkflowService) ListDue(now time.Time) ([]models.Workflow, error) {
	return s.store.ListDueWorkflows(now)
}

// MarkRan stamps last_run_at after an execution attempt.
func (s *WorkflowService) MarkRan(id string, at time.Time) error {
	wf, err := s.store.GetWorkflow(id)
	if err != nil {
		return err
	}
	wf.LastRunAt = &at
	return s.store.UpdateWorkflow(wf)
}

// DeriveTitle builds a short display title from free-form text: the
// first four words, with an ellipsis when truncated.
func DeriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) <= 4 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:4], " ") + "..."
}

// NextRunAt computes the next fire time for a schedule config,
// strictly after now. Supported frequencies: daily at "time" HH:MM,
// weekly on "day_of_week" at "time", interval every "minutes". Any
// other config falls back to one hour from now.
func NextRunAt(cfg models.JSONMap, now time.Time) time.Time {
	switch cfg.String("frequency") {
	case "daily":
		hour, min := parseClock(cfg.String("time"))
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case "weekly":
		hour, min := parseClock(cfg.String("time"))
		day, ok := cfg.Int("day_of_week")
		if !ok {
			day = int(now.Weekday())
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
		offset := (day - int(now.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, offset)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	case "interval":
		if minutes, ok := cfg.Int("minutes"); ok && minutes > 0 {
			return now.Add(time.Duration(minutes) * time.Minute)
		}
	}
	return now.Add(time.Hour)
}

func parseClock(s string) (hour, min int) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 9, 0 // 09:00 default
	}
	return t.Hour(), t.Minute()
}
