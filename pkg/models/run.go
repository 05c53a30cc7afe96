package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type RunStatus string

const (
	PendingRunStatus   RunStatus = "pending"
	RunningRunStatus   RunStatus = "running"
	CompletedRunStatus RunStatus = "completed"
	FailedRunStatus    RunStatus = "failed"
	// CancelledRunStatus is modeled but no code path sets it; there is
	// no mechanism to abort a run once started.
	CancelledRunStatus RunStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state. A run never
// transitions out of a terminal status.
func (s RunStatus) IsTerminal() bool {
	return s == CompletedRunStatus || s == FailedRunStatus || s == CancelledRunStatus
}

// WorkflowRun is one execution attempt of a workflow.
type WorkflowRun struct {
	ID           string     `json:"id" db:"id"`
	WorkflowID   string     `json:"workflow_id" db:"workflow_id"`
	Status       RunStatus  `json:"status" db:"status"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	InputData    JSONMap    `json:"input_data,omitempty" db:"input_data"`
	OutputData   JSONMap    `json:"output_data,omitempty" db:"output_data"`
	ExecutionLog StepList   `json:"execution_log,omitempty" db:"execution_log"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// StepList is the append-only execution log stored as a JSONB array.
type StepList []ExecutionStep

func (l StepList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StepList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.Errorf("cannot scan %T into StepList", src)
	}
	return json.Unmarshal(b, l)
}
