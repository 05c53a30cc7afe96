package models

import "time"

type WorkflowType string

const (
	ScheduleWorkflowType WorkflowType = "schedule"
	TriggerWorkflowType  WorkflowType = "trigger"
)

// Workflow is a user-defined automation whose body is a natural-language
// description executed by the model with tool access.
type Workflow struct {
	ID             string         `json:"id" db:"id"`
	UserID         string         `json:"user_id" db:"user_id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description,omitempty" db:"description"` // doubles as the prompt body
	Type           WorkflowType   `json:"type" db:"type"`
	Active         bool           `json:"active" db:"active"`
	ScheduleConfig JSONMap        `json:"schedule_config,omitempty" db:"schedule_config"`
	TriggerConfig  JSONMap        `json:"trigger_config,omitempty" db:"trigger_config"`
	Metadata       JSONMap        `json:"metadata,omitempty" db:"metadata"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty" db:"last_run_at"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty" db:"next_run_at"` // schedule type only
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
	Steps          []WorkflowStep `json:"steps,omitempty" db:"-"` // populated at read time
}

type WorkflowStepType string

const (
	TriggerStepType WorkflowStepType = "trigger"
	ActionStepType  WorkflowStepType = "action"
)

// WorkflowStep is a declarative, informational descriptor shown to the
// model as plan context. Steps are never executed individually.
type WorkflowStep struct {
	ID          string           `json:"id" db:"id"`
	WorkflowID  string           `json:"workflow_id" db:"workflow_id"`
	StepOrder   int              `json:"step_order" db:"step_order"`
	Type        WorkflowStepType `json:"type" db:"type"`
	Service     string           `json:"service" db:"service"`
	Action      string           `json:"action" db:"action"`
	Description string           `json:"description,omitempty" db:"description"`
	Config      JSONMap          `json:"config,omitempty" db:"config"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}
