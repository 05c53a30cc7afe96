package models

import "time"

type StepType string

const (
	AIGenerationStepType StepType = "ai_generation"
	ToolCallStepType     StepType = "tool_call"
	ToolResultStepType   StepType = "tool_result"
	ErrorStepType        StepType = "error"
	// CompletionStepType only appears on live steps, marking the end of
	// a run for real-time viewers.
	CompletionStepType StepType = "completion"
)

// ToolCallRecord captures a tool invocation requested by the model.
type ToolCallRecord struct {
	ToolCallID string  `json:"tool_call_id"`
	ToolName   string  `json:"tool_name"`
	Arguments  JSONMap `json:"arguments,omitempty"`
}

// ToolResultRecord captures the outcome of a tool invocation.
type ToolResultRecord struct {
	ToolCallID string      `json:"tool_call_id"`
	Result     interface{} `json:"result,omitempty"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
}

// ExecutionStep is one entry of a run's execution log. Sequence numbers
// start at 1 and are strictly increasing within a run.
type ExecutionStep struct {
	StepNumber int               `json:"step_number"`
	StepType   StepType          `json:"step_type"`
	Timestamp  time.Time         `json:"timestamp"`
	AIResponse string            `json:"ai_response,omitempty"`
	ToolCall   *ToolCallRecord   `json:"tool_call,omitempty"`
	ToolResult *ToolResultRecord `json:"tool_result,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   JSONMap           `json:"metadata,omitempty"`
}

// LiveStep mirrors a user-visible execution-log moment into its own row
// for real-time broadcast. Written once, never updated; keyed by run id
// plus step number.
type LiveStep struct {
	ID            string    `json:"id" db:"id"`
	WorkflowRunID string    `json:"workflow_run_id" db:"workflow_run_id"`
	StepNumber    int       `json:"step_number" db:"step_number"`
	StepType      StepType  `json:"step_type" db:"step_type"`
	Content       string    `json:"content,omitempty" db:"content"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	Metadata      JSONMap   `json:"metadata,omitempty" db:"metadata"`
}
