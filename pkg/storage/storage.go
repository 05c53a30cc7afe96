package storage

import (
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations for adminflow.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Workflow operations
	SaveWorkflow(w models.Workflow) error
	GetWorkflow(id string) (models.Workflow, error)
	ListWorkflows(userID string) ([]models.Workflow, error)
	UpdateWorkflow(w models.Workflow) error
	DeleteWorkflow(id string) error
	// ListDueWorkflows returns active schedule-type workflows whose
	// next_run_at is set and not after now.
	ListDueWorkflows(now time.Time) ([]models.Workflow, error)

	// Declarative step operations
	SaveWorkflowStep(s models.WorkflowStep) error
	ListWorkflowSteps(workflowID string) ([]models.WorkflowStep, error)
	DeleteWorkflowSteps(workflowID string) error

	// Run operations
	SaveWorkflowRun(r models.WorkflowRun) error
	GetWorkflowRun(id string) (models.WorkflowRun, error)
	ListWorkflowRuns(workflowID string, limit int) ([]models.WorkflowRun, error)
	UpdateWorkflowRun(r models.WorkflowRun) error

	// Live step operations
	SaveLiveStep(s models.LiveStep) error
	ListLiveSteps(runID string) ([]models.LiveStep, error)

	// Trigger operations
	SaveTrigger(t models.WorkflowTrigger) error
	GetTrigger(id string) (models.WorkflowTrigger, error)
	GetTriggerByBrokerID(workflowID, brokerTriggerID string) (models.WorkflowTrigger, error)
	ListTriggers(workflowID string) ([]models.WorkflowTrigger, error)
	UpdateTrigger(t models.WorkflowTrigger) error
	DeleteTrigger(id string) error

	// Chat operations
	SaveChat(c models.Chat) error
	GetChat(id string) (models.Chat, error)
	ListChats(userID string) ([]models.Chat, error)
	UpdateChat(c models.Chat) error
	DeleteChat(id string) error
	SaveChatMessage(m models.ChatMessage) error
	ListChatMessages(chatID string) ([]models.ChatMessage, error)
}
