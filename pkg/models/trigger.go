package models

import "time"

// WorkflowTrigger binds a trigger-type workflow to one external toolkit
// event on one connected account. BrokerTriggerID holds the broker's
// trigger-instance id once the trigger has been activated.
type WorkflowTrigger struct {
	ID                 string    `json:"id" db:"id"`
	WorkflowID         string    `json:"workflow_id" db:"workflow_id"`
	UserID             string    `json:"user_id" db:"user_id"`
	BrokerTriggerID    string    `json:"broker_trigger_id,omitempty" db:"broker_trigger_id"`
	ToolkitSlug        string    `json:"toolkit_slug" db:"toolkit_slug"`
	TriggerName        string    `json:"trigger_name" db:"trigger_name"`
	TriggerConfig      JSONMap   `json:"trigger_config,omitempty" db:"trigger_config"`
	ConnectedAccountID string    `json:"connected_account_id" db:"connected_account_id"`
	Active             bool      `json:"active" db:"active"`
	Metadata           JSONMap   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}
