package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveWorkflow inserts a workflow row (declarative steps are saved separately)
func (s *PostgresStore) SaveWorkflow(w models.Workflow) error {
	_, err := s.db.Exec(`
		INSERT INTO workflows (id, user_id, name, description, type, active, schedule_config, trigger_config, metadata, last_run_at, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		w.ID, w.UserID, w.Name, w.Description, w.Type, w.Active, w.ScheduleConfig, w.TriggerConfig, w.Metadata, w.LastRunAt, w.NextRunAt, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID, including its declarative steps
func (s *PostgresStore) GetWorkflow(id string) (models.Workflow, error) {
	var wf models.Workflow
	err := s.db.Get(&wf, "SELECT * FROM workflows WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, err
	}

	err = s.db.Select(&wf.Steps, "SELECT * FROM workflow_steps WHERE workflow_id = $1 ORDER BY step_order", id)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("get workflow %s: %w", id, err)
	}

	return wf, nil
}

func (s *PostgresStore) ListWorkflows(userID string) ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	if userID == "" {
		err := s.db.Select(&workflows, "SELECT * FROM workflows ORDER BY created_at DESC")
		return workflows, err
	}
	err := s.db.Select(&workflows, "SELECT * FROM workflows WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *PostgresStore) UpdateWorkflow(w models.Workflow) error {
	res, err := s.db.Exec(`
		UPDATE workflows
		SET name = $1, description = $2, type = $3, active = $4, schedule_config = $5, trigger_config = $6,
		    metadata = $7, last_run_at = $8, next_run_at = $9, updated_at = CURRENT_TIMESTAMP
		WHERE id = $10`,
		w.Name, w.Description, w.Type, w.Active, w.ScheduleConfig, w.TriggerConfig, w.Metadata, w.LastRunAt, w.NextRunAt, w.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteWorkflow(id string) error {
	res, err := s.db.Exec("DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListDueWorkflows returns active schedule workflows with next_run_at <= now
func (s *PostgresStore) ListDueWorkflows(now time.Time) ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	err := s.db.Select(&workflows, `
		SELECT * FROM workflows
		WHERE active = TRUE AND type = 'schedule' AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at`, now)
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *PostgresStore) SaveWorkflowStep(st models.WorkflowStep) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_steps (id, workflow_id, step_order, type, service, action, description, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		st.ID, st.WorkflowID, st.StepOrder, st.Type, st.Service, st.Action, st.Description, st.Config, st.CreatedAt, st.UpdatedAt)
	return err
}

func (s *PostgresStore) ListWorkflowSteps(workflowID string) ([]models.WorkflowStep, error) {
	steps := []models.WorkflowStep{}
	err := s.db.Select(&steps, "SELECT * FROM workflow_steps WHERE workflow_id = $1 ORDER BY step_order", workflowID)
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (s *PostgresStore) DeleteWorkflowSteps(workflowID string) error {
	_, err := s.db.Exec("DELETE FROM workflow_steps WHERE workflow_id = $1", workflowID)
	return err
}

func (s *PostgresStore) SaveWorkflowRun(r models.WorkflowRun) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_runs (id, workflow_id, status, started_at, completed_at, error_message, input_data, output_data, execution_log, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.WorkflowID, r.Status, r.StartedAt, r.CompletedAt, r.ErrorMessage, r.InputData, r.OutputData, r.ExecutionLog, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save workflow run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkflowRun(id string) (models.WorkflowRun, error) {
	var run models.WorkflowRun
	err := s.db.Get(&run, "SELECT * FROM workflow_runs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowRun{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowRun{}, err
	}
	return run, nil
}

func (s *PostgresStore) ListWorkflowRuns(workflowID string, limit int) ([]models.WorkflowRun, error) {
	runs := []models.WorkflowRun{}
	err := s.db.Select(&runs, "SELECT * FROM workflow_runs WHERE workflow_id = $1 ORDER BY created_at DESC LIMIT $2", workflowID, limit)
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *PostgresStore) UpdateWorkflowRun(r models.WorkflowRun) error {
	res, err := s.db.Exec(`
		UPDATE workflow_runs
		SET status = $1, completed_at = $2, error_message = $3, output_data = $4, execution_log = $5
		WHERE id = $6`,
		r.Status, r.CompletedAt, r.ErrorMessage, r.OutputData, r.ExecutionLog, r.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveLiveStep(st models.LiveStep) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_run_steps (id, workflow_run_id, step_number, step_type, content, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.WorkflowRunID, st.StepNumber, st.StepType, st.Content, st.Timestamp, st.Metadata)
	return err
}

func (s *PostgresStore) ListLiveSteps(runID string) ([]models.LiveStep, error) {
	steps := []models.LiveStep{}
	err := s.db.Select(&steps, "SELECT * FROM workflow_run_steps WHERE workflow_run_id = $1 ORDER BY step_number", runID)
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (s *PostgresStore) SaveTrigger(t models.WorkflowTrigger) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_triggers (id, workflow_id, user_id, broker_trigger_id, toolkit_slug, trigger_name, trigger_config, connected_account_id, active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.WorkflowID, t.UserID, t.BrokerTriggerID, t.ToolkitSlug, t.TriggerName, t.TriggerConfig, t.ConnectedAccountID, t.Active, t.Metadata, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *PostgresStore) GetTrigger(id string) (models.WorkflowTrigger, error) {
	var t models.WorkflowTrigger
	err := s.db.Get(&t, "SELECT * FROM workflow_triggers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowTrigger{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowTrigger{}, err
	}
	return t, nil
}

func (s *PostgresStore) GetTriggerByBrokerID(workflowID, brokerTriggerID string) (models.WorkflowTrigger, error) {
	var t models.WorkflowTrigger
	err := s.db.Get(&t, "SELECT * FROM workflow_triggers WHERE workflow_id = $1 AND broker_trigger_id = $2", workflowID, brokerTriggerID)
	if err == sql.ErrNoRows {
		return models.WorkflowTrigger{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowTrigger{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListTriggers(workflowID string) ([]models.WorkflowTrigger, error) {
	triggers := []models.WorkflowTrigger{}
	err := s.db.Select(&triggers, "SELECT * FROM workflow_triggers WHERE workflow_id = $1 ORDER BY created_at", workflowID)
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

func (s *PostgresStore) UpdateTrigger(t models.WorkflowTrigger) error {
	res, err := s.db.Exec(`
		UPDATE workflow_triggers
		SET broker_trigger_id = $1, trigger_config = $2, connected_account_id = $3, active = $4, metadata = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6`,
		t.BrokerTriggerID, t.TriggerConfig, t.ConnectedAccountID, t.Active, t.Metadata, t.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTrigger(id string) error {
	res, err := s.db.Exec("DELETE FROM workflow_triggers WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveChat(c models.Chat) error {
	_, err := s.db.Exec(`
		INSERT INTO chats (id, user_id, title, metadata, last_message_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.Title, c.Metadata, c.LastMessageAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *PostgresStore) GetChat(id string) (models.Chat, error) {
	var c models.Chat
	err := s.db.Get(&c, "SELECT * FROM chats WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Chat{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListChats(userID string) ([]models.Chat, error) {
	chats := []models.Chat{}
	err := s.db.Select(&chats, "SELECT * FROM chats WHERE user_id = $1 ORDER BY last_message_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *PostgresStore) UpdateChat(c models.Chat) error {
	res, err := s.db.Exec(`
		UPDATE chats SET title = $1, metadata = $2, last_message_at = $3, updated_at = CURRENT_TIMESTAMP WHERE id = $4`,
		c.Title, c.Metadata, c.LastMessageAt, c.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteChat(id string) error {
	res, err := s.db.Exec("DELETE FROM chats WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveChatMessage(m models.ChatMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, chat_id, role, content, tool_calls, tool_results, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ChatID, m.Role, m.Content, m.ToolCalls, m.ToolResults, m.Metadata, m.CreatedAt)
	return err
}

func (s *PostgresStore) ListChatMessages(chatID string) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := s.db.Select(&msgs, "SELECT * FROM chat_messages WHERE chat_id = $1 ORDER BY created_at", chatID)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
