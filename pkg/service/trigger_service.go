package service

import (
	"context"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/broker"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TriggeredRunner is the slice of the executor the webhook path needs.
type TriggeredRunner interface {
	ExecuteWorkflowRun(ctx context.Context, workflowID, userID string, run models.WorkflowRun) (*ExecutionResult, error)
}

// WebhookOutcome reports how an incoming webhook event was handled.
type WebhookOutcome struct {
	Ignored bool   `json:"ignored"`
	Reason  string `json:"reason,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// TriggerService manages event triggers for trigger-type workflows and
// dispatches incoming webhook events to the executor.
type TriggerService struct {
	store          storage.Store
	broker         Broker
	workflows      *WorkflowService
	executor       TriggeredRunner
	logger         Logger
	webhookBaseURL string
}

func NewTriggerService(store storage.Store, b Broker, workflows *WorkflowService, executor TriggeredRunner, logger Logger, webhookBaseURL string) *TriggerService {
	return &TriggerService{
		store:          store,
		broker:         b,
		workflows:      workflows,
		executor:       executor,
		logger:         logger,
		webhookBaseURL: webhookBaseURL,
	}
}

func (s *TriggerService) List(workflowID string) ([]models.WorkflowTrigger, error) {
	return s.store.ListTriggers(workflowID)
}

// Create registers a trigger on a trigger-type workflow. Triggers start
// inactive; Activate arms them on the broker side.
func (s *TriggerService) Create(t models.WorkflowTrigger) (models.WorkflowTrigger, error) {
	wf, err := s.store.GetWorkflow(t.WorkflowID)
	if err != nil {
		return models.WorkflowTrigger{}, err
	}
	if wf.Type != models.TriggerWorkflowType {
		return models.WorkflowTrigger{}, errors.Errorf("workflow %s is not a trigger workflow", wf.ID)
	}
	if t.ToolkitSlug == "" || t.TriggerName == "" || t.ConnectedAccountID == "" {
		return models.WorkflowTrigger{}, errors.New("toolkit_slug, trigger_name and connected_account_id are required")
	}

	now := time.Now()
	t.ID = uuid.New().String()
	t.UserID = wf.UserID
	t.BrokerTriggerID = ""
	t.Active = false
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.store.SaveTrigger(t); err != nil {
		return models.WorkflowTrigger{}, err
	}
	s.logger.Infof("Created trigger %s (%s/%s) on workflow %s", t.ID, t.ToolkitSlug, t.TriggerName, t.WorkflowID)
	return t, nil
}

// Activate arms the trigger: it creates the broker-side subscription
// pointing at this deployment's webhook endpoint and stores the broker
// trigger id for later matching.
func (s *TriggerService) Activate(ctx context.Context, triggerID string) (models.WorkflowTrigger, error) {
	t, err := s.store.GetTrigger(triggerID)
	if err != nil {
		return models.WorkflowTrigger{}, err
	}
	if t.Active {
		return t, nil
	}

	config := map[string]interface{}{}
	for k, v := range t.TriggerConfig {
		config[k] = v
	}
	config["webhook_url"] = s.webhookBaseURL + "/api/webhooks/broker?workflow_id=" + t.WorkflowID

	instance, err := s.broker.CreateTrigger(ctx, t.UserID, t.TriggerName, t.ConnectedAccountID, config)
	if err != nil {
		return models.WorkflowTrigger{}, errors.Wrap(err, "creating broker trigger")
	}

	t.BrokerTriggerID = instance.ID
	t.Active = true
	if err := s.store.UpdateTrigger(t); err != nil {
		return models.WorkflowTrigger{}, err
	}
	s.logger.Infof("Activated trigger %s (broker id %s)", t.ID, t.BrokerTriggerID)
	return t, nil
}

// Deactivate disarms the trigger on the broker side and clears the
// stored broker trigger id.
func (s *TriggerService) Deactivate(ctx context.Context, triggerID string) (models.WorkflowTrigger, error) {
	t, err := s.store.GetTrigger(triggerID)
	if err != nil {
		return models.WorkflowTrigger{}, err
	}
	if !t.Active {
		return t, nil
	}

	if t.BrokerTriggerID != "" {
		if err := s.broker.DeleteTrigger(ctx, t.BrokerTriggerID); err != nil {
			return models.WorkflowTrigger{}, errors.Wrap(err, "deleting broker trigger")
		}
	}

	t.BrokerTriggerID = ""
	t.Active = false
	if err := s.store.UpdateTrigger(t); err != nil {
		return models.WorkflowTrigger{}, err
	}
	s.logger.Infof("Deactivated trigger %s", t.ID)
	return t, nil
}

// Delete removes a trigger, disarming it first when necessary.
func (s *TriggerService) Delete(ctx context.Context, triggerID string) error {
	t, err := s.store.GetTrigger(triggerID)
	if err != nil {
		return err
	}
	if t.Active {
		if _, err := s.Deactivate(ctx, triggerID); err != nil {
			return err
		}
	}
	return s.store.DeleteTrigger(triggerID)
}

// ListTriggerTypes lists the trigger kinds available, optionally
// restricted to one toolkit.
func (s *TriggerService) ListTriggerTypes(ctx context.Context, toolkitSlug string) ([]broker.TriggerType, error) {
	return s.broker.ListTriggerTypes(ctx, toolkitSlug)
}

// HandleWebhook processes one incoming broker event for a workflow.
// An event only starts a run when its trigger_id matches a stored
// active trigger of an active workflow; everything else is
// acknowledged and ignored. The run is created synchronously;
// execution proceeds on a detached goroutine whose only error sink is
// the process log, so the broker always gets a fast acknowledgement.
func (s *TriggerService) HandleWebhook(ctx context.Context, workflowID string, payload models.JSONMap) (WebhookOutcome, error) {
	wf, err := s.store.GetWorkflow(workflowID)
	if err != nil {
		return WebhookOutcome{}, err
	}
	if !wf.Active {
		s.logger.Infof("Ignoring webhook for inactive workflow %s", wf.ID)
		return WebhookOutcome{Ignored: true, Reason: "workflow is not active"}, nil
	}

	brokerTriggerID := payload.String("trigger_id")
	if brokerTriggerID == "" {
		s.logger.Infof("Ignoring webhook for workflow %s: payload carries no trigger id", wf.ID)
		return WebhookOutcome{Ignored: true, Reason: "payload carries no trigger id"}, nil
	}
	t, err := s.store.GetTriggerByBrokerID(wf.ID, brokerTriggerID)
	if err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			s.logger.Infof("Ignoring webhook for workflow %s: no trigger matches broker id %s", wf.ID, brokerTriggerID)
			return WebhookOutcome{Ignored: true, Reason: "trigger not found"}, nil
		}
		return WebhookOutcome{}, err
	}
	if !t.Active {
		s.logger.Infof("Ignoring webhook for inactive trigger %s on workflow %s", t.ID, wf.ID)
		return WebhookOutcome{Ignored: true, Reason: "trigger is not active"}, nil
	}

	input := models.JSONMap{"triggered_by": TriggeredByWebhook}
	for k, v := range payload {
		input[k] = v
	}

	run, err := s.workflows.CreateRun(wf.ID, models.PendingRunStatus, input)
	if err != nil {
		return WebhookOutcome{}, errors.Wrap(err, "creating triggered run")
	}

	go func() {
		result, err := s.executor.ExecuteWorkflowRun(context.Background(), wf.ID, wf.UserID, run)
		if err != nil {
			s.logger.Errorf("Triggered execution of workflow %s errored: %v", wf.ID, err)
			return
		}
		if !result.Success {
			s.logger.Errorf("Triggered execution of workflow %s failed: %s", wf.ID, result.Error)
		}
	}()

	return WebhookOutcome{RunID: run.ID}, nil
}
