package storage_test

import (
	"testing"
	"time"

	internal_storage "github.com/Aaditya-brrt/adminflow/internal/storage"
	"github.com/Aaditya-brrt/adminflow/internal/testutil"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	// Helper to create a transactional store
	newTxStore := func(t *testing.T) *internal_storage.PostgresStore {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		txStore, err := store.Begin()
		assert.NoError(t, err)
		t.Cleanup(func() { txStore.Rollback() })
		return txStore.(*internal_storage.PostgresStore)
	}

	newWorkflow := func(wfType models.WorkflowType) models.Workflow {
		now := time.Now()
		return models.Workflow{
			ID:          uuid.New().String(),
			UserID:      "user-1",
			Name:        "Daily digest",
			Description: "Summarize unread email every morning",
			Type:        wfType,
			ScheduleConfig: models.JSONMap{
				"frequency": "daily",
				"time":      "09:00",
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("SaveWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))

		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.Equal(t, wf.Name, saved.Name)
		assert.Equal(t, models.ScheduleWorkflowType, saved.Type)
		assert.Equal(t, "daily", saved.ScheduleConfig.String("frequency"))
		assert.False(t, saved.Active)
		assert.Empty(t, saved.Steps)
	})

	t.Run("GetWorkflow includes ordered steps", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))

		now := time.Now()
		for i, action := range []string{"GMAIL_FETCH_EMAILS", "SLACK_POST_MESSAGE"} {
			step := models.WorkflowStep{
				ID:         uuid.New().String(),
				WorkflowID: wf.ID,
				StepOrder:  i + 1,
				Type:       models.ActionStepType,
				Service:    "gmail",
				Action:     action,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			assert.NoError(t, store.SaveWorkflowStep(step))
		}

		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.Len(t, saved.Steps, 2)
		assert.Equal(t, "SLACK_POST_MESSAGE", saved.Steps[1].Action)
	})

	t.Run("GetNonExistingWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetWorkflow(uuid.New().String())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))

		next := time.Now().Add(time.Hour)
		wf.Active = true
		wf.NextRunAt = &next
		wf.Name = "Renamed digest"
		assert.NoError(t, store.UpdateWorkflow(wf))

		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.True(t, saved.Active)
		assert.Equal(t, "Renamed digest", saved.Name)
		assert.NotNil(t, saved.NextRunAt)

		missing := newWorkflow(models.ScheduleWorkflowType)
		assert.ErrorIs(t, store.UpdateWorkflow(missing), storage.ErrNotFound)
	})

	t.Run("DeleteWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))
		assert.NoError(t, store.DeleteWorkflow(wf.ID))
		_, err := store.GetWorkflow(wf.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.DeleteWorkflow(wf.ID), storage.ErrNotFound)
	})

	t.Run("ListWorkflows filters by user", func(t *testing.T) {
		store := newTxStore(t)
		mine := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(mine))
		other := newWorkflow(models.ScheduleWorkflowType)
		other.UserID = "user-2"
		assert.NoError(t, store.SaveWorkflow(other))

		workflows, err := store.ListWorkflows("user-1")
		assert.NoError(t, err)
		assert.Len(t, workflows, 1)
		assert.Equal(t, mine.ID, workflows[0].ID)
	})

	t.Run("ListDueWorkflows", func(t *testing.T) {
		store := newTxStore(t)
		past := time.Now().Add(-time.Minute)
		future := time.Now().Add(time.Hour)

		due := newWorkflow(models.ScheduleWorkflowType)
		due.Active = true
		due.NextRunAt = &past
		assert.NoError(t, store.SaveWorkflow(due))

		notYet := newWorkflow(models.ScheduleWorkflowType)
		notYet.Active = true
		notYet.NextRunAt = &future
		assert.NoError(t, store.SaveWorkflow(notYet))

		inactive := newWorkflow(models.ScheduleWorkflowType)
		inactive.NextRunAt = &past
		assert.NoError(t, store.SaveWorkflow(inactive))

		triggered := newWorkflow(models.TriggerWorkflowType)
		triggered.Active = true
		triggered.ScheduleConfig = nil
		assert.NoError(t, store.SaveWorkflow(triggered))

		found, err := store.ListDueWorkflows(time.Now())
		assert.NoError(t, err)
		assert.Len(t, found, 1)
		assert.Equal(t, due.ID, found[0].ID)
	})

	t.Run("WorkflowRun roundtrip", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))

		now := time.Now()
		run := models.WorkflowRun{
			ID:         uuid.New().String(),
			WorkflowID: wf.ID,
			Status:     models.RunningRunStatus,
			StartedAt:  now,
			InputData:  models.JSONMap{"source": "schedule"},
			CreatedAt:  now,
		}
		assert.NoError(t, store.SaveWorkflowRun(run))

		saved, err := store.GetWorkflowRun(run.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.RunningRunStatus, saved.Status)
		assert.Equal(t, "schedule", saved.InputData.String("source"))
		assert.Empty(t, saved.ExecutionLog)

		completed := now.Add(time.Second)
		saved.Status = models.CompletedRunStatus
		saved.CompletedAt = &completed
		saved.OutputData = models.JSONMap{"response": "done"}
		saved.ExecutionLog = models.StepList{
			{StepNumber: 1, StepType: models.AIGenerationStepType, Timestamp: now, AIResponse: "thinking"},
			{StepNumber: 2, StepType: models.ToolCallStepType, Timestamp: now, ToolCall: &models.ToolCallRecord{
				ToolCallID: "call-1",
				ToolName:   "GMAIL_FETCH_EMAILS",
				Arguments:  models.JSONMap{"limit": 5},
			}},
		}
		assert.NoError(t, store.UpdateWorkflowRun(saved))

		updated, err := store.GetWorkflowRun(run.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.CompletedRunStatus, updated.Status)
		assert.NotNil(t, updated.CompletedAt)
		assert.Len(t, updated.ExecutionLog, 2)
		assert.Equal(t, "GMAIL_FETCH_EMAILS", updated.ExecutionLog[1].ToolCall.ToolName)
	})

	t.Run("ListWorkflowRuns respects limit and order", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))

		for i := 0; i < 3; i++ {
			run := models.WorkflowRun{
				ID:         uuid.New().String(),
				WorkflowID: wf.ID,
				Status:     models.CompletedRunStatus,
				StartedAt:  time.Now(),
				CreatedAt:  time.Now().Add(time.Duration(i) * time.Second),
			}
			assert.NoError(t, store.SaveWorkflowRun(run))
		}

		runs, err := store.ListWorkflowRuns(wf.ID, 2)
		assert.NoError(t, err)
		assert.Len(t, runs, 2)
		assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))
	})

	t.Run("LiveSteps ordered by step number", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))
		run := models.WorkflowRun{
			ID:         uuid.New().String(),
			WorkflowID: wf.ID,
			Status:     models.RunningRunStatus,
			StartedAt:  time.Now(),
			CreatedAt:  time.Now(),
		}
		assert.NoError(t, store.SaveWorkflowRun(run))

		for _, st := range []models.LiveStep{
			{ID: uuid.New().String(), WorkflowRunID: run.ID, StepNumber: 2, StepType: models.CompletionStepType, Content: "Workflow completed", Timestamp: time.Now()},
			{ID: uuid.New().String(), WorkflowRunID: run.ID, StepNumber: 1, StepType: models.AIGenerationStepType, Content: "thinking", Timestamp: time.Now()},
		} {
			assert.NoError(t, store.SaveLiveStep(st))
		}

		steps, err := store.ListLiveSteps(run.ID)
		assert.NoError(t, err)
		assert.Len(t, steps, 2)
		assert.Equal(t, 1, steps[0].StepNumber)
		assert.Equal(t, models.CompletionStepType, steps[1].StepType)
	})

	t.Run("Trigger roundtrip", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.TriggerWorkflowType)
		assert.NoError(t, store.SaveWorkflow(wf))

		now := time.Now()
		trig := models.WorkflowTrigger{
			ID:                 uuid.New().String(),
			WorkflowID:         wf.ID,
			UserID:             wf.UserID,
			ToolkitSlug:        "gmail",
			TriggerName:        "GMAIL_NEW_GMAIL_MESSAGE",
			TriggerConfig:      models.JSONMap{"labelIds": "INBOX"},
			ConnectedAccountID: "acc-1",
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		assert.NoError(t, store.SaveTrigger(trig))

		saved, err := store.GetTrigger(trig.ID)
		assert.NoError(t, err)
		assert.Equal(t, "gmail", saved.ToolkitSlug)
		assert.False(t, saved.Active)

		saved.BrokerTriggerID = "bt-1"
		saved.Active = true
		assert.NoError(t, store.UpdateTrigger(saved))

		byBroker, err := store.GetTriggerByBrokerID(wf.ID, "bt-1")
		assert.NoError(t, err)
		assert.Equal(t, trig.ID, byBroker.ID)

		_, err = store.GetTriggerByBrokerID(wf.ID, "bt-unknown")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		triggers, err := store.ListTriggers(wf.ID)
		assert.NoError(t, err)
		assert.Len(t, triggers, 1)

		assert.NoError(t, store.DeleteTrigger(trig.ID))
		_, err = store.GetTrigger(trig.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Chat roundtrip", func(t *testing.T) {
		store := newTxStore(t)
		now := time.Now()
		chat := models.Chat{
			ID:            uuid.New().String(),
			UserID:        "user-1",
			Title:         "How many unread emails...",
			LastMessageAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		assert.NoError(t, store.SaveChat(chat))

		for i, role := range []models.ChatRole{models.UserChatRole, models.AssistantChatRole} {
			msg := models.ChatMessage{
				ID:        uuid.New().String(),
				ChatID:    chat.ID,
				Role:      role,
				Content:   "message",
				CreatedAt: now.Add(time.Duration(i) * time.Second),
			}
			assert.NoError(t, store.SaveChatMessage(msg))
		}

		msgs, err := store.ListChatMessages(chat.ID)
		assert.NoError(t, err)
		assert.Len(t, msgs, 2)
		assert.Equal(t, models.UserChatRole, msgs[0].Role)

		chat.LastMessageAt = now.Add(time.Minute)
		assert.NoError(t, store.UpdateChat(chat))

		chats, err := store.ListChats("user-1")
		assert.NoError(t, err)
		assert.Len(t, chats, 1)

		assert.NoError(t, store.DeleteChat(chat.ID))
		_, err = store.GetChat(chat.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("CommittedTransactionPersists", func(t *testing.T) {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		defer store.Close()

		txStore, err := store.Begin()
		assert.NoError(t, err)
		wf := newWorkflow(models.ScheduleWorkflowType)
		assert.NoError(t, txStore.SaveWorkflow(wf))
		assert.NoError(t, txStore.Commit())

		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.Equal(t, wf.Name, saved.Name)
		assert.NoError(t, store.DeleteWorkflow(wf.ID))
	})
}
