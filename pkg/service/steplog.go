package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/live"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/google/uuid"
)

// stepLog accumulates a run's execution log, mirroring every entry to
// the live-step store and the broadcaster as it is appended. Step
// numbers are monotonic from 1 across the whole run, retries included.
// Mirroring failures are logged and swallowed; a run never fails
// because a viewer could not be notified.
type stepLog struct {
	store       storage.Store
	broadcaster live.Broadcaster
	logger      Logger
	runID       string
	steps       []models.ExecutionStep
	next        int
}

func newStepLog(store storage.Store, broadcaster live.Broadcaster, logger Logger, runID string) *stepLog {
	return &stepLog{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		runID:       runID,
		next:        1,
	}
}

func (l *stepLog) Steps() models.StepList {
	return models.StepList(l.steps)
}

func (l *stepLog) AddGeneration(ctx context.Context, text string) {
	l.append(ctx, models.ExecutionStep{
		StepType:   models.AIGenerationStepType,
		AIResponse: text,
	}, text)
}

func (l *stepLog) AddToolCall(ctx context.Context, id, name string, args models.JSONMap) {
	l.append(ctx, models.ExecutionStep{
		StepType: models.ToolCallStepType,
		ToolCall: &models.ToolCallRecord{ToolCallID: id, ToolName: name, Arguments: args},
	}, fmt.Sprintf("Calling tool %s", name))
}

func (l *stepLog) AddToolResult(ctx context.Context, id string, result interface{}, errMsg string) {
	rec := &models.ToolResultRecord{ToolCallID: id, Result: result, Success: errMsg == "", Error: errMsg}
	content := errMsg
	if content == "" {
		if raw, err := json.Marshal(result); err == nil {
			content = string(raw)
		}
	}
	l.append(ctx, models.ExecutionStep{
		StepType:   models.ToolResultStepType,
		ToolResult: rec,
	}, content)
}

func (l *stepLog) AddError(ctx context.Context, msg string) {
	l.append(ctx, models.ExecutionStep{
		StepType: models.ErrorStepType,
		Error:    msg,
	}, msg)
}

// AddCompletion writes the live-only completion marker; it does not
// enter the execution log.
func (l *stepLog) AddCompletion(ctx context.Context, summary string) {
	l.mirror(ctx, l.next, models.CompletionStepType, summary, nil)
	l.next++
}

func (l *stepLog) append(ctx context.Context, step models.ExecutionStep, content string) {
	step.StepNumber = l.next
	step.Timestamp = time.Now()
	l.next++
	l.steps = append(l.steps, step)
	l.mirror(ctx, step.StepNumber, step.StepType, content, step.Metadata)
}

func (l *stepLog) mirror(ctx context.Context, number int, stepType models.StepType, content string, metadata models.JSONMap) {
	liveStep := models.LiveStep{
		ID:            uuid.New().String(),
		WorkflowRunID: l.runID,
		StepNumber:    number,
		StepType:      stepType,
		Content:       content,
		Timestamp:     time.Now(),
		Metadata:      metadata,
	}
	if err := l.store.SaveLiveStep(liveStep); err != nil {
		l.logger.Errorf("Failed to persist live step %d for run %s: %v", number, l.runID, err)
	}
	if l.broadcaster == nil {
		return
	}
	ev := live.Event{Type: live.StepUpdateEvent, RunID: l.runID, Step: &liveStep}
	if err := l.broadcaster.Publish(ctx, ev); err != nil {
		l.logger.Errorf("Failed to broadcast step %d for run %s: %v", number, l.runID, err)
	}
}
