package service_test

import (
	"testing"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/service"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWorkflow(t *testing.T) {
	workflows := service.NewWorkflowService(storage.NewMockStore(), logger{})

	t.Run("DerivesTitleFromDescription", func(t *testing.T) {
		wf, err := workflows.Create(models.Workflow{
			UserID:      "user-1",
			Description: "Send a summary email every morning at nine",
			Type:        models.ScheduleWorkflowType,
		})
		require.NoError(t, err)
		assert.Equal(t, "Send a summary email...", wf.Name)
		assert.False(t, wf.Active)
		assert.Nil(t, wf.NextRunAt)
		assert.NotEmpty(t, wf.ID)
	})

	t.Run("RejectsInvalidType", func(t *testing.T) {
		_, err := workflows.Create(models.Workflow{
			UserID: "user-1", Name: "Bad", Type: "cron",
		})
		assert.Error(t, err)
	})

	t.Run("RejectsMissingUser", func(t *testing.T) {
		_, err := workflows.Create(models.Workflow{
			Name: "No owner", Type: models.ScheduleWorkflowType,
		})
		assert.Error(t, err)
	})

	t.Run("PersistsSteps", func(t *testing.T) {
		wf, err := workflows.Create(models.Workflow{
			UserID: "user-1", Name: "With steps", Type: models.TriggerWorkflowType,
			Steps: []models.WorkflowStep{
				{Type: models.TriggerStepType, Service: "gmail", Action: "new_message"},
				{Type: models.ActionStepType, Service: "slack", Action: "post_message"},
			},
		})
		require.NoError(t, err)
		got, err := workflows.Get(wf.ID)
		require.NoError(t, err)
		require.Len(t, got.Steps, 2)
		assert.Equal(t, 1, got.Steps[0].StepOrder)
		assert.Equal(t, 2, got.Steps[1].StepOrder)
	})
}

func TestSetActive(t *testing.T) {
	workflows := service.NewWorkflowService(storage.NewMockStore(), logger{})

	t.Run("ArmsScheduleWorkflow", func(t *testing.T) {
		wf, err := workflows.Create(models.Workflow{
			UserID: "user-1", Name: "Daily", Type: models.ScheduleWorkflowType,
			ScheduleConfig: models.JSONMap{"frequency": "daily", "time": "09:00"},
		})
		require.NoError(t, err)

		wf, err = workflows.SetActive(wf.ID, true)
		require.NoError(t, err)
		assert.True(t, wf.Active)
		require.NotNil(t, wf.NextRunAt)
		assert.True(t, wf.NextRunAt.After(time.Now()))

		wf, err = workflows.SetActive(wf.ID, false)
		require.NoError(t, err)
		assert.False(t, wf.Active)
		assert.Nil(t, wf.NextRunAt)
	})

	t.Run("TriggerWorkflowGetsNoFireTime", func(t *testing.T) {
		wf, err := workflows.Create(models.Workflow{
			UserID: "user-1", Name: "On event", Type: models.TriggerWorkflowType,
		})
		require.NoError(t, err)
		wf, err = workflows.SetActive(wf.ID, true)
		require.NoError(t, err)
		assert.True(t, wf.Active)
		assert.Nil(t, wf.NextRunAt)
	})
}

func TestNextRunAt(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 30, 0, 0, time.UTC) // a Tuesday

	t.Run("DailyBeforeBoundary", func(t *testing.T) {
		next := service.NextRunAt(models.JSONMap{"frequency": "daily", "time": "14:00"}, now)
		assert.Equal(t, time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC), next)
	})

	t.Run("DailyAfterBoundaryRollsOver", func(t *testing.T) {
		next := service.NextRunAt(models.JSONMap{"frequency": "daily", "time": "09:00"}, now)
		assert.Equal(t, time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC), next)
	})

	t.Run("DailyExactlyAtBoundaryIsStrictlyAfter", func(t *testing.T) {
		at := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
		next := service.NextRunAt(models.JSONMap{"frequency": "daily", "time": "09:00"}, at)
		assert.Equal(t, time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC), next)
	})

	t.Run("WeeklyOnDayOfWeek", func(t *testing.T) {
		// next Friday (day 5) at 08:00
		next := service.NextRunAt(models.JSONMap{"frequency": "weekly", "day_of_week": 5, "time": "08:00"}, now)
		assert.Equal(t, time.Date(2026, time.March, 13, 8, 0, 0, 0, time.UTC), next)
		assert.Equal(t, time.Friday, next.Weekday())
	})

	t.Run("WeeklySameDayEarlierTimeRollsAWeek", func(t *testing.T) {
		next := service.NextRunAt(models.JSONMap{"frequency": "weekly", "day_of_week": 2, "time": "09:00"}, now)
		assert.Equal(t, time.Date(2026, time.March, 17, 9, 0, 0, 0, time.UTC), next)
	})

	t.Run("IntervalMinutes", func(t *testing.T) {
		next := service.NextRunAt(models.JSONMap{"frequency": "interval", "minutes": 45}, now)
		assert.Equal(t, now.Add(45*time.Minute), next)
	})

	t.Run("UnknownConfigDefaultsToOneHour", func(t *testing.T) {
		next := service.NextRunAt(models.JSONMap{}, now)
		assert.Equal(t, now.Add(time.Hour), next)
	})
}

func TestUpdateRunTerminalOnce(t *testing.T) {
	workflows := service.NewWorkflowService(storage.NewMockStore(), logger{})
	wf, err := workflows.Create(models.Workflow{
		UserID: "user-1", Name: "Runs", Type: models.ScheduleWorkflowType,
	})
	require.NoError(t, err)

	run, err := workflows.CreateRun(wf.ID, models.RunningRunStatus, nil)
	require.NoError(t, err)

	run.Status = models.CompletedRunStatus
	require.NoError(t, err)
	require.NoError(t, workflows.UpdateRun(run))

	got, err := workflows.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompletedRunStatus, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// a finished run cannot change status again
	got.Status = models.FailedRunStatus
	err = workflows.UpdateRun(got)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "Check my inbox and...", service.DeriveTitle("Check my inbox and summarize new mail"))
	assert.Equal(t, "Short one", service.DeriveTitle("Short one"))
	assert.Equal(t, "", service.DeriveTitle("   "))
}
