package http

import (
	"context"
	"net/http"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/service"
	"github.com/labstack/echo/v4"
)

type createWorkflowRequest struct {
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Type           models.WorkflowType   `json:"type"`
	ScheduleConfig models.JSONMap        `json:"schedule_config"`
	TriggerConfig  models.JSONMap        `json:"trigger_config"`
	Metadata       models.JSONMap        `json:"metadata"`
	Steps          []models.WorkflowStep `json:"steps"`
}

func (s *Server) listWorkflows(c echo.Context) error {
	workflows, err := s.workflows.List(userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, workflows)
}

func (s *Server) createWorkflow(c echo.Context) error {
	var req createWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	uid := userID(c)
	if uid == "" {
		return badRequest("X-User-ID header required")
	}

	wf, err := s.workflows.Create(models.Workflow{
		UserID:         uid,
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.Type,
		ScheduleConfig: req.ScheduleConfig,
		TriggerConfig:  req.TriggerConfig,
		Metadata:       req.Metadata,
		Steps:          req.Steps,
	})
	if err != nil {
		return badRequest("%v", err)
	}
	return c.JSON(http.StatusCreated, wf)
}

func (s *Server) getWorkflow(c echo.Context) error {
	wf, err := s.workflows.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, wf)
}

func (s *Server) updateWorkflow(c echo.Context) error {
	var req createWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	wf, err := s.workflows.Update(models.Workflow{
		ID:             c.Param("id"),
		Name:           req.Name,
		Description:    req.Description,
		ScheduleConfig: req.ScheduleConfig,
		TriggerConfig:  req.TriggerConfig,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, wf)
}

func (s *Server) deleteWorkflow(c echo.Context) error {
	if err := s.workflows.Delete(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) activateWorkflow(c echo.Context) error {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	wf, err := s.workflows.SetActive(c.Param("id"), req.Active)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, wf)
}

// executeWorkflow runs a workflow synchronously. Execution failures
// come back as 400 with the failure payload so callers can show the
// run outcome directly.
func (s *Server) executeWorkflow(c echo.Context) error {
	result, err := s.executor.ExecuteWorkflow(c.Request().Context(), c.Param("id"), userID(c), service.TriggeredByManual)
	if err != nil {
		return httpError(err)
	}
	if !result.Success {
		return c.JSON(http.StatusBadRequest, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) listRuns(c echo.Context) error {
	if _, err := s.workflows.Get(c.Param("id")); err != nil {
		return httpError(err)
	}
	runs, err := s.workflows.GetRuns(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) listRunSteps(c echo.Context) error {
	steps, err := s.workflows.GetRunSteps(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, steps)
}

func (s *Server) schedulerStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.scheduler.Status())
}

func (s *Server) schedulerAction(c echo.Context) error {
	var req struct {
		Action string `json:"action"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	switch req.Action {
	case "start":
		// the loop must outlive the request
		s.scheduler.Start(context.Background())
	case "stop":
		s.scheduler.Stop()
	case "status":
	default:
		return badRequest("unknown action %q", req.Action)
	}
	return c.JSON(http.StatusOK, s.scheduler.Status())
}
