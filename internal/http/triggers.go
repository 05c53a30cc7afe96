package http

import (
	"net/http"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type createTriggerRequest struct {
	ToolkitSlug        string         `json:"toolkit_slug"`
	TriggerName        string         `json:"trigger_name"`
	TriggerConfig      models.JSONMap `json:"trigger_config"`
	ConnectedAccountID string         `json:"connected_account_id"`
	Metadata           models.JSONMap `json:"metadata"`
}

func (s *Server) listTriggers(c echo.Context) error {
	if _, err := s.workflows.Get(c.Param("id")); err != nil {
		return httpError(err)
	}
	triggers, err := s.triggers.List(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, triggers)
}

func (s *Server) createTrigger(c echo.Context) error {
	var req createTriggerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	t, err := s.triggers.Create(models.WorkflowTrigger{
		WorkflowID:         c.Param("id"),
		ToolkitSlug:        req.ToolkitSlug,
		TriggerName:        req.TriggerName,
		TriggerConfig:      req.TriggerConfig,
		ConnectedAccountID: req.ConnectedAccountID,
		Metadata:           req.Metadata,
	})
	if err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			return httpError(err)
		}
		return badRequest("%v", err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) activateTrigger(c echo.Context) error {
	t, err := s.triggers.Activate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deactivateTrigger(c echo.Context) error {
	t, err := s.triggers.Deactivate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTrigger(c echo.Context) error {
	if err := s.triggers.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listTriggerTypes(c echo.Context) error {
	types, err := s.triggers.ListTriggerTypes(c.Request().Context(), c.QueryParam("toolkit"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, types)
}

func (s *Server) listToolkits(c echo.Context) error {
	toolkits, err := s.broker.ListToolkits(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toolkits)
}

func (s *Server) initiateConnection(c echo.Context) error {
	var req struct {
		ToolkitSlug string `json:"toolkit_slug"`
		CallbackURL string `json:"callback_url"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	uid := userID(c)
	if uid == "" {
		return badRequest("X-User-ID header required")
	}
	if req.ToolkitSlug == "" {
		return badRequest("toolkit_slug required")
	}
	conn, err := s.broker.InitiateConnection(c.Request().Context(), uid, req.ToolkitSlug, req.CallbackURL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conn)
}

func (s *Server) connectionCallback(c echo.Context) error {
	id := c.QueryParam("connectionId")
	if id == "" {
		return badRequest("connectionId required")
	}
	conn, err := s.broker.GetConnection(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conn)
}

func (s *Server) deleteConnection(c echo.Context) error {
	if err := s.broker.DeleteConnection(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// webhookChallenge answers broker endpoint verification requests.
func (s *Server) webhookChallenge(c echo.Context) error {
	if challenge := c.QueryParam("challenge"); challenge != "" {
		return c.String(http.StatusOK, challenge)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook receives broker events. Internal failures after the
// workflow is resolved still answer 200 so the broker does not retry
// into the same failure; only an unidentifiable request is rejected.
func (s *Server) handleWebhook(c echo.Context) error {
	workflowID := c.QueryParam("workflow_id")
	if workflowID == "" {
		return badRequest("workflow_id query parameter required")
	}

	var payload models.JSONMap
	if err := c.Bind(&payload); err != nil {
		return badRequest("invalid payload: %v", err)
	}

	outcome, err := s.triggers.HandleWebhook(c.Request().Context(), workflowID, payload)
	if err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}
		s.logger.Errorf("Webhook handling for workflow %s failed: %v", workflowID, err)
		return c.JSON(http.StatusOK, map[string]string{"status": "error"})
	}
	return c.JSON(http.StatusOK, outcome)
}
