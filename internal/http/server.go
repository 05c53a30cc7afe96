package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Aaditya-brrt/adminflow/pkg/broker"
	"github.com/Aaditya-brrt/adminflow/pkg/service"
	"github.com/Aaditya-brrt/adminflow/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
)

// BrokerGateway extends the service-facing broker API with the
// connection management the HTTP surface exposes directly.
type BrokerGateway interface {
	service.Broker
	InitiateConnection(ctx context.Context, userID, toolkitSlug, callbackURL string) (broker.ConnectionRequest, error)
	GetConnection(ctx context.Context, connectedAccountID string) (broker.ConnectedAccount, error)
	DeleteConnection(ctx context.Context, connectedAccountID string) error
}

// Server is the REST API over the services.
type Server struct {
	echo      *echo.Echo
	workflows *service.WorkflowService
	executor  service.WorkflowRunner
	scheduler *service.Scheduler
	triggers  *service.TriggerService
	chats     *service.ChatService
	broker    BrokerGateway
	logger    service.Logger
}

func NewServer(
	workflows *service.WorkflowService,
	executor service.WorkflowRunner,
	scheduler *service.Scheduler,
	triggers *service.TriggerService,
	chats *service.ChatService,
	gateway BrokerGateway,
	logger service.Logger,
) *Server {
	s := &Server{
		echo:      echo.New(),
		workflows: workflows,
		executor:  executor,
		scheduler: scheduler,
		triggers:  triggers,
		chats:     chats,
		broker:    gateway,
		logger:    logger,
	}
	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/health", s.health)

	api := e.Group("/api")
	api.GET("/workflows", s.listWorkflows)
	api.POST("/workflows", s.createWorkflow)
	api.GET("/workflows/:id", s.getWorkflow)
	api.PATCH("/workflows/:id", s.updateWorkflow)
	api.DELETE("/workflows/:id", s.deleteWorkflow)
	api.POST("/workflows/:id/activate", s.activateWorkflow)
	api.POST("/workflows/:id/execute", s.executeWorkflow)
	api.GET("/workflows/:id/runs", s.listRuns)
	api.GET("/runs/:id/steps", s.listRunSteps)

	api.GET("/workflows/scheduler", s.schedulerStatus)
	api.POST("/workflows/scheduler", s.schedulerAction)

	api.GET("/workflows/:id/triggers", s.listTriggers)
	api.POST("/workflows/:id/triggers", s.createTrigger)
	api.POST("/triggers/:id/activate", s.activateTrigger)
	api.POST("/triggers/:id/deactivate", s.deactivateTrigger)
	api.DELETE("/triggers/:id", s.deleteTrigger)
	api.GET("/triggers", s.listTriggerTypes)

	api.GET("/toolkits", s.listToolkits)
	api.POST("/connections/initiate", s.initiateConnection)
	api.GET("/connections/callback", s.connectionCallback)
	api.DELETE("/connections/:id", s.deleteConnection)

	api.GET("/webhooks/broker", s.webhookChallenge)
	api.POST("/webhooks/broker", s.handleWebhook)

	api.POST("/chats", s.createChat)
	api.GET("/chats", s.listChats)
	api.GET("/chats/:id", s.getChat)
	api.DELETE("/chats/:id", s.deleteChat)
	api.GET("/chats/:id/messages", s.listChatMessages)
	api.POST("/chat", s.sendChat)
}

// Start blocks serving HTTP on addr until Shutdown.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// userID extracts the end-user identity the fronting layer injects.
func userID(c echo.Context) string {
	return c.Request().Header.Get("X-User-ID")
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	if errors.Cause(err) == storage.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func badRequest(format string, args ...interface{}) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}
