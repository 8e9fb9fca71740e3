// Package main provides the HiveDesk API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/hivedesk/hivedesk/pkg/attachments"
	"github.com/hivedesk/hivedesk/pkg/engine"
	"github.com/hivedesk/hivedesk/pkg/eventbus"
	"github.com/hivedesk/hivedesk/pkg/notifier"
	"github.com/hivedesk/hivedesk/pkg/persistence"
	"github.com/hivedesk/hivedesk/pkg/services"
	"github.com/hivedesk/hivedesk/pkg/web"
)

type API struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	eventBus        eventbus.EventBus
	attachmentsPath string
	validate        *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	attachmentsPath string,
) *API {
	return &API{
		logger:          logger,
		persistence:     persistence,
		eventBus:        eventBus,
		attachmentsPath: attachmentsPath,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	store := attachments.NewFSStore(a.attachmentsPath)
	busNotifier := notifier.NewEventBusNotifier(a.eventBus, a.logger)
	eng := engine.New(a.persistence, store, busNotifier, a.logger)

	ticketService := services.NewTicket(a.persistence, eng)
	workflowService := services.NewWorkflow(a.persistence)

	handlers := web.NewAPIHandlers(ticketService, workflowService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("HiveDesk API")
	})

	t := app.Group("/tickets")
	t.Post("/", handlers.CreateTicket)
	t.Get("/", handlers.ListTickets)
	t.Get("/:number", handlers.GetTicket)
	t.Post("/:number/actions", handlers.ExecuteAction)

	w := app.Group("/workflows")
	w.Get("/", handlers.ListWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
