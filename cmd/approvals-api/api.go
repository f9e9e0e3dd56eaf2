// Package main provides the approvals API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/coopcore/approvals/pkg/eventbus"
	"github.com/coopcore/approvals/pkg/hierarchy"
	"github.com/coopcore/approvals/pkg/persistence"
	"github.com/coopcore/approvals/pkg/resolver"
	"github.com/coopcore/approvals/pkg/services"
	"github.com/coopcore/approvals/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	lookup      hierarchy.Lookup
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	lookup hierarchy.Lookup,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		lookup:      lookup,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	approvalService := services.NewApproval(
		a.persistence,
		resolver.NewResolver(a.lookup, a.logger),
		a.eventBus,
		a.logger,
		services.DefaultApprovalConfig(),
	)

	definitionService, err := services.NewDefinition(a.persistence, a.logger)
	if err != nil {
		return nil, err
	}

	handlers := web.NewAPIHandlers(approvalService, definitionService, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Approvals API")
	})

	approvals := app.Group("/approvals")
	approvals.Post("/", handlers.SubmitApproval)
	approvals.Post("/executions/:id/decision", handlers.DecideExecution)
	approvals.Get("/pending", handlers.GetPendingExecutions)
	approvals.Get("/pending/count", handlers.GetPendingCounts)
	approvals.Get("/entity/:entityType/:entityId", handlers.GetRequestByEntity)
	approvals.Get("/:id", handlers.GetRequest)

	workflows := app.Group("/workflows")
	workflows.Post("/", handlers.ImportWorkflow)
	workflows.Get("/", handlers.GetWorkflows)
	workflows.Get("/:code", handlers.GetWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
