// Package web provides HTTP handlers and REST API endpoints for the
// approval engine.
package web

import (
	"net/http"
	"time"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence"
	"github.com/coopcore/approvals/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	approvalService   *services.Approval
	definitionService *services.Definition
	persistence       persistence.Persistence
	validator         *validator.Validate
}

func NewAPIHandlers(
	approvalService *services.Approval,
	definitionService *services.Definition,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		approvalService:   approvalService,
		definitionService: definitionService,
		persistence:       persistence,
		validator:         validator,
	}
}

func (h *APIHandlers) SubmitApproval(c fiber.Ctx) error {
	var req SubmitApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.approvalService.Submit(c.Context(), services.SubmitRequest{
		WorkflowCode: req.WorkflowCode,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		Context:      req.Context,
		RequestedBy:  req.RequestedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) DecideExecution(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req DecideExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.approvalService.ProcessDecision(c.Context(), services.DecisionRequest{
		ExecutionID: executionID,
		Decision:    models.Decision(req.Decision),
		ReviewedBy:  req.ReviewedBy,
		Comments:    req.Comments,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetPendingExecutions(c fiber.Ctx) error {
	approverID := c.Query("approver_id")
	if approverID == "" {
		return badRequest(c, "approver_id query parameter is required")
	}

	executions, err := h.approvalService.PendingForApprover(c.Context(), approverID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetPendingCounts(c fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	counts, err := h.approvalService.PendingCounts(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"counts": counts})
}

func (h *APIHandlers) GetRequestByEntity(c fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID := c.Params("entityId")

	if entityType == "" || entityID == "" {
		return badRequest(c, "Entity type and entity ID are required")
	}

	details, err := h.approvalService.RequestByEntity(c.Context(), entityType, entityID)
	if err != nil {
		return handleServiceError(c, err)
	}

	if details == nil {
		return notFound(c, "No pending approval request for entity")
	}

	return c.JSON(details)
}

func (h *APIHandlers) GetRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	details, err := h.approvalService.RequestByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(details)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	workflow, err := h.definitionService.Import(c.Context(), c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.definitionService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return badRequest(c, "Workflow code is required")
	}

	workflow, err := h.definitionService.FetchByCode(c.Context(), code)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Approvals API is healthy"
	httpStatus := http.StatusOK

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = "Approvals API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
