// Package web provides HTTP handlers and REST API endpoints for ticket and workflow management.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/hivedesk/hivedesk/pkg/actions"
	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/services"
	"github.com/hivedesk/hivedesk/pkg/workflow"
)

type APIHandlers struct {
	ticketService   *services.Ticket
	workflowService *services.Workflow
	validator       *validator.Validate
}

func NewAPIHandlers(
	ticketService *services.Ticket,
	workflowService *services.Workflow,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		ticketService:   ticketService,
		workflowService: workflowService,
		validator:       validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.ticketService.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if !ok {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"persistence": repositoryCheck,
		},
	})
}

func (h *APIHandlers) CreateTicket(c fiber.Ctx) error {
	var req CreateTicketRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	ticket, err := h.ticketService.Create(c.Context(), services.CreateTicketRequest{
		Title:       req.Title,
		Description: req.Description,
		WorkflowID:  req.WorkflowID,
		CreatedBy:   req.CreatedBy.toModel(),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ticket)
}

func (h *APIHandlers) GetTicket(c fiber.Ctx) error {
	number := c.Params("number")
	if number == "" {
		return badRequest(c, "Ticket number is required")
	}

	ticket, err := h.ticketService.FetchByNumber(c.Context(), number)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ticket)
}

func (h *APIHandlers) ListTickets(c fiber.Ctx) error {
	tickets, err := h.ticketService.List(c.Context(), services.ListTicketsRequest{
		AssigneeID: c.Query("assignee_id"),
		Status:     c.Query("status"),
		WorkflowID: c.Query("workflow_id"),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"tickets":     tickets,
		"total_count": len(tickets),
	})
}

// ExecuteAction submits one workflow action against a ticket. The envelope
// carries the action kind and the actor; the action-specific fields sit in
// the same JSON object and are decoded by the action parser.
func (h *APIHandlers) ExecuteAction(c fiber.Ctx) error {
	number := c.Params("number")
	if number == "" {
		return badRequest(c, "Ticket number is required")
	}

	body := c.Body()

	var req ExecuteActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.ticketService.ExecuteAction(
		c.Context(),
		number,
		req.PerformedBy.toModel(),
		actions.Kind(req.Action),
		body,
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	wf := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
	}

	if len(req.Document) > 0 {
		doc, err := decodeDocument(req.Document)
		if err != nil {
			return badRequest(c, err.Error())
		}

		wf.Nodes = doc.Nodes
		wf.Edges = doc.Edges
	}

	created, err := h.workflowService.Create(c.Context(), wf)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	doc, err := decodeDocument(req.Document)
	if err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), id, doc.Nodes, doc.Edges)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	published, err := h.workflowService.Publish(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// decodeDocument schema-validates a raw editor export and decodes it.
func decodeDocument(raw json.RawMessage) (*graphDocument, error) {
	if err := workflow.ValidateDocument(raw); err != nil {
		return nil, err
	}

	var doc graphDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}
