// Package web provides the REST API for flow management and execution
// control.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/zapflow/zapflow/pkg/adapters/mock"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/services"
)

type APIHandlers struct {
	flowService      *services.Flow
	executionService *services.Execution
	validator        *validator.Validate
}

func NewAPIHandlers(
	flowService *services.Flow,
	executionService *services.Execution,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService:      flowService,
		executionService: executionService,
		validator:        validate,
	}
}

// Register mounts every route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	flows := app.Group("/flows")
	flows.Get("/", h.ListFlows)
	flows.Post("/", h.CreateFlow)
	flows.Get("/:id", h.GetFlow)
	flows.Patch("/:id", h.UpdateFlow)
	flows.Delete("/:id", h.DeleteFlow)
	flows.Get("/:id/structure", h.GetStructure)
	flows.Post("/:id/structure", h.SaveStructure)
	flows.Post("/:id/execute", h.ExecuteFlow)
	flows.Post("/:id/test", h.TestFlow)

	executions := app.Group("/flow-executions")
	executions.Get("/:id", h.GetExecution)
	executions.Get("/:id/logs", h.GetExecutionLogs)
	executions.Post("/:id/resume", h.ResumeExecution)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) ListFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flows)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var request CreateFlowRequest

	err := c.Bind().Body(&request)
	if err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	err = h.validator.Struct(request)
	if err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.Create(c.Context(), &models.Flow{
		Name:              request.Name,
		Description:       request.Description,
		Status:            request.Status,
		TriggerConditions: request.TriggerConditions,
		Metadata:          request.Metadata,
		CreatedBy:         request.CreatedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	var request UpdateFlowRequest

	err := c.Bind().Body(&request)
	if err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	flow, err := h.flowService.Update(c.Context(), c.Params("id"), &models.Flow{
		Name:              request.Name,
		Description:       request.Description,
		Status:            request.Status,
		TriggerConditions: request.TriggerConditions,
		Metadata:          request.Metadata,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	err := h.flowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetStructure(c fiber.Ctx) error {
	nodes, edges, err := h.flowService.Structure(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StructureResponse{Nodes: nodes, Edges: edges})
}

func (h *APIHandlers) SaveStructure(c fiber.Ctx) error {
	var request StructureRequest

	err := c.Bind().Body(&request)
	if err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	err = h.flowService.SaveStructure(c.Context(), c.Params("id"), request.Nodes, request.Edges)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ExecuteFlow(c fiber.Ctx) error {
	var request ExecuteFlowRequest

	err := c.Bind().Body(&request)
	if err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	err = h.validator.Struct(request)
	if err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executionService.Start(
		c.Context(),
		c.Params("id"),
		request.WhatsAppNumberID,
		request.ContactNumber,
		request.InitialContext,
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newExecutionResponse(execution))
}

func (h *APIHandlers) TestFlow(c fiber.Ctx) error {
	var request TestFlowRequest

	err := c.Bind().Body(&request)
	if err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	err = h.validator.Struct(request)
	if err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executionService.Test(
		c.Context(),
		c.Params("id"),
		request.InputMessage,
		request.ContactNumber,
		request.Context,
		mock.NewAdapters(),
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newExecutionResponse(execution))
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	logs, err := h.executionService.Logs(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(logs)
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	execution, err := h.executionService.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(newExecutionResponse(execution))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.flowService.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"message": message,
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}
