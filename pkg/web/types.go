package web

import (
	"github.com/zapflow/zapflow/pkg/models"
)

// CreateFlowRequest is the POST /flows body.
type CreateFlowRequest struct {
	Name              string            `json:"name"               validate:"required,min=3"`
	Description       string            `json:"description"`
	Status            models.FlowStatus `json:"status"`
	TriggerConditions map[string]any    `json:"trigger_conditions"`
	Metadata          map[string]any    `json:"metadata"`
	CreatedBy         string            `json:"created_by"`
}

// UpdateFlowRequest is the PATCH /flows/:id body. Zero values leave the
// stored field untouched.
type UpdateFlowRequest struct {
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Status            models.FlowStatus `json:"status"`
	TriggerConditions map[string]any    `json:"trigger_conditions"`
	Metadata          map[string]any    `json:"metadata"`
}

// StructureRequest is the POST /flows/:id/structure body: replace-all
// semantics over the flow's nodes and edges.
type StructureRequest struct {
	Nodes []*models.FlowNode `json:"nodes" validate:"required"`
	Edges []*models.FlowEdge `json:"edges"`
}

// StructureResponse is the GET /flows/:id/structure payload.
type StructureResponse struct {
	Nodes []*models.FlowNode `json:"nodes"`
	Edges []*models.FlowEdge `json:"edges"`
}

// ExecuteFlowRequest is the POST /flows/:id/execute body.
type ExecuteFlowRequest struct {
	WhatsAppNumberID string         `json:"whatsapp_number_id"`
	ContactNumber    string         `json:"contact_number"     validate:"required"`
	InitialContext   map[string]any `json:"initial_context"`
}

// TestFlowRequest is the POST /flows/:id/test body.
type TestFlowRequest struct {
	InputMessage  string         `json:"input_message"  validate:"required"`
	ContactNumber string         `json:"contact_number"`
	Context       map[string]any `json:"context"`
}

// ExecutionResponse reports the outcome of starting, testing, or resuming
// an execution.
type ExecutionResponse struct {
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	CurrentNode string                 `json:"current_node"`
}

func newExecutionResponse(execution *models.FlowExecution) ExecutionResponse {
	return ExecutionResponse{
		ExecutionID: execution.ID,
		Status:      execution.Status,
		CurrentNode: execution.CurrentNodeID,
	}
}
