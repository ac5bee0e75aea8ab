package models

import "time"

// ExecutionStatus represents the state of one flow run.
// Completed and failed are terminal: the engine never appends another step
// to an execution once it reaches either.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusPaused    ExecutionStatus = "paused"
)

// IsTerminal reports whether no further node execution may occur.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// FlowExecution is one run of a flow: the central mutable state entity.
// Context is the accumulated key/value map merged across steps; it is owned
// exclusively by the engine invocation driving this execution.
type FlowExecution struct {
	ID               string          `json:"id"`
	FlowID           string          `json:"flow_id"`
	WhatsAppNumberID string          `json:"whatsapp_number_id"`
	ContactNumber    string          `json:"contact_number"`
	Status           ExecutionStatus `json:"status"`
	CurrentNodeID    string          `json:"current_node_id,omitempty"`
	Context          map[string]any  `json:"context"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// LogStatus classifies one executed step.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
	LogStatusWarning LogStatus = "warning"
)

// FlowExecutionLog is one immutable append-only record per executed node.
// Rows are ordered by CreatedAt and form the total step history of a run.
type FlowExecutionLog struct {
	ID           string         `json:"id"`
	ExecutionID  string         `json:"execution_id"`
	NodeID       string         `json:"node_id"`
	Action       string         `json:"action"`
	InputData    map[string]any `json:"input_data,omitempty"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	Status       LogStatus      `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}
