package models

// NodeType is the kind of a flow node. The set is closed: the executor
// registry refuses anything outside it.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeMessage   NodeType = "message"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeEnd       NodeType = "end"
)

// KnownNodeTypes lists every node type the engine can execute.
var KnownNodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeMessage,
	NodeTypeCondition,
	NodeTypeAction,
	NodeTypeEnd,
}

// FlowNode is a vertex in a flow graph. NodeID is unique within the flow and
// stable across edits; Data carries the type-specific payload (message text,
// condition expression, action descriptor, end reason).
type FlowNode struct {
	FlowID    string         `json:"flow_id"`
	NodeID    string         `json:"node_id"   validate:"required"`
	Type      NodeType       `json:"type"      validate:"required"`
	PositionX float64        `json:"position_x"` // Editor layout only, irrelevant to execution
	PositionY float64        `json:"position_y"`
	Data      map[string]any `json:"data"`
}

// Condition branch handles produced by condition nodes and matched against
// FlowEdge.SourceHandle during traversal.
const (
	HandleTrue  = "true"
	HandleFalse = "false"
)

// FlowEdge is a directed connection between two nodes of the same flow.
// SourceHandle discriminates condition branches ("true"/"false").
type FlowEdge struct {
	FlowID       string         `json:"flow_id"`
	EdgeID       string         `json:"edge_id" validate:"required"`
	Source       string         `json:"source"  validate:"required"`
	Target       string         `json:"target"  validate:"required"`
	SourceHandle string         `json:"source_handle,omitempty"`
	TargetHandle string         `json:"target_handle,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}
