package protocol

import (
	"context"

	"github.com/zapflow/zapflow/pkg/models"
)

// ExecutionResult is what a node executor reports back to the engine.
//
// Output is merged into the execution context (shallow, later keys win).
// SelectedHandle, when set, restricts edge traversal to edges whose
// source_handle matches (condition branches). Terminal stops traversal and
// completes the execution. Warning marks the step's log row as a warning
// without failing the run.
type ExecutionResult struct {
	Output         map[string]any
	SelectedHandle string
	Terminal       bool
	Warning        string
}

// NodeExecutor performs the side effect or decision of one node type.
//
// Executors never mutate execution state: they are functions over the node
// data and the accumulated context plus calls through the injected adapters.
// The engine is the sole writer of FlowExecution rows.
type NodeExecutor interface {
	Execute(ctx context.Context, node *models.FlowNode, execContext map[string]any) (ExecutionResult, error)
}
