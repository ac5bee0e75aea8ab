package executors

import (
	"context"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

// EndExecutor marks the execution complete. The engine stops traversal when
// a result reports Terminal.
type EndExecutor struct{}

func NewEndExecutor() *EndExecutor {
	return &EndExecutor{}
}

func (e *EndExecutor) Execute(_ context.Context, node *models.FlowNode, _ map[string]any) (protocol.ExecutionResult, error) {
	output := map[string]any{"message": "Flow completed"}

	if reason, ok := node.Data["reason"].(string); ok && reason != "" {
		output["reason"] = reason
	}

	return protocol.ExecutionResult{
		Output:   output,
		Terminal: true,
	}, nil
}
