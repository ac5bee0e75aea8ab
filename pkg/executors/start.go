package executors

import (
	"context"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

// StartExecutor handles the entry node of a flow. It has no side effects.
type StartExecutor struct{}

func NewStartExecutor() *StartExecutor {
	return &StartExecutor{}
}

func (e *StartExecutor) Execute(_ context.Context, _ *models.FlowNode, _ map[string]any) (protocol.ExecutionResult, error) {
	return protocol.ExecutionResult{
		Output: map[string]any{"message": "Flow started"},
	}, nil
}
