// Package executors implements one node executor per flow node type and the
// registry the engine resolves them from.
package executors

import (
	"errors"
	"fmt"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

// ErrUnsupportedNodeType is returned when a graph carries a node type the
// registry has no executor for.
var ErrUnsupportedNodeType = errors.New("unsupported node type")

// Registry maps node types to their executors.
type Registry struct {
	executors map[models.NodeType]protocol.NodeExecutor
}

// NewRegistry builds a registry with the full executor set wired to the
// given adapters.
func NewRegistry(adapters protocol.Adapters) *Registry {
	registry := &Registry{executors: make(map[models.NodeType]protocol.NodeExecutor)}

	registry.Register(models.NodeTypeStart, NewStartExecutor())
	registry.Register(models.NodeTypeMessage, NewMessageExecutor(adapters.Sender))
	registry.Register(models.NodeTypeCondition, NewConditionExecutor(adapters.Completer))
	registry.Register(models.NodeTypeAction, NewActionExecutor(adapters.Webhook, adapters.Transfer))
	registry.Register(models.NodeTypeEnd, NewEndExecutor())

	return registry
}

// Register adds or replaces the executor for a node type.
func (r *Registry) Register(nodeType models.NodeType, executor protocol.NodeExecutor) {
	r.executors[nodeType] = executor
}

// Resolve returns the executor for a node type.
func (r *Registry) Resolve(nodeType models.NodeType) (protocol.NodeExecutor, error) {
	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNodeType, nodeType)
	}

	return executor, nil
}
