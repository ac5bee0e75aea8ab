// Package persistence provides the data storage abstraction for flows,
// flow structures, executions, and execution logs.
package persistence

import (
	"context"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
)

type Persistence interface {
	FlowRepository() FlowRepository
	ExecutionRepository() ExecutionRepository
	LogRepository() LogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores flow definitions and their graph structure. The
// engine only ever reads from it; writes come from the editor/API side.
type FlowRepository interface {
	List(ctx context.Context) ([]*models.Flow, error)
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error

	// Structure returns all nodes and edges of a flow, in saved order.
	Structure(ctx context.Context, flowID string) ([]*models.FlowNode, []*models.FlowEdge, error)

	// SaveStructure atomically replaces the whole node/edge set of a flow.
	// Structure saves are full-batch, never incremental diffs.
	SaveStructure(ctx context.Context, flowID string, nodes []*models.FlowNode, edges []*models.FlowEdge) error
}

// ExecutionRepository stores flow execution state.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.FlowExecution) error
	GetByID(ctx context.Context, id string) (*models.FlowExecution, error)

	// Update persists current node, status, and context. Implementations
	// must refuse updates to executions already in a terminal status.
	Update(ctx context.Context, execution *models.FlowExecution) error
}

// LogRepository is the append-only audit sink. No update or delete is
// exposed to the engine; retention cleanup is an operator concern handled
// by PurgeOlderThan.
type LogRepository interface {
	Append(ctx context.Context, entry *models.FlowExecutionLog) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.FlowExecutionLog, error)

	// PurgeOlderThan removes log rows created before the cutoff. Used only
	// by the retention sweeper, never by the engine.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
