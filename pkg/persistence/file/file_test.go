package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

func TestFlowRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	flow := &models.Flow{
		Name:   "welcome",
		Status: models.FlowStatusDraft,
	}

	require.NoError(t, p.FlowRepository().Save(ctx, flow))
	require.NotEmpty(t, flow.ID)

	loaded, err := p.FlowRepository().GetByID(ctx, flow.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "welcome", loaded.Name)
	assert.Equal(t, models.FlowStatusDraft, loaded.Status)
}

func TestFlowRepository_GetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	flow, err := p.FlowRepository().GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, flow)
}

func TestFlowRepository_StructureRoundTrip(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	flow := &models.Flow{Name: "support", Status: models.FlowStatusActive}
	require.NoError(t, p.FlowRepository().Save(ctx, flow))

	nodes := []*models.FlowNode{
		{NodeID: "start-1", Type: models.NodeTypeStart},
		{NodeID: "msg-1", Type: models.NodeTypeMessage, Data: map[string]any{"message": "hi"}},
	}
	edges := []*models.FlowEdge{
		{EdgeID: "e1", Source: "start-1", Target: "msg-1"},
	}

	require.NoError(t, p.FlowRepository().SaveStructure(ctx, flow.ID, nodes, edges))

	gotNodes, gotEdges, err := p.FlowRepository().Structure(ctx, flow.ID)
	require.NoError(t, err)
	require.Len(t, gotNodes, 2)
	require.Len(t, gotEdges, 1)
	assert.Equal(t, flow.ID, gotNodes[0].FlowID)
	assert.Equal(t, "start-1", gotNodes[0].NodeID)
	assert.Equal(t, "msg-1", gotEdges[0].Target)
}

func TestFlowRepository_SaveStructureMissingFlow(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	err := p.FlowRepository().SaveStructure(context.Background(), "missing", nil, nil)
	require.Error(t, err)
}

func TestFlowRepository_SavePreservesStructure(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	flow := &models.Flow{Name: "faq", Status: models.FlowStatusDraft}
	require.NoError(t, p.FlowRepository().Save(ctx, flow))

	nodes := []*models.FlowNode{{NodeID: "start-1", Type: models.NodeTypeStart}}
	require.NoError(t, p.FlowRepository().SaveStructure(ctx, flow.ID, nodes, nil))

	flow.Name = "faq-v2"
	require.NoError(t, p.FlowRepository().Save(ctx, flow))

	gotNodes, _, err := p.FlowRepository().Structure(ctx, flow.ID)
	require.NoError(t, err)
	assert.Len(t, gotNodes, 1)
}

func TestExecutionRepository_TerminalUpdateRefused(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.FlowExecution{
		FlowID: "flow-1",
		Status: models.ExecutionStatusRunning,
	}

	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	execution.Status = models.ExecutionStatusCompleted
	require.NoError(t, p.ExecutionRepository().Update(ctx, execution))

	execution.Status = models.ExecutionStatusRunning

	err := p.ExecutionRepository().Update(ctx, execution)
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionFinished(err))
}

func TestExecutionRepository_GetMissing(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	_, err := p.ExecutionRepository().GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestLogRepository_AppendAndList(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	for i, nodeID := range []string{"start-1", "msg-1", "end-1"} {
		entry := &models.FlowExecutionLog{
			ExecutionID: "exec-1",
			NodeID:      nodeID,
			Action:      "execute_message",
			Status:      models.LogStatusSuccess,
			CreatedAt:   time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, p.LogRepository().Append(ctx, entry))
	}

	logs, err := p.LogRepository().ListByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "start-1", logs[0].NodeID)
	assert.Equal(t, "end-1", logs[2].NodeID)
}

func TestLogRepository_PurgeOlderThan(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	old := &models.FlowExecutionLog{
		ExecutionID: "exec-1",
		NodeID:      "start-1",
		Action:      "execute_start",
		Status:      models.LogStatusSuccess,
		CreatedAt:   time.Now().UTC().Add(-48 * time.Hour),
	}
	recent := &models.FlowExecutionLog{
		ExecutionID: "exec-1",
		NodeID:      "end-1",
		Action:      "execute_end",
		Status:      models.LogStatusSuccess,
		CreatedAt:   time.Now().UTC(),
	}

	require.NoError(t, p.LogRepository().Append(ctx, old))
	require.NoError(t, p.LogRepository().Append(ctx, recent))

	purged, err := p.LogRepository().PurgeOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	logs, err := p.LogRepository().ListByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "end-1", logs[0].NodeID)
}
