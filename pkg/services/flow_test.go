package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/executors"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence/file"
)

func newFlowService(t *testing.T) *Flow {
	t.Helper()

	return NewFlow(file.NewPersistence(t.TempDir()))
}

func validStructure() ([]*models.FlowNode, []*models.FlowEdge) {
	nodes := []*models.FlowNode{
		{NodeID: "start-1", Type: models.NodeTypeStart},
		{NodeID: "msg-1", Type: models.NodeTypeMessage, Data: map[string]any{"message": "oi"}},
		{NodeID: "end-1", Type: models.NodeTypeEnd},
	}
	edges := []*models.FlowEdge{
		{EdgeID: "e1", Source: "start-1", Target: "msg-1"},
		{EdgeID: "e2", Source: "msg-1", Target: "end-1"},
	}

	return nodes, edges
}

func TestFlow_CreateDefaultsToDraft(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)

	flow, err := service.Create(context.Background(), &models.Flow{Name: "boas-vindas"})
	require.NoError(t, err)
	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, models.FlowStatusDraft, flow.Status)
}

func TestFlow_CreateRequiresName(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)

	_, err := service.Create(context.Background(), &models.Flow{Name: "   "})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFlow_CreateRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)

	_, err := service.Create(context.Background(), &models.Flow{Name: "fluxo", Status: "archived"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFlow_GetMissing(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)

	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFlow_UpdatePartialFields(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)
	ctx := context.Background()

	flow, err := service.Create(ctx, &models.Flow{Name: "fluxo"})
	require.NoError(t, err)

	updated, err := service.Update(ctx, flow.ID, &models.Flow{Status: models.FlowStatusActive})
	require.NoError(t, err)
	assert.Equal(t, "fluxo", updated.Name)
	assert.Equal(t, models.FlowStatusActive, updated.Status)
}

func TestFlow_SaveStructureValidStructure(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)
	ctx := context.Background()

	flow, err := service.Create(ctx, &models.Flow{Name: "fluxo"})
	require.NoError(t, err)

	nodes, edges := validStructure()
	require.NoError(t, service.SaveStructure(ctx, flow.ID, nodes, edges))

	gotNodes, gotEdges, err := service.Structure(ctx, flow.ID)
	require.NoError(t, err)
	assert.Len(t, gotNodes, 3)
	assert.Len(t, gotEdges, 2)
}

func TestFlow_SaveStructureAcceptsHalfWiredDraft(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)
	ctx := context.Background()

	flow, err := service.Create(ctx, &models.Flow{Name: "fluxo"})
	require.NoError(t, err)

	// An unwired node and no end node. Graph shape is only enforced when
	// an execution starts, so the draft still saves.
	nodes := []*models.FlowNode{
		{NodeID: "start-1", Type: models.NodeTypeStart},
		{NodeID: "msg-1", Type: models.NodeTypeMessage, Data: map[string]any{"message": "oi"}},
	}

	require.NoError(t, service.SaveStructure(ctx, flow.ID, nodes, nil))

	gotNodes, gotEdges, err := service.Structure(ctx, flow.ID)
	require.NoError(t, err)
	assert.Len(t, gotNodes, 2)
	assert.Empty(t, gotEdges)
}

func TestFlow_SaveStructureRejectsMissingNodeData(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)
	ctx := context.Background()

	flow, err := service.Create(ctx, &models.Flow{Name: "fluxo"})
	require.NoError(t, err)

	nodes, edges := validStructure()
	nodes[1].Data = map[string]any{} // message node without message text

	err = service.SaveStructure(ctx, flow.ID, nodes, edges)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "msg-1")
}

func TestFlow_SaveStructureRejectsBadActionType(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)
	ctx := context.Background()

	flow, err := service.Create(ctx, &models.Flow{Name: "fluxo"})
	require.NoError(t, err)

	nodes := []*models.FlowNode{
		{NodeID: "start-1", Type: models.NodeTypeStart},
		{NodeID: "act-1", Type: models.NodeTypeAction, Data: map[string]any{"actionType": "launch_rocket"}},
		{NodeID: "end-1", Type: models.NodeTypeEnd},
	}
	edges := []*models.FlowEdge{
		{EdgeID: "e1", Source: "start-1", Target: "act-1"},
		{EdgeID: "e2", Source: "act-1", Target: "end-1"},
	}

	err = service.SaveStructure(ctx, flow.ID, nodes, edges)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFlow_DeleteRemovesFlow(t *testing.T) {
	t.Parallel()

	service := newFlowService(t)
	ctx := context.Background()

	flow, err := service.Create(ctx, &models.Flow{Name: "fluxo"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, flow.ID))

	_, err = service.Get(ctx, flow.ID)
	assert.True(t, IsNotFound(err))
}

func TestFlow_SchemasCoverAllNodeTypes(t *testing.T) {
	t.Parallel()

	schemas := executors.DataSchemas()

	for _, nodeType := range models.KnownNodeTypes {
		assert.Contains(t, schemas, nodeType)
	}
}
