package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last.
	for _, table := range []string{"flow_execution_logs", "flow_executions", "flow_edges", "flow_nodes", "flows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("zapflow_test"),
			postgres.WithUsername("zapflow"),
			postgres.WithPassword("zapflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persist, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)

		err = persist.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persist, ctx, databaseURL
}

func saveFlow(ctx context.Context, t *testing.T, persist *postgresql.Persistence) *models.Flow {
	t.Helper()

	flow := &models.Flow{
		ID:     uuid.NewString(),
		Name:   "atendimento",
		Status: models.FlowStatusActive,
		TriggerConditions: map[string]any{
			"keywords": []any{"oi"},
		},
	}
	require.NoError(t, persist.FlowRepository().Save(ctx, flow))

	return flow
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"flows", "flow_nodes", "flow_edges", "flow_executions", "flow_execution_logs", "schema_migrations"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestFlowRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := saveFlow(ctx, t, p)

	stored, err := p.FlowRepository().GetByID(ctx, flow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, flow.Name, stored.Name)
	assert.Equal(t, models.FlowStatusActive, stored.Status)
	assert.Equal(t, []any{"oi"}, stored.TriggerConditions["keywords"])
}

func TestFlowRepository_GetMissingReturnsNil(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	stored, err := p.FlowRepository().GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestFlowRepository_StructureRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := saveFlow(ctx, t, p)

	nodes := []*models.FlowNode{
		{NodeID: "start-1", Type: models.NodeTypeStart},
		{NodeID: "msg-1", Type: models.NodeTypeMessage, Data: map[string]any{"message": "Olá"}},
		{NodeID: "end-1", Type: models.NodeTypeEnd},
	}
	edges := []*models.FlowEdge{
		{EdgeID: "e1", Source: "start-1", Target: "msg-1"},
		{EdgeID: "e2", Source: "msg-1", Target: "end-1"},
	}

	require.NoError(t, p.FlowRepository().SaveStructure(ctx, flow.ID, nodes, edges))

	storedNodes, storedEdges, err := p.FlowRepository().Structure(ctx, flow.ID)
	require.NoError(t, err)
	assert.Len(t, storedNodes, 3)
	assert.Len(t, storedEdges, 2)

	// Replace-all: saving a smaller structure removes the rest.
	require.NoError(t, p.FlowRepository().SaveStructure(ctx, flow.ID, nodes[:1], nil))

	storedNodes, storedEdges, err = p.FlowRepository().Structure(ctx, flow.ID)
	require.NoError(t, err)
	assert.Len(t, storedNodes, 1)
	assert.Empty(t, storedEdges)
}

func TestExecutionRepository_Lifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := saveFlow(ctx, t, p)

	execution := &models.FlowExecution{
		ID:            uuid.NewString(),
		FlowID:        flow.ID,
		ContactNumber: "5511988887777",
		Status:        models.ExecutionStatusRunning,
		Context:       map[string]any{"name": "Ana"},
	}
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	execution.Status = models.ExecutionStatusCompleted
	execution.CurrentNodeID = "end-1"
	require.NoError(t, p.ExecutionRepository().Update(ctx, execution))

	stored, err := p.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Equal(t, "end-1", stored.CurrentNodeID)
	assert.Equal(t, "Ana", stored.Context["name"])
}

func TestExecutionRepository_TerminalIsFinal(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := saveFlow(ctx, t, p)

	execution := &models.FlowExecution{
		ID:     uuid.NewString(),
		FlowID: flow.ID,
		Status: models.ExecutionStatusCompleted,
	}
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	execution.Status = models.ExecutionStatusRunning

	err := p.ExecutionRepository().Update(ctx, execution)
	assert.True(t, persistence.IsExecutionFinished(err))
}

func TestLogRepository_AppendListPurge(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := saveFlow(ctx, t, p)

	execution := &models.FlowExecution{
		ID:     uuid.NewString(),
		FlowID: flow.ID,
		Status: models.ExecutionStatusRunning,
	}
	require.NoError(t, p.ExecutionRepository().Create(ctx, execution))

	old := &models.FlowExecutionLog{
		ID:          uuid.NewString(),
		ExecutionID: execution.ID,
		NodeID:      "start-1",
		Action:      "execute_start",
		Status:      models.LogStatusSuccess,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
	recent := &models.FlowExecutionLog{
		ID:          uuid.NewString(),
		ExecutionID: execution.ID,
		NodeID:      "msg-1",
		Action:      "execute_message",
		Status:      models.LogStatusSuccess,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, p.LogRepository().Append(ctx, old))
	require.NoError(t, p.LogRepository().Append(ctx, recent))

	logs, err := p.LogRepository().ListByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "execute_start", logs[0].Action)

	purged, err := p.LogRepository().PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	logs, err = p.LogRepository().ListByExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
