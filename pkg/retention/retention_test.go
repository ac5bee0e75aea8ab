package retention_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/persistence/file"
	"github.com/zapflow/zapflow/pkg/retention"
)

func appendLogAt(t *testing.T, logs persistence.LogRepository, executionID string, createdAt time.Time) {
	t.Helper()

	err := logs.Append(context.Background(), &models.FlowExecutionLog{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		NodeID:      "node-1",
		Action:      "execute_message",
		Status:      models.LogStatusSuccess,
		CreatedAt:   createdAt,
	})
	require.NoError(t, err)
}

func TestSweepPurgesOldLogs(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	logs := persist.LogRepository()

	now := time.Now()
	appendLogAt(t, logs, "exec-1", now.Add(-120*24*time.Hour))
	appendLogAt(t, logs, "exec-1", now.Add(-100*24*time.Hour))
	appendLogAt(t, logs, "exec-1", now.Add(-time.Hour))

	sweeper := retention.NewSweeper(logs, slog.Default(), retention.WithMaxAge(retention.DefaultMaxAge))

	purged, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	remaining, err := logs.ListByExecution(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSweepNothingToPurge(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	logs := persist.LogRepository()

	sweeper := retention.NewSweeper(logs, slog.Default(), retention.WithMaxAge(24*time.Hour))

	purged, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	sweeper := retention.NewSweeper(persist.LogRepository(), slog.Default(), retention.WithSchedule("not a schedule"))

	assert.Error(t, sweeper.Start())
}
