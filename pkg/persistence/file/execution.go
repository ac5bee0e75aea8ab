package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

// ExecutionRepository handles execution state files.
type ExecutionRepository struct {
	root string
	mu   *sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string, mu *sync.Mutex) *ExecutionRepository {
	return &ExecutionRepository{root: root, mu: mu}
}

// Create stores a new execution.
func (r *ExecutionRepository) Create(_ context.Context, execution *models.FlowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	execution.CreatedAt = now
	execution.UpdatedAt = now

	if execution.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution ID: %w", err)
		}

		execution.ID = id.String()
	}

	return r.store(execution)
}

// GetByID returns an execution by its ID.
func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.FlowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(id)
}

// Update persists execution state. Writes to executions already in a
// terminal status are refused, matching the SQL layer.
func (r *ExecutionRepository) Update(_ context.Context, execution *models.FlowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.load(execution.ID)
	if err != nil {
		return err
	}

	if stored.Status.IsTerminal() {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionFinished)
	}

	execution.UpdatedAt = time.Now().UTC()

	return r.store(execution)
}

func (r *ExecutionRepository) executionPath(id string) string {
	return path.Join(r.root, "executions", id+".json")
}

func (r *ExecutionRepository) load(id string) (*models.FlowExecution, error) {
	data, err := os.ReadFile(r.executionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution file: %w", err)
	}

	var execution models.FlowExecution

	err = json.Unmarshal(data, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) store(execution *models.FlowExecution) error {
	err := os.MkdirAll(path.Join(r.root, "executions"), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	err = os.WriteFile(r.executionPath(execution.ID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write execution file: %w", err)
	}

	return nil
}

// LogRepository stores execution logs as one JSON array per execution.
type LogRepository struct {
	root string
	mu   *sync.Mutex
}

// NewLogRepository creates a new log repository.
func NewLogRepository(root string, mu *sync.Mutex) *LogRepository {
	return &LogRepository{root: root, mu: mu}
}

// Append adds one log entry to the execution's log file.
func (r *LogRepository) Append(_ context.Context, entry *models.FlowExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate log ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	logs, err := r.load(entry.ExecutionID)
	if err != nil {
		return err
	}

	logs = append(logs, entry)

	return r.store(entry.ExecutionID, logs)
}

// ListByExecution returns the full step history of an execution in
// traversal order.
func (r *LogRepository) ListByExecution(_ context.Context, executionID string) ([]*models.FlowExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(executionID)
}

// PurgeOlderThan removes log entries created before the cutoff.
func (r *LogRepository) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logsDir := path.Join(r.root, "logs")

	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read logs directory: %w", err)
	}

	var purged int64

	for _, dirEntry := range entries {
		executionID := dirEntry.Name()
		executionID = executionID[:len(executionID)-len(".json")]

		logs, err := r.load(executionID)
		if err != nil {
			return purged, err
		}

		kept := make([]*models.FlowExecutionLog, 0, len(logs))

		for _, entry := range logs {
			if entry.CreatedAt.Before(cutoff) {
				purged++

				continue
			}

			kept = append(kept, entry)
		}

		if len(kept) == len(logs) {
			continue
		}

		err = r.store(executionID, kept)
		if err != nil {
			return purged, err
		}
	}

	return purged, nil
}

func (r *LogRepository) logPath(executionID string) string {
	return path.Join(r.root, "logs", executionID+".json")
}

func (r *LogRepository) load(executionID string) ([]*models.FlowExecutionLog, error) {
	data, err := os.ReadFile(r.logPath(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.FlowExecutionLog, 0), nil
		}

		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	logs := make([]*models.FlowExecutionLog, 0)

	err = json.Unmarshal(data, &logs)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal logs for execution %s: %w", executionID, err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})

	return logs, nil
}

func (r *LogRepository) store(executionID string, logs []*models.FlowExecutionLog) error {
	err := os.MkdirAll(path.Join(r.root, "logs"), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal logs for execution %s: %w", executionID, err)
	}

	err = os.WriteFile(r.logPath(executionID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}

	return nil
}
