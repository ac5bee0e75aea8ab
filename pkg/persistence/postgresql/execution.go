package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

// ExecutionRepository handles flow execution state persistence.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Create inserts a new execution row.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.FlowExecution) error {
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

	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	metadataJSON, err := json.Marshal(execution.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal execution metadata: %w", err)
	}

	query := `
		INSERT INTO flow_executions (id, flow_id, whatsapp_number_id, contact_number, status, current_node_id, context, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		execution.WhatsAppNumberID,
		execution.ContactNumber,
		execution.Status,
		nullable(execution.CurrentNodeID),
		contextJSON,
		metadataJSON,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// GetByID returns an execution by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.FlowExecution, error) {
	query := `
		SELECT id, flow_id, whatsapp_number_id, contact_number, status, current_node_id, context, metadata, created_at, updated_at
		FROM flow_executions
		WHERE id = $1
	`

	var (
		execution     models.FlowExecution
		currentNodeID sql.NullString
		contextJSON   []byte
		metadataJSON  []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&execution.ID,
		&execution.FlowID,
		&execution.WhatsAppNumberID,
		&execution.ContactNumber,
		&execution.Status,
		&currentNodeID,
		&contextJSON,
		&metadataJSON,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	execution.CurrentNodeID = currentNodeID.String

	if contextJSON != nil {
		err := json.Unmarshal(contextJSON, &execution.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
		}
	}

	if metadataJSON != nil {
		err := json.Unmarshal(metadataJSON, &execution.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution metadata: %w", err)
		}
	}

	return &execution, nil
}

// Update persists current node, status, and context. The WHERE clause
// refuses writes to rows already in a terminal status, making terminal
// states final at the storage layer as well as in the engine.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.FlowExecution) error {
	execution.UpdatedAt = time.Now().UTC()

	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	query := `
		UPDATE flow_executions
		SET status = $2, current_node_id = $3, context = $4, updated_at = $5
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		nullable(execution.CurrentNodeID),
		contextJSON,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		exists, err := r.exists(ctx, execution.ID)
		if err != nil {
			return err
		}

		if !exists {
			return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
		}

		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionFinished)
	}

	return nil
}

func (r *ExecutionRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM flow_executions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, persistence.NewExecutionError("Exists", id, err)
	}

	return exists, nil
}

// LogRepository is the append-only audit sink backed by flow_execution_logs.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLogRepository creates a new log repository.
func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger}
}

// Append inserts one log row. Rows are never updated or deleted here.
func (r *LogRepository) Append(ctx context.Context, entry *models.FlowExecutionLog) error {
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

	inputJSON, err := json.Marshal(entry.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal log input data: %w", err)
	}

	outputJSON, err := json.Marshal(entry.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal log output data: %w", err)
	}

	query := `
		INSERT INTO flow_execution_logs (id, execution_id, node_id, action, input_data, output_data, status, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.NodeID,
		entry.Action,
		inputJSON,
		outputJSON,
		entry.Status,
		nullable(entry.ErrorMessage),
		entry.DurationMS,
		entry.CreatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Append", entry.ExecutionID, err)
	}

	return nil
}

// ListByExecution returns the full step history of an execution in
// traversal order.
func (r *LogRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.FlowExecutionLog, error) {
	query := `
		SELECT id, execution_id, node_id, action, input_data, output_data, status, error_message, duration_ms, created_at
		FROM flow_execution_logs
		WHERE execution_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("ListByExecution", executionID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.FlowExecutionLog, 0)

	for rows.Next() {
		var (
			entry        models.FlowExecutionLog
			errorMessage sql.NullString
			inputJSON    []byte
			outputJSON   []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.NodeID,
			&entry.Action,
			&inputJSON,
			&outputJSON,
			&entry.Status,
			&errorMessage,
			&entry.DurationMS,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}

		entry.ErrorMessage = errorMessage.String

		if inputJSON != nil {
			err := json.Unmarshal(inputJSON, &entry.InputData)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal log input data: %w", err)
			}
		}

		if outputJSON != nil {
			err := json.Unmarshal(outputJSON, &entry.OutputData)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal log output data: %w", err)
			}
		}

		logs = append(logs, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	return logs, nil
}

// PurgeOlderThan removes log rows created before the cutoff.
func (r *LogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM flow_execution_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge execution logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
