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
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

const flowColumns = `
	id
  , name
  , description
  , status
  , trigger_conditions
  , metadata
  , created_by
  , created_at
  , updated_at
`

// List returns all flows, newest first.
func (r *FlowRepository) List(ctx context.Context) ([]*models.Flow, error) {
	query := `SELECT` + flowColumns + `FROM flows ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// GetByID returns a flow by its ID, or nil when absent.
func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `SELECT` + flowColumns + `FROM flows WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

// Save inserts or updates a flow.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	triggerJSON, err := json.Marshal(flow.TriggerConditions)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger conditions: %w", err)
	}

	metadataJSON, err := json.Marshal(flow.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO flows (id, name, description, status, trigger_conditions, metadata, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			trigger_conditions = EXCLUDED.trigger_conditions,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		flow.Status,
		triggerJSON,
		metadataJSON,
		flow.CreatedBy,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	return nil
}

// Delete removes a flow. Nodes, edges, executions, and logs cascade.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	return nil
}

// Structure returns all nodes and edges of a flow, in saved order.
func (r *FlowRepository) Structure(ctx context.Context, flowID string) ([]*models.FlowNode, []*models.FlowEdge, error) {
	nodes, err := r.loadNodes(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	edges, err := r.loadEdges(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}

// SaveStructure atomically replaces the whole node/edge set of a flow.
func (r *FlowRepository) SaveStructure(ctx context.Context, flowID string, nodes []*models.FlowNode, edges []*models.FlowEdge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM flow_edges WHERE flow_id = $1`, flowID)
	if err != nil {
		return fmt.Errorf("failed to delete existing edges: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM flow_nodes WHERE flow_id = $1`, flowID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	for _, node := range nodes {
		dataJSON, marshalErr := json.Marshal(node.Data)
		if marshalErr != nil {
			err = fmt.Errorf("failed to marshal node data: %w", marshalErr)

			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO flow_nodes (flow_id, node_id, node_type, position_x, position_y, data)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, flowID, node.NodeID, node.Type, node.PositionX, node.PositionY, dataJSON)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.NodeID, err)
		}
	}

	for _, edge := range edges {
		dataJSON, marshalErr := json.Marshal(edge.Data)
		if marshalErr != nil {
			err = fmt.Errorf("failed to marshal edge data: %w", marshalErr)

			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO flow_edges (flow_id, edge_id, source, target, source_handle, target_handle, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, flowID, edge.EdgeID, edge.Source, edge.Target, nullable(edge.SourceHandle), nullable(edge.TargetHandle), dataJSON)
		if err != nil {
			return fmt.Errorf("failed to save edge %s: %w", edge.EdgeID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *FlowRepository) loadNodes(ctx context.Context, flowID string) ([]*models.FlowNode, error) {
	query := `
		SELECT node_id, node_type, position_x, position_y, data
		FROM flow_nodes
		WHERE flow_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow nodes: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	nodes := make([]*models.FlowNode, 0)

	for rows.Next() {
		var (
			node     models.FlowNode
			dataJSON []byte
		)

		err := rows.Scan(&node.NodeID, &node.Type, &node.PositionX, &node.PositionY, &dataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		node.FlowID = flowID

		if dataJSON != nil {
			err := json.Unmarshal(dataJSON, &node.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal node data: %w", err)
			}
		}

		nodes = append(nodes, &node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (r *FlowRepository) loadEdges(ctx context.Context, flowID string) ([]*models.FlowEdge, error) {
	query := `
		SELECT edge_id, source, target, source_handle, target_handle, data
		FROM flow_edges
		WHERE flow_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow edges: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	edges := make([]*models.FlowEdge, 0)

	for rows.Next() {
		var (
			edge                       models.FlowEdge
			sourceHandle, targetHandle sql.NullString
			dataJSON                   []byte
		)

		err := rows.Scan(&edge.EdgeID, &edge.Source, &edge.Target, &sourceHandle, &targetHandle, &dataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edge.FlowID = flowID
		edge.SourceHandle = sourceHandle.String
		edge.TargetHandle = targetHandle.String

		if dataJSON != nil {
			err := json.Unmarshal(dataJSON, &edge.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal edge data: %w", err)
			}
		}

		edges = append(edges, &edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

func scanFlow(row interface{ Scan(dest ...any) error }) (*models.Flow, error) {
	var (
		flow         models.Flow
		triggerJSON  []byte
		metadataJSON []byte
	)

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&flow.Status,
		&triggerJSON,
		&metadataJSON,
		&flow.CreatedBy,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if triggerJSON != nil {
		err := json.Unmarshal(triggerJSON, &flow.TriggerConditions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger conditions: %w", err)
		}
	}

	if metadataJSON != nil {
		err := json.Unmarshal(metadataJSON, &flow.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &flow, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}
