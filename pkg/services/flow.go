package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/zapflow/zapflow/pkg/executors"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

// Flow implements flow definition management.
type Flow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewFlow creates a new flow service.
func NewFlow(persist persistence.Persistence) *Flow {
	return &Flow{
		persistence: persist,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns all flows, newest first.
func (s *Flow) List(ctx context.Context) ([]*models.Flow, error) {
	return s.persistence.FlowRepository().List(ctx)
}

// Get returns one flow.
func (s *Flow) Get(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := s.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	if flow == nil {
		return nil, persistence.NewFlowError("Get", id, ErrFlowNotFound)
	}

	return flow, nil
}

// Create validates and persists a new flow.
func (s *Flow) Create(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if strings.TrimSpace(flow.Name) == "" {
		return nil, ErrFlowNameRequired
	}

	if flow.Status == "" {
		flow.Status = models.FlowStatusDraft
	}

	if !flow.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, flow.Status)
	}

	flow.ID = ""

	err := s.validator.Struct(flow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	err = s.persistence.FlowRepository().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	return flow, nil
}

// Update validates and persists changes to an existing flow.
func (s *Flow) Update(ctx context.Context, id string, update *models.Flow) (*models.Flow, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != "" {
		existing.Name = update.Name
	}

	existing.Description = update.Description

	if update.Status != "" {
		if !update.Status.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, update.Status)
		}

		existing.Status = update.Status
	}

	if update.TriggerConditions != nil {
		existing.TriggerConditions = update.TriggerConditions
	}

	if update.Metadata != nil {
		existing.Metadata = update.Metadata
	}

	err = s.validator.Struct(existing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	err = s.persistence.FlowRepository().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	return existing, nil
}

// Delete removes a flow and everything attached to it.
func (s *Flow) Delete(ctx context.Context, id string) error {
	_, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	return s.persistence.FlowRepository().Delete(ctx, id)
}

// Structure returns the nodes and edges of a flow.
func (s *Flow) Structure(ctx context.Context, id string) ([]*models.FlowNode, []*models.FlowEdge, error) {
	_, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return s.persistence.FlowRepository().Structure(ctx, id)
}

// SaveStructure validates and atomically replaces the whole node/edge set
// of a flow. Validation covers each node's Data payload against the schema
// for its type. Graph shape is deliberately not checked here so drafts can
// be saved half-wired; the engine validates executability when an execution
// starts.
func (s *Flow) SaveStructure(ctx context.Context, id string, nodes []*models.FlowNode, edges []*models.FlowEdge) error {
	_, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.validateNodeData(nodes)
	if err != nil {
		return err
	}

	return s.persistence.FlowRepository().SaveStructure(ctx, id, nodes, edges)
}

func (s *Flow) validateNodeData(nodes []*models.FlowNode) error {
	schemas := executors.DataSchemas()

	for _, node := range nodes {
		schema, ok := schemas[node.Type]
		if !ok {
			return fmt.Errorf("%w: unknown node type %q on node %s", ErrInvalidStructure, node.Type, node.NodeID)
		}

		data := node.Data
		if data == nil {
			data = map[string]any{}
		}

		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
		if err != nil {
			return fmt.Errorf("failed to validate node %s: %w", node.NodeID, err)
		}

		if !result.Valid() {
			descriptions := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				descriptions = append(descriptions, desc.String())
			}

			return fmt.Errorf("%w: node %s: %s", ErrInvalidStructure, node.NodeID, strings.Join(descriptions, "; "))
		}
	}

	return nil
}
