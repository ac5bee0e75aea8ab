package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapflow/zapflow/pkg/models"
)

// flowDocument is the on-disk representation of a flow and its structure.
// One JSON file per flow keeps the node/edge replacement atomic: a structure
// save rewrites the whole document, like the transactional replace in the
// SQL layer.
type flowDocument struct {
	Flow  *models.Flow       `json:"flow"`
	Nodes []*models.FlowNode `json:"nodes"`
	Edges []*models.FlowEdge `json:"edges"`
}

// FlowRepository handles flow-related file operations.
type FlowRepository struct {
	root string
	mu   *sync.Mutex
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(root string, mu *sync.Mutex) *FlowRepository {
	return &FlowRepository{root: root, mu: mu}
}

// List returns all flows, newest first.
func (r *FlowRepository) List(ctx context.Context) ([]*models.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	documents, err := r.loadAll()
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0, len(documents))
	for _, document := range documents {
		flows = append(flows, document.Flow)
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})

	return flows, nil
}

// GetByID returns a flow by its ID, or nil when absent.
func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := r.load(id)
	if err != nil {
		return nil, err
	}

	if document == nil {
		return nil, nil
	}

	return document.Flow, nil
}

// Save inserts or updates a flow, preserving any stored structure.
func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	document, err := r.load(flow.ID)
	if err != nil {
		return err
	}

	if document == nil {
		document = &flowDocument{
			Nodes: make([]*models.FlowNode, 0),
			Edges: make([]*models.FlowEdge, 0),
		}
	}

	document.Flow = flow

	return r.store(flow.ID, document)
}

// Delete removes a flow and its structure. Missing flows are a no-op.
func (r *FlowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.flowPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete flow file: %w", err)
	}

	return nil
}

// Structure returns the nodes and edges of a flow, in saved order.
func (r *FlowRepository) Structure(_ context.Context, flowID string) ([]*models.FlowNode, []*models.FlowEdge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := r.load(flowID)
	if err != nil {
		return nil, nil, err
	}

	if document == nil {
		return make([]*models.FlowNode, 0), make([]*models.FlowEdge, 0), nil
	}

	return document.Nodes, document.Edges, nil
}

// SaveStructure replaces the whole node/edge set of a flow.
func (r *FlowRepository) SaveStructure(_ context.Context, flowID string, nodes []*models.FlowNode, edges []*models.FlowEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := r.load(flowID)
	if err != nil {
		return err
	}

	if document == nil {
		return fmt.Errorf("flow not found: %s", flowID)
	}

	for _, node := range nodes {
		node.FlowID = flowID
	}

	for _, edge := range edges {
		edge.FlowID = flowID
	}

	document.Nodes = nodes
	document.Edges = edges

	return r.store(flowID, document)
}

func (r *FlowRepository) flowPath(id string) string {
	return path.Join(r.root, "flows", id+".json")
}

func (r *FlowRepository) load(id string) (*flowDocument, error) {
	data, err := os.ReadFile(r.flowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	var document flowDocument

	err = json.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %w", id, err)
	}

	return &document, nil
}

func (r *FlowRepository) store(id string, document *flowDocument) error {
	err := os.MkdirAll(path.Join(r.root, "flows"), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create flows directory: %w", err)
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %w", id, err)
	}

	err = os.WriteFile(r.flowPath(id), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write flow file: %w", err)
	}

	return nil
}

func (r *FlowRepository) loadAll() ([]*flowDocument, error) {
	flowsDir := path.Join(r.root, "flows")

	if _, err := os.Stat(flowsDir); os.IsNotExist(err) {
		return make([]*flowDocument, 0), nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(flowsDir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list flow files: %w", err)
	}

	documents := make([]*flowDocument, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		document, err := r.load(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if document != nil {
			documents = append(documents, document)
		}
	}

	return documents, nil
}
