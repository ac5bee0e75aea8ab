// Package graph provides the in-memory flow graph the engine traverses.
//
// The node/edge model is a general directed graph, not a DAG: authored
// cycles are legal at save time and only bounded at execution time by the
// engine's step ceiling. Nodes and edges are therefore kept in flat maps and
// slices referenced by stable string IDs instead of object pointers.
package graph

import (
	"errors"
	"fmt"

	"github.com/zapflow/zapflow/pkg/models"
)

var (
	// ErrInvalidGraph indicates a structural violation: zero or multiple
	// start nodes, or an edge referencing a node that does not exist.
	ErrInvalidGraph = errors.New("invalid flow graph")

	// ErrNodeNotFound indicates a lookup for a node ID absent from the
	// graph. During traversal this means a corrupt edge reference.
	ErrNodeNotFound = errors.New("node not found in flow graph")
)

// Graph is an immutable snapshot of one flow's structure. Build it once per
// execution: concurrent edits to the stored flow must not retroactively
// change a running traversal.
type Graph struct {
	flowID    string
	nodes     map[string]*models.FlowNode
	outgoing  map[string][]*models.FlowEdge
	startNode *models.FlowNode
}

// Build indexes nodes and edges and validates the structural invariants:
// exactly one start node, no dangling edge endpoints, and at least one
// outgoing edge on every node that is neither start nor end.
func Build(flowID string, nodes []*models.FlowNode, edges []*models.FlowEdge) (*Graph, error) {
	g := &Graph{
		flowID:   flowID,
		nodes:    make(map[string]*models.FlowNode, len(nodes)),
		outgoing: make(map[string][]*models.FlowEdge, len(nodes)),
	}

	for _, node := range nodes {
		if _, exists := g.nodes[node.NodeID]; exists {
			return nil, fmt.Errorf("%w: duplicate node ID %q in flow %s", ErrInvalidGraph, node.NodeID, flowID)
		}

		g.nodes[node.NodeID] = node

		if node.Type == models.NodeTypeStart {
			if g.startNode != nil {
				return nil, fmt.Errorf("%w: flow %s has more than one start node", ErrInvalidGraph, flowID)
			}

			g.startNode = node
		}
	}

	if g.startNode == nil {
		return nil, fmt.Errorf("%w: flow %s has no start node", ErrInvalidGraph, flowID)
	}

	// Edge order must be stable within one snapshot so fan-out traversal is
	// deterministic; insertion order is preserved.
	for _, edge := range edges {
		if _, ok := g.nodes[edge.Source]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown source node %q", ErrInvalidGraph, edge.EdgeID, edge.Source)
		}

		if _, ok := g.nodes[edge.Target]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown target node %q", ErrInvalidGraph, edge.EdgeID, edge.Target)
		}

		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
	}

	for id, node := range g.nodes {
		if node.Type == models.NodeTypeStart || node.Type == models.NodeTypeEnd {
			continue
		}

		if len(g.outgoing[id]) == 0 {
			return nil, fmt.Errorf("%w: node %q has no outgoing edges", ErrInvalidGraph, id)
		}
	}

	return g, nil
}

// FlowID returns the owning flow's ID.
func (g *Graph) FlowID() string {
	return g.flowID
}

// StartNode returns the unique start node.
func (g *Graph) StartNode() *models.FlowNode {
	return g.startNode
}

// Node returns the node with the given ID.
func (g *Graph) Node(nodeID string) (*models.FlowNode, error) {
	node, ok := g.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q in flow %s", ErrNodeNotFound, nodeID, g.flowID)
	}

	return node, nil
}

// OutgoingEdges returns all edges whose source is nodeID, in the order the
// structure was saved.
func (g *Graph) OutgoingEdges(nodeID string) []*models.FlowEdge {
	return g.outgoing[nodeID]
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}
