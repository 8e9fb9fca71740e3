// Package workflow provides a validated traversal view over workflow graph documents.
package workflow

import (
	"errors"
	"fmt"

	"github.com/hivedesk/hivedesk/pkg/models"
)

// Graph construction and lookup errors.
var (
	// ErrNoStartNode indicates the document has no start node.
	ErrNoStartNode = errors.New("workflow has no start node")

	// ErrMultipleStartNodes indicates the document has more than one start node.
	ErrMultipleStartNodes = errors.New("workflow has multiple start nodes")

	// ErrNoEndNode indicates the document has no end node.
	ErrNoEndNode = errors.New("workflow has no end node")

	// ErrMultipleInboundEdges indicates a node has more than one inbound edge.
	// Revert relies on every node having a single well-defined predecessor.
	ErrMultipleInboundEdges = errors.New("node has multiple inbound edges")

	// ErrDanglingEdge indicates an edge endpoint does not resolve to a node.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrStartOutdegree indicates the start node does not have exactly one
	// outbound edge, which makes the first employee node ambiguous.
	ErrStartOutdegree = errors.New("start node must have exactly one outbound edge")

	// ErrNodeNotFound indicates a node lookup by id missed.
	ErrNodeNotFound = errors.New("target node not found in workflow")

	// ErrNoPredecessor indicates the node has no inbound edge to follow.
	ErrNoPredecessor = errors.New("node has no predecessor")
)

// IsNodeNotFound checks if an error indicates a graph node lookup miss.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// Graph is an immutable traversal view over a workflow document. All structural
// invariants are checked once in NewGraph so traversal calls cannot observe a
// malformed graph.
type Graph struct {
	workflow *models.Workflow
	nodes    map[string]*models.WorkflowNode
	inbound  map[string]string // target node id -> source node id
	start    *models.WorkflowNode
	firstID  string // target of the single edge leaving start
}

// NewGraph validates the workflow document and builds the traversal view.
func NewGraph(wf *models.Workflow) (*Graph, error) {
	if wf == nil {
		return nil, errors.New("workflow cannot be nil")
	}

	g := &Graph{
		workflow: wf,
		nodes:    make(map[string]*models.WorkflowNode, len(wf.Nodes)),
		inbound:  make(map[string]string, len(wf.Edges)),
	}

	endCount := 0

	for _, node := range wf.Nodes {
		if _, dup := g.nodes[node.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}

		g.nodes[node.ID] = node

		switch {
		case node.IsStart():
			if g.start != nil {
				return nil, ErrMultipleStartNodes
			}

			g.start = node
		case node.IsEnd():
			endCount++
		}
	}

	if g.start == nil {
		return nil, ErrNoStartNode
	}

	if endCount == 0 {
		return nil, ErrNoEndNode
	}

	startOut := 0

	for _, edge := range wf.Edges {
		if _, ok := g.nodes[edge.Source]; !ok {
			return nil, fmt.Errorf("%w: source %q", ErrDanglingEdge, edge.Source)
		}

		if _, ok := g.nodes[edge.Target]; !ok {
			return nil, fmt.Errorf("%w: target %q", ErrDanglingEdge, edge.Target)
		}

		if _, seen := g.inbound[edge.Target]; seen {
			return nil, fmt.Errorf("%w: node %q", ErrMultipleInboundEdges, edge.Target)
		}

		g.inbound[edge.Target] = edge.Source

		if edge.Source == g.start.ID {
			startOut++
			g.firstID = edge.Target
		}
	}

	if startOut != 1 {
		return nil, ErrStartOutdegree
	}

	return g, nil
}

// StartNode returns the graph's single start node.
func (g *Graph) StartNode() *models.WorkflowNode {
	return g.start
}

// NodeByID resolves a node by id. A miss is a caller-visible referential error;
// silently ignoring it would corrupt the ticket's stage pointer.
func (g *Graph) NodeByID(id string) (*models.WorkflowNode, error) {
	node, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}

	return node, nil
}

// FirstEmployeeNode returns the node targeted by the single edge leaving start.
func (g *Graph) FirstEmployeeNode() (*models.WorkflowNode, error) {
	return g.NodeByID(g.firstID)
}

// IsFirstEmployeeNode reports whether the node is directly reachable from start.
// Acting there is what earns primary credit, and reverting from there is illegal.
func (g *Graph) IsFirstEmployeeNode(id string) bool {
	return id == g.firstID
}

// PredecessorOf follows the node's unique inbound edge. It fails for the start
// node and for nodes without an inbound edge.
func (g *Graph) PredecessorOf(id string) (*models.WorkflowNode, error) {
	if _, err := g.NodeByID(id); err != nil {
		return nil, err
	}

	sourceID, ok := g.inbound[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoPredecessor, id)
	}

	return g.NodeByID(sourceID)
}
