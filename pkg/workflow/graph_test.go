package workflow_test

import (
	"testing"

	"github.com/hivedesk/hivedesk/pkg/models"
	"github.com/hivedesk/hivedesk/pkg/testutil"
	"github.com/hivedesk/hivedesk/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*models.Workflow)
		wantErr error
	}{
		{
			name:   "valid linear workflow",
			mutate: func(wf *models.Workflow) {},
		},
		{
			name: "no start node",
			mutate: func(wf *models.Workflow) {
				wf.Nodes[0].Type = models.NodeTypeEmployee
			},
			wantErr: workflow.ErrNoStartNode,
		},
		{
			name: "multiple start nodes",
			mutate: func(wf *models.Workflow) {
				wf.Nodes = append(wf.Nodes, &models.WorkflowNode{ID: "start2", Type: models.NodeTypeStart})
			},
			wantErr: workflow.ErrMultipleStartNodes,
		},
		{
			name: "no end node",
			mutate: func(wf *models.Workflow) {
				for _, n := range wf.Nodes {
					if n.IsEnd() {
						n.Type = models.NodeTypeEmployee
					}
				}
			},
			wantErr: workflow.ErrNoEndNode,
		},
		{
			name: "multiple inbound edges",
			mutate: func(wf *models.Workflow) {
				wf.Edges = append(wf.Edges, &models.Edge{ID: "dup", Source: "node-alice", Target: "node-carol"})
			},
			wantErr: workflow.ErrMultipleInboundEdges,
		},
		{
			name: "dangling edge",
			mutate: func(wf *models.Workflow) {
				wf.Edges = append(wf.Edges, &models.Edge{ID: "ghost", Source: "node-carol", Target: "nowhere"})
			},
			wantErr: workflow.ErrDanglingEdge,
		},
		{
			name: "start with two outbound edges",
			mutate: func(wf *models.Workflow) {
				wf.Nodes = append(wf.Nodes, &models.WorkflowNode{
					ID: "side", Type: models.NodeTypeEmployee,
					Data: models.NodeData{NodeType: models.EmployeeNodeSequential, EmployeeID: "dave"},
				})
				wf.Edges = append(wf.Edges, &models.Edge{ID: "fork", Source: "start", Target: "side"})
			},
			wantErr: workflow.ErrStartOutdegree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wf := testutil.LinearWorkflow("alice", "bob", "carol")
			tt.mutate(wf)

			g, err := workflow.NewGraph(wf)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, g)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, g)
		})
	}
}

func TestGraph_Traversal(t *testing.T) {
	t.Parallel()

	wf := testutil.LinearWorkflow("alice", "bob")

	g, err := workflow.NewGraph(wf)
	require.NoError(t, err)

	t.Run("first employee node", func(t *testing.T) {
		t.Parallel()

		first, err := g.FirstEmployeeNode()
		require.NoError(t, err)
		assert.Equal(t, "node-alice", first.ID)
		assert.True(t, g.IsFirstEmployeeNode("node-alice"))
		assert.False(t, g.IsFirstEmployeeNode("node-bob"))
		assert.False(t, g.IsFirstEmployeeNode("start"))
	})

	t.Run("predecessor lookup", func(t *testing.T) {
		t.Parallel()

		pred, err := g.PredecessorOf("node-bob")
		require.NoError(t, err)
		assert.Equal(t, "node-alice", pred.ID)

		pred, err = g.PredecessorOf("node-alice")
		require.NoError(t, err)
		assert.True(t, pred.IsStart())

		_, err = g.PredecessorOf("start")
		require.ErrorIs(t, err, workflow.ErrNoPredecessor)
	})

	t.Run("lookup miss is a referential error", func(t *testing.T) {
		t.Parallel()

		_, err := g.NodeByID("nowhere")
		require.Error(t, err)
		assert.True(t, workflow.IsNodeNotFound(err))

		_, err = g.PredecessorOf("nowhere")
		assert.True(t, workflow.IsNodeNotFound(err))
	})
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	valid := []byte(`{
		"nodes": [
			{"id": "start", "type": "start", "data": {"label": "Start"}},
			{"id": "n1", "type": "employee", "data": {"label": "Alice", "nodeType": "sequential", "employeeId": "alice"}},
			{"id": "end", "type": "end", "data": {"label": "End"}}
		],
		"edges": [
			{"id": "e1", "source": "start", "target": "n1"},
			{"id": "e2", "source": "n1", "target": "end"}
		]
	}`)
	require.NoError(t, workflow.ValidateDocument(valid))

	t.Run("unknown node type", func(t *testing.T) {
		t.Parallel()

		bad := []byte(`{"nodes": [{"id": "x", "type": "robot", "data": {}}], "edges": []}`)
		require.Error(t, workflow.ValidateDocument(bad))
	})

	t.Run("edge without target", func(t *testing.T) {
		t.Parallel()

		bad := []byte(`{
			"nodes": [
				{"id": "start", "type": "start", "data": {}},
				{"id": "end", "type": "end", "data": {}}
			],
			"edges": [{"id": "e1", "source": "start"}]
		}`)
		require.Error(t, workflow.ValidateDocument(bad))
	})
}
