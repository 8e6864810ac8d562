package aggregates

import (
	"testing"

	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	pkgerrors "mindmap-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string) entities.Node {
	return entities.Node{ID: valueobjects.NodeID(id), Label: id, Type: valueobjects.NodeTypeIdea}
}

func edge(id, source, target string) entities.Edge {
	return entities.Edge{
		ID:     valueobjects.EdgeID(id),
		Source: valueobjects.NodeID(source),
		Target: valueobjects.NodeID(target),
	}
}

// sampleMap is root -> a, root -> b, a -> c
func sampleMap() *MindMap {
	return NewMindMap("Plan", []entities.Node{
		node("root"), node("a"), node("b"), node("c"),
	}, []entities.Edge{
		edge("e1", "root", "a"),
		edge("e2", "root", "b"),
		edge("e3", "a", "c"),
	})
}

func TestNewMindMap(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		nodes     []entities.Node
		edges     []entities.Edge
		wantNodes int
		wantEdges int
		wantRoot  valueobjects.NodeID
		wantTitle string
	}{
		{
			name:      "well formed tree",
			title:     "Plan",
			nodes:     []entities.Node{node("root"), node("a")},
			edges:     []entities.Edge{edge("e1", "root", "a")},
			wantNodes: 2,
			wantEdges: 1,
			wantRoot:  "root",
			wantTitle: "Plan",
		},
		{
			name:      "empty input gets fallback root",
			wantNodes: 1,
			wantEdges: 0,
			wantRoot:  "root",
			wantTitle: DefaultTitle,
		},
		{
			name:      "duplicate ids and dangling edges dropped",
			title:     "Plan",
			nodes:     []entities.Node{node("x"), node("x"), node("y"), {ID: ""}},
			edges:     []entities.Edge{edge("e1", "x", "y"), edge("e2", "y", "ghost"), edge("e3", "y", "y")},
			wantNodes: 2,
			wantEdges: 1,
			wantRoot:  "x",
			wantTitle: "Plan",
		},
		{
			name:      "root falls back to first node in a cycle",
			title:     "Plan",
			nodes:     []entities.Node{node("a"), node("b")},
			edges:     []entities.Edge{edge("e1", "a", "b"), edge("e2", "b", "a")},
			wantNodes: 2,
			wantEdges: 2,
			wantRoot:  "a",
			wantTitle: "Plan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMindMap(tt.title, tt.nodes, tt.edges)

			assert.Equal(t, tt.wantNodes, m.NodeCount())
			assert.Equal(t, tt.wantEdges, m.EdgeCount())
			assert.Equal(t, tt.wantRoot, m.RootID())
			assert.Equal(t, tt.wantTitle, m.Title())
			assert.NoError(t, m.Validate())
			assert.NotEmpty(t, m.ID())
		})
	}
}

func TestNewMindMap_MintsMissingEdgeIDs(t *testing.T) {
	m := NewMindMap("Plan", []entities.Node{node("root"), node("a"), node("b")}, []entities.Edge{
		edge("", "root", "a"),
		edge("dup", "root", "b"),
		edge("dup", "a", "b"),
	})
	edges := m.Edges()
	require.Len(t, edges, 3)
	ids := map[valueobjects.EdgeID]bool{}
	for _, e := range edges {
		assert.NotEmpty(t, e.ID)
		ids[e.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestAddChild(t *testing.T) {
	m := sampleMap()

	next, child, err := m.AddChild("b", entities.NodeFields{})
	require.NoError(t, err)

	assert.Equal(t, 4, m.NodeCount(), "receiver must be unchanged")
	assert.Equal(t, 5, next.NodeCount())
	assert.Equal(t, 4, next.EdgeCount())
	assert.Equal(t, entities.DefaultLabel, child.Label)
	assert.Equal(t, []valueobjects.NodeID{child.ID}, next.Children("b"))
	assert.NoError(t, next.Validate())
}

func TestAddChild_UnknownParent(t *testing.T) {
	_, _, err := sampleMap().AddChild("ghost", entities.NodeFields{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidReference(err))
}

func TestUpdateNode(t *testing.T) {
	m := sampleMap()
	label := "Captación de clientes"
	task := valueobjects.NodeTypeTask

	next, err := m.UpdateNode("a", entities.NodeFields{Label: &label, Type: &task})
	require.NoError(t, err)

	updated, ok := next.Node("a")
	require.True(t, ok)
	assert.Equal(t, label, updated.Label)
	assert.Equal(t, task, updated.Type)

	original, _ := m.Node("a")
	assert.Equal(t, "a", original.Label)

	_, err = m.UpdateNode("ghost", entities.NodeFields{Label: &label})
	assert.True(t, pkgerrors.IsInvalidReference(err))
}

func TestDeleteNode(t *testing.T) {
	m := sampleMap()

	next, err := m.DeleteNode("a")
	require.NoError(t, err)

	assert.False(t, next.HasNode("a"))
	assert.True(t, next.HasNode("c"), "children are kept and become disconnected")
	assert.Equal(t, 1, next.EdgeCount())
	for _, e := range next.Edges() {
		assert.False(t, e.Touches("a"))
	}
	assert.True(t, m.HasNode("a"))
}

func TestDeleteNode_Guards(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		m := sampleMap()
		next, err := m.DeleteNode("root")
		assert.Nil(t, next)
		assert.True(t, pkgerrors.IsRootProtected(err))
		assert.Equal(t, 4, m.NodeCount())
	})

	t.Run("single node map", func(t *testing.T) {
		m := NewMindMap("Solo", []entities.Node{node("only")}, nil)
		_, err := m.DeleteNode("only")
		assert.True(t, pkgerrors.IsRootProtected(err))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := sampleMap().DeleteNode("ghost")
		assert.True(t, pkgerrors.IsInvalidReference(err))
	})
}

func TestMergeGenerated(t *testing.T) {
	m := sampleMap()
	suggestions := []entities.NodeFields{
		entities.Suggestion("x", "", valueobjects.NodeTypeIdea),
		entities.Suggestion("y", "", valueobjects.NodeTypeTask),
	}

	next, added, err := m.MergeGenerated("a", suggestions)
	require.NoError(t, err)
	require.Len(t, added, 2)

	assert.Equal(t, 6, next.NodeCount())
	assert.Equal(t, 5, next.EdgeCount())
	assert.Equal(t, []valueobjects.NodeID{"c", added[0].ID, added[1].ID}, next.Children("a"))
	assert.NotEqual(t, added[0].ID, added[1].ID)
	assert.Equal(t, valueobjects.NodeTypeTask, added[1].Type)

	for _, id := range []valueobjects.NodeID{"root", "b", "c"} {
		before, _ := m.Node(id)
		after, _ := next.Node(id)
		assert.Equal(t, before, after)
	}
}

func TestMergeGenerated_SkipsInvalidSuggestions(t *testing.T) {
	blank := "  "
	next, added, err := sampleMap().MergeGenerated("b", []entities.NodeFields{{Label: &blank}})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 4, next.NodeCount())

	_, _, err = sampleMap().MergeGenerated("ghost", nil)
	assert.True(t, pkgerrors.IsInvalidReference(err))
}

func TestEqualAndClone(t *testing.T) {
	m := sampleMap()
	same, err := m.UpdateNode("a", entities.NodeFields{})
	require.NoError(t, err)
	assert.True(t, m.Equal(same))

	renamed, err := m.Rename("Otro plan")
	require.NoError(t, err)
	assert.False(t, m.Equal(renamed))

	_, err = m.Rename(" ")
	assert.True(t, pkgerrors.IsValidation(err))

	nodes := m.Nodes()
	nodes[0].Label = "mutated"
	original, _ := m.Node(nodes[0].ID)
	assert.NotEqual(t, "mutated", original.Label)
}

func TestSnapshot(t *testing.T) {
	m := sampleMap()
	s := m.Snapshot()
	assert.Equal(t, m.ID().String(), s.ID)
	assert.Equal(t, "root", s.RootID)
	assert.Len(t, s.Nodes, 4)
	assert.Len(t, s.Edges, 3)
	assert.Equal(t, m.CreatedAt().UnixMilli(), s.CreatedAt)
}
