package valueobjects

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionIsFinite(t *testing.T) {
	assert.True(t, Position{X: -300, Y: 120.5}.IsFinite())
	assert.False(t, Position{X: math.NaN()}.IsFinite())
	assert.False(t, Position{Y: math.Inf(-1)}.IsFinite())
}

func TestPositionMidpoint(t *testing.T) {
	a := Position{X: 300, Y: 0}
	b := Position{X: 300, Y: 240}
	assert.True(t, a.Midpoint(b).Equals(Position{X: 300, Y: 120}))
}

func TestParseNodeType(t *testing.T) {
	tests := map[string]NodeType{
		"task":           NodeTypeTask,
		" Milestone ":    NodeTypeMilestone,
		"RESPONSIBILITY": NodeTypeResponsibility,
		"idea":           NodeTypeIdea,
		"":               NodeTypeIdea,
		"goal":           NodeTypeIdea,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseNodeType(in), "input %q", in)
	}
	assert.False(t, NodeType("goal").IsValid())
	assert.Len(t, NodeTypes, 4)
}

func TestIDs(t *testing.T) {
	a, b := NewNodeID(), NewNodeID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a.String(), "node-"))
	assert.True(t, strings.HasPrefix(NewEdgeID().String(), "edge-"))
	assert.True(t, strings.HasPrefix(NewMapID().String(), "map-"))

	id, ok := ParseNodeID("  root ")
	assert.True(t, ok)
	assert.Equal(t, RootNodeID, id)

	_, ok = ParseNodeID("   ")
	assert.False(t, ok)
}
