package entities

import "mindmap-backend/domain/core/valueobjects"

// Edge represents a directed parent->child connection: Source is the
// immediate parent of Target.
type Edge struct {
	ID     valueobjects.EdgeID `json:"id"`
	Source valueobjects.NodeID `json:"source"`
	Target valueobjects.NodeID `json:"target"`
}

// NewEdge creates an edge with a fresh id
func NewEdge(source, target valueobjects.NodeID) Edge {
	return Edge{
		ID:     valueobjects.NewEdgeID(),
		Source: source,
		Target: target,
	}
}

// Touches reports whether the edge has id as source or target
func (e Edge) Touches(id valueobjects.NodeID) bool {
	return e.Source == id || e.Target == id
}
