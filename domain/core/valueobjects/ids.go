package valueobjects

import (
	"strings"

	"github.com/google/uuid"
)

// NodeID is a value object representing a node identifier.
// Ids coming from the generator (e.g. "root") are opaque and accepted verbatim.
type NodeID string

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID("node-" + uuid.New().String())
}

// ParseNodeID creates a NodeID from an existing string
func ParseNodeID(id string) (NodeID, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return NodeID(id), true
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return string(id)
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id == ""
}

// EdgeID identifies a parent->child edge
type EdgeID string

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID("edge-" + uuid.New().String())
}

// String returns the string representation of the EdgeID
func (id EdgeID) String() string {
	return string(id)
}

// MapID identifies a mind map
type MapID string

// NewMapID creates a new random MapID
func NewMapID() MapID {
	return MapID("map-" + uuid.New().String())
}

// String returns the string representation of the MapID
func (id MapID) String() string {
	return string(id)
}

// RootNodeID is the id the generator is instructed to give the central node
const RootNodeID NodeID = "root"
