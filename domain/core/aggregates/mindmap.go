package aggregates

import (
	"reflect"
	"strings"
	"time"

	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	pkgerrors "mindmap-backend/pkg/errors"
)

const (
	// DefaultTitle names maps built without a source file
	DefaultTitle = "Plan Estratégico MORETURISMO"

	// FallbackRootLabel labels the root substituted into an empty map
	FallbackRootLabel = "Estrategia Central"

	// MaxNodes bounds a single map (business rule)
	MaxNodes = 2000
)

// MindMap is the aggregate root for one strategic map.
//
// A MindMap is never modified after construction: every mutation returns a
// new MindMap that shares no slices with the receiver, so snapshots held by
// the history stay independent.
type MindMap struct {
	id        valueobjects.MapID
	title     string
	nodes     []entities.Node
	edges     []entities.Edge
	rootID    valueobjects.NodeID
	createdAt time.Time
}

// Snapshot is the serializable form of a MindMap
type Snapshot struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	RootID    string          `json:"rootId"`
	Nodes     []entities.Node `json:"nodes"`
	Edges     []entities.Edge `json:"edges"`
	CreatedAt int64           `json:"createdAt"`
}

// NewMindMap creates a map from a node/edge set, typically decoded from the
// generator. Nodes with empty or duplicate ids are dropped (first wins),
// edges referencing unknown nodes and self-loops are dropped, and an empty
// node set is replaced by a single fallback root.
func NewMindMap(title string, nodes []entities.Node, edges []entities.Edge) *MindMap {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	m := &MindMap{
		id:        valueobjects.NewMapID(),
		title:     title,
		nodes:     make([]entities.Node, 0, len(nodes)),
		edges:     make([]entities.Edge, 0, len(edges)),
		createdAt: time.Now(),
	}

	seen := make(map[valueobjects.NodeID]bool, len(nodes))
	for _, n := range nodes {
		if n.ID.IsZero() || seen[n.ID] {
			continue
		}
		if len(m.nodes) >= MaxNodes {
			break
		}
		n = n.Clone()
		if strings.TrimSpace(n.Label) == "" {
			n.Label = entities.DefaultLabel
		}
		n.Type = valueobjects.ParseNodeType(string(n.Type))
		seen[n.ID] = true
		m.nodes = append(m.nodes, n)
	}

	if len(m.nodes) == 0 {
		m.nodes = append(m.nodes, entities.Node{
			ID:    valueobjects.RootNodeID,
			Label: FallbackRootLabel,
			Type:  valueobjects.NodeTypeIdea,
		})
		seen[valueobjects.RootNodeID] = true
	}

	edgeIDs := make(map[valueobjects.EdgeID]bool, len(edges))
	for _, e := range edges {
		if !seen[e.Source] || !seen[e.Target] || e.Source == e.Target {
			continue
		}
		if e.ID == "" || edgeIDs[e.ID] {
			e.ID = valueobjects.NewEdgeID()
		}
		edgeIDs[e.ID] = true
		m.edges = append(m.edges, e)
	}

	m.rootID = m.pickRoot()
	return m
}

// ID returns the map's unique identifier
func (m *MindMap) ID() valueobjects.MapID {
	return m.id
}

// Title returns the map's title
func (m *MindMap) Title() string {
	return m.title
}

// RootID returns the distinguished root that can never be deleted
func (m *MindMap) RootID() valueobjects.NodeID {
	return m.rootID
}

// CreatedAt returns when the map was created
func (m *MindMap) CreatedAt() time.Time {
	return m.createdAt
}

// Nodes returns a copy of the nodes in insertion order
func (m *MindMap) Nodes() []entities.Node {
	out := make([]entities.Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Edges returns a copy of the edges in insertion order
func (m *MindMap) Edges() []entities.Edge {
	out := make([]entities.Edge, len(m.edges))
	copy(out, m.edges)
	return out
}

// NodeCount returns the number of nodes
func (m *MindMap) NodeCount() int {
	return len(m.nodes)
}

// EdgeCount returns the number of edges
func (m *MindMap) EdgeCount() int {
	return len(m.edges)
}

// Node retrieves a node by ID
func (m *MindMap) Node(id valueobjects.NodeID) (entities.Node, bool) {
	if i := m.indexOf(id); i >= 0 {
		return m.nodes[i].Clone(), true
	}
	return entities.Node{}, false
}

// HasNode checks if a node exists in the map
func (m *MindMap) HasNode(id valueobjects.NodeID) bool {
	return m.indexOf(id) >= 0
}

// Children returns the ids of the direct children of id in edge order
func (m *MindMap) Children(id valueobjects.NodeID) []valueobjects.NodeID {
	var out []valueobjects.NodeID
	for _, e := range m.edges {
		if e.Source == id {
			out = append(out, e.Target)
		}
	}
	return out
}

// AddChild returns a new map with a fresh node attached under parentID.
// An unknown parent is rejected with InvalidReference.
func (m *MindMap) AddChild(parentID valueobjects.NodeID, fields entities.NodeFields) (*MindMap, entities.Node, error) {
	if !m.HasNode(parentID) {
		return nil, entities.Node{}, pkgerrors.NewInvalidReferenceError(parentID.String())
	}
	if len(m.nodes) >= MaxNodes {
		return nil, entities.Node{}, pkgerrors.NewValidationError("maximum nodes reached")
	}

	node, err := entities.NewNode(valueobjects.NewNodeID(), fields)
	if err != nil {
		return nil, entities.Node{}, err
	}

	next := m.clone()
	next.nodes = append(next.nodes, node)
	next.edges = append(next.edges, entities.NewEdge(parentID, node.ID))
	return next, node.Clone(), nil
}

// UpdateNode returns a new map where only the supplied fields of nodeID are replaced
func (m *MindMap) UpdateNode(nodeID valueobjects.NodeID, fields entities.NodeFields) (*MindMap, error) {
	i := m.indexOf(nodeID)
	if i < 0 {
		return nil, pkgerrors.NewInvalidReferenceError(nodeID.String())
	}

	updated, err := fields.Apply(m.nodes[i])
	if err != nil {
		return nil, err
	}

	next := m.clone()
	next.nodes[i] = updated
	return next, nil
}

// DeleteNode returns a new map without nodeID and its incident edges.
// The distinguished root and the last remaining node are protected.
// Children of the deleted node are kept and become disconnected.
func (m *MindMap) DeleteNode(nodeID valueobjects.NodeID) (*MindMap, error) {
	if !m.HasNode(nodeID) {
		return nil, pkgerrors.NewInvalidReferenceError(nodeID.String())
	}
	if nodeID == m.rootID {
		return nil, pkgerrors.NewRootProtectedError(nodeID.String(), "the root node cannot be removed")
	}
	if len(m.nodes) <= 1 {
		return nil, pkgerrors.NewRootProtectedError(nodeID.String(), "a map must keep at least one node")
	}

	next := &MindMap{
		id:        m.id,
		title:     m.title,
		nodes:     make([]entities.Node, 0, len(m.nodes)-1),
		edges:     make([]entities.Edge, 0, len(m.edges)),
		rootID:    m.rootID,
		createdAt: m.createdAt,
	}
	for _, n := range m.nodes {
		if n.ID != nodeID {
			next.nodes = append(next.nodes, n.Clone())
		}
	}
	for _, e := range m.edges {
		if !e.Touches(nodeID) {
			next.edges = append(next.edges, e)
		}
	}
	return next, nil
}

// MergeGenerated returns a new map with every suggestion appended as a child
// of parentID. Suggestions that fail validation are skipped; nodes outside
// the parent's new children are left untouched.
func (m *MindMap) MergeGenerated(parentID valueobjects.NodeID, suggestions []entities.NodeFields) (*MindMap, []entities.Node, error) {
	if !m.HasNode(parentID) {
		return nil, nil, pkgerrors.NewInvalidReferenceError(parentID.String())
	}

	next := m.clone()
	added := make([]entities.Node, 0, len(suggestions))
	for _, s := range suggestions {
		if len(next.nodes) >= MaxNodes {
			break
		}
		node, err := entities.NewNode(valueobjects.NewNodeID(), s)
		if err != nil {
			continue
		}
		next.nodes = append(next.nodes, node)
		next.edges = append(next.edges, entities.NewEdge(parentID, node.ID))
		added = append(added, node.Clone())
	}
	return next, added, nil
}

// Rename returns a new map with a different title
func (m *MindMap) Rename(title string) (*MindMap, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, pkgerrors.NewValidationError("title cannot be empty")
	}
	next := m.clone()
	next.title = title
	return next, nil
}

// Equal reports structural equality
func (m *MindMap) Equal(other *MindMap) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.id == other.id &&
		m.title == other.title &&
		m.rootID == other.rootID &&
		m.createdAt.Equal(other.createdAt) &&
		reflect.DeepEqual(m.nodes, other.nodes) &&
		reflect.DeepEqual(m.edges, other.edges)
}

// Validate ensures map invariants
func (m *MindMap) Validate() error {
	if len(m.nodes) == 0 {
		return pkgerrors.NewValidationError("map has no nodes")
	}
	if !m.HasNode(m.rootID) {
		return pkgerrors.NewValidationError("map root is missing")
	}
	seen := make(map[valueobjects.NodeID]bool, len(m.nodes))
	for _, n := range m.nodes {
		if seen[n.ID] {
			return pkgerrors.NewValidationError("duplicate node id " + n.ID.String())
		}
		seen[n.ID] = true
	}
	for _, e := range m.edges {
		if !seen[e.Source] || !seen[e.Target] {
			return pkgerrors.NewValidationError("edge " + e.ID.String() + " references a missing node")
		}
	}
	return nil
}

// Snapshot returns the serializable form of the map
func (m *MindMap) Snapshot() Snapshot {
	return Snapshot{
		ID:        m.id.String(),
		Title:     m.title,
		RootID:    m.rootID.String(),
		Nodes:     m.Nodes(),
		Edges:     m.Edges(),
		CreatedAt: m.createdAt.UnixMilli(),
	}
}

// Private helper methods

func (m *MindMap) indexOf(id valueobjects.NodeID) int {
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *MindMap) clone() *MindMap {
	c := &MindMap{
		id:        m.id,
		title:     m.title,
		nodes:     make([]entities.Node, len(m.nodes), len(m.nodes)+1),
		edges:     make([]entities.Edge, len(m.edges), len(m.edges)+1),
		rootID:    m.rootID,
		createdAt: m.createdAt,
	}
	for i, n := range m.nodes {
		c.nodes[i] = n.Clone()
	}
	copy(c.edges, m.edges)
	return c
}

// pickRoot chooses the literal "root" id when present, then the first node
// with no incoming edge, then the first node.
func (m *MindMap) pickRoot() valueobjects.NodeID {
	if m.HasNode(valueobjects.RootNodeID) {
		return valueobjects.RootNodeID
	}
	hasParent := make(map[valueobjects.NodeID]bool, len(m.edges))
	for _, e := range m.edges {
		hasParent[e.Target] = true
	}
	for _, n := range m.nodes {
		if !hasParent[n.ID] {
			return n.ID
		}
	}
	return m.nodes[0].ID
}
