package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
)

// DefaultCapacity bounds how many undo steps are kept
const DefaultCapacity = 100

// ChangeType classifies a committed edit
type ChangeType string

const (
	ChangeTypeCreated     ChangeType = "map_created"
	ChangeTypeNodeAdded   ChangeType = "node_added"
	ChangeTypeNodeUpdated ChangeType = "node_updated"
	ChangeTypeNodeRemoved ChangeType = "node_removed"
	ChangeTypeExpanded    ChangeType = "node_expanded"
	ChangeTypeRenamed     ChangeType = "map_renamed"
)

// Change describes why a version was committed
type Change struct {
	Type        ChangeType `json:"type"`
	EntityID    string     `json:"entityId,omitempty"`
	Description string     `json:"description"`
}

// Version represents one committed state of a map
type Version struct {
	Sequence  int       `json:"sequence"`
	Checksum  string    `json:"checksum"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
	Change    Change    `json:"change"`
	CreatedAt time.Time `json:"createdAt"`
}

// Timeline is the ordered list of versions reachable through undo/redo.
// Cursor is the index of the current version in Versions.
type Timeline struct {
	Versions []Version `json:"versions"`
	Cursor   int       `json:"cursor"`
}

type entry struct {
	m       *aggregates.MindMap
	version Version
}

// History is a linear undo/redo history of immutable map snapshots.
// Committing after an undo discards every redo target.
//
// History is not safe for concurrent use; callers serialize access.
type History struct {
	past     []entry
	current  entry
	future   []entry // future[len-1] is the next redo target
	capacity int
	sequence int
}

// NewHistory creates a history whose current map is initial.
// A capacity <= 0 uses DefaultCapacity.
func NewHistory(initial *aggregates.MindMap, capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	h := &History{capacity: capacity}
	h.current = h.record(initial, Change{
		Type:        ChangeTypeCreated,
		Description: "map created",
	})
	return h
}

// Commit makes m current, pushing the previous current onto the undo stack
// and clearing the redo stack.
func (h *History) Commit(m *aggregates.MindMap, change Change) Version {
	h.past = append(h.past, h.current)
	if len(h.past) > h.capacity {
		// drop the oldest entry; copy so the backing array does not grow forever
		h.past = append([]entry(nil), h.past[len(h.past)-h.capacity:]...)
	}
	h.future = nil
	h.current = h.record(m, change)
	return h.current.version
}

// Undo restores the previous map. It reports false when there is nothing to undo.
func (h *History) Undo() bool {
	if len(h.past) == 0 {
		return false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, h.current)
	h.current = prev
	return true
}

// Redo re-applies the most recently undone map. It reports false when there
// is nothing to redo.
func (h *History) Redo() bool {
	if len(h.future) == 0 {
		return false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, h.current)
	h.current = next
	return true
}

// CanUndo reports whether Undo would move
func (h *History) CanUndo() bool {
	return len(h.past) > 0
}

// CanRedo reports whether Redo would move
func (h *History) CanRedo() bool {
	return len(h.future) > 0
}

// Current returns the current map, never nil
func (h *History) Current() *aggregates.MindMap {
	return h.current.m
}

// CurrentVersion returns the version of the current map
func (h *History) CurrentVersion() Version {
	return h.current.version
}

// Depth returns the number of undo and redo steps available
func (h *History) Depth() (undo, redo int) {
	return len(h.past), len(h.future)
}

// Capacity returns the undo bound
func (h *History) Capacity() int {
	return h.capacity
}

// SetCapacity changes the undo bound, trimming the oldest entries if needed
func (h *History) SetCapacity(capacity int) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	h.capacity = capacity
	if len(h.past) > capacity {
		h.past = append([]entry(nil), h.past[len(h.past)-capacity:]...)
	}
}

// Timeline returns the versions from oldest to newest with the cursor on the current one
func (h *History) Timeline() Timeline {
	versions := make([]Version, 0, len(h.past)+1+len(h.future))
	for _, e := range h.past {
		versions = append(versions, e.version)
	}
	versions = append(versions, h.current.version)
	cursor := len(versions) - 1
	for i := len(h.future) - 1; i >= 0; i-- {
		versions = append(versions, h.future[i].version)
	}
	return Timeline{Versions: versions, Cursor: cursor}
}

func (h *History) record(m *aggregates.MindMap, change Change) entry {
	h.sequence++
	return entry{
		m: m,
		version: Version{
			Sequence:  h.sequence,
			Checksum:  Checksum(m),
			NodeCount: m.NodeCount(),
			EdgeCount: m.EdgeCount(),
			Change:    change,
			CreatedAt: time.Now(),
		},
	}
}

// Checksum returns a content hash of the map's title, nodes and edges.
// Two structurally equal maps have the same checksum.
func Checksum(m *aggregates.MindMap) string {
	data := struct {
		Title string          `json:"title"`
		Root  string          `json:"root"`
		Nodes []entities.Node `json:"nodes"`
		Edges []entities.Edge `json:"edges"`
	}{
		Title: m.Title(),
		Root:  m.RootID().String(),
		Nodes: m.Nodes(),
		Edges: m.Edges(),
	}

	// Node and Edge hold only strings, bools and string slices, so Marshal cannot fail.
	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}
