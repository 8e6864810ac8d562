// Package layout positions mind-map nodes on a left-to-right hierarchical grid.
package layout

import (
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
)

const (
	// DefaultLevelSpacing is the horizontal distance between tree depths
	DefaultLevelSpacing = 300.0

	// DefaultNodeSpacing is the vertical slot consumed by a leaf
	DefaultNodeSpacing = 120.0
)

// Options tunes the layout. Zero values take the defaults.
type Options struct {
	LevelSpacing float64 `json:"levelSpacing" yaml:"level_spacing"`
	NodeSpacing  float64 `json:"nodeSpacing" yaml:"node_spacing"`
}

// DefaultOptions returns the standard spacing
func DefaultOptions() Options {
	return Options{LevelSpacing: DefaultLevelSpacing, NodeSpacing: DefaultNodeSpacing}
}

func (o Options) withDefaults() Options {
	spacing := valueobjects.Position{X: o.LevelSpacing, Y: o.NodeSpacing}
	if !spacing.IsFinite() {
		return DefaultOptions()
	}
	if o.LevelSpacing <= 0 {
		o.LevelSpacing = DefaultLevelSpacing
	}
	if o.NodeSpacing <= 0 {
		o.NodeSpacing = DefaultNodeSpacing
	}
	return o
}

// Topology describes how far the input is from a single rooted tree.
// None of these conditions fail the layout.
type Topology struct {
	MultipleRoots bool `json:"multipleRoots"`
	NoRoot        bool `json:"noRoot"`
	Disconnected  bool `json:"disconnected"`
}

// Degenerate reports whether any fallback placement was needed
func (t Topology) Degenerate() bool {
	return t.MultipleRoots || t.NoRoot || t.Disconnected
}

// Result is the computed layout. Positions holds exactly one entry per
// distinct input node id.
type Result struct {
	Positions    map[valueobjects.NodeID]valueobjects.Position `json:"positions"`
	Root         valueobjects.NodeID                           `json:"root,omitempty"`
	Disconnected []valueobjects.NodeID                         `json:"disconnected,omitempty"`
	Topology     Topology                                      `json:"topology"`
}

// Compute lays out nodes as a tree rooted at the first node without an
// incoming edge. When every node has a parent, Root is the first node and
// all nodes are placed in the fallback column.
//
// Depth maps to x. Each leaf takes one NodeSpacing slot on y and a parent
// sits at the midpoint of its first and last child. Nodes not reachable
// from the root are stacked at x = 0 below the tree in input order.
func Compute(nodes []entities.Node, edges []entities.Edge, opts Options) Result {
	opts = opts.withDefaults()
	res := Result{Positions: make(map[valueobjects.NodeID]valueobjects.Position, len(nodes))}
	if len(nodes) == 0 {
		return res
	}

	known := make(map[valueobjects.NodeID]bool, len(nodes))
	order := make([]valueobjects.NodeID, 0, len(nodes))
	for _, n := range nodes {
		if known[n.ID] {
			continue
		}
		known[n.ID] = true
		order = append(order, n.ID)
	}

	children := make(map[valueobjects.NodeID][]valueobjects.NodeID)
	inDegree := make(map[valueobjects.NodeID]int, len(order))
	for _, e := range edges {
		if !known[e.Source] || !known[e.Target] || e.Source == e.Target {
			continue
		}
		children[e.Source] = append(children[e.Source], e.Target)
		inDegree[e.Target]++
	}

	roots := 0
	for _, id := range order {
		if inDegree[id] == 0 {
			if roots == 0 {
				res.Root = id
			}
			roots++
		}
	}
	switch {
	case roots == 0:
		res.Root = order[0]
		res.Topology.NoRoot = true
	case roots > 1:
		res.Topology.MultipleRoots = true
	}

	w := walker{
		opts:      opts,
		children:  children,
		positions: res.Positions,
	}

	// Without an in-degree-0 node the fallback root sits on a cycle, so the
	// whole set goes to the fallback column instead of being walked.
	var cursor float64
	if !res.Topology.NoRoot {
		cursor = w.place(res.Root, 0, 0)
	}

	for _, id := range order {
		if _, placed := res.Positions[id]; placed {
			continue
		}
		res.Positions[id] = valueobjects.Position{X: 0, Y: cursor}
		res.Disconnected = append(res.Disconnected, id)
		cursor += opts.NodeSpacing
	}
	res.Topology.Disconnected = len(res.Disconnected) > 0

	return res
}

type walker struct {
	opts      Options
	children  map[valueobjects.NodeID][]valueobjects.NodeID
	positions map[valueobjects.NodeID]valueobjects.Position
}

// place positions id and its unvisited subtree starting at cursor and
// returns the next free cursor.
func (w *walker) place(id valueobjects.NodeID, depth int, cursor float64) float64 {
	x := float64(depth) * w.opts.LevelSpacing

	// Reserve the slot before descending so a back edge cannot revisit it.
	w.positions[id] = valueobjects.Position{X: x, Y: cursor}

	var first, last valueobjects.Position
	placed := 0
	for _, child := range w.children[id] {
		if _, seen := w.positions[child]; seen {
			continue
		}
		next := w.place(child, depth+1, cursor)
		pos := w.positions[child]
		if placed == 0 {
			first = pos
		}
		last = pos
		placed++
		cursor = next
	}

	if placed == 0 {
		return cursor + w.opts.NodeSpacing
	}
	w.positions[id] = valueobjects.Position{X: x, Y: first.Midpoint(last).Y}
	return cursor
}

// Box is an axis-aligned bounding box
type Box struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Width of the box
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height of the box
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Bounds returns the box enclosing every position, and false for an empty layout.
func Bounds(r Result) (Box, bool) {
	if len(r.Positions) == 0 {
		return Box{}, false
	}
	var b Box
	first := true
	for _, p := range r.Positions {
		if first {
			b = Box{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
			first = false
			continue
		}
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b, true
}
