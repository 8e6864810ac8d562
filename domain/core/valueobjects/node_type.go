package valueobjects

import "strings"

// NodeType classifies a mind map node
type NodeType string

const (
	NodeTypeIdea           NodeType = "idea"
	NodeTypeTask           NodeType = "task"
	NodeTypeResponsibility NodeType = "responsibility"
	NodeTypeMilestone      NodeType = "milestone"
)

// NodeTypes lists the closed set of node types in display order
var NodeTypes = []NodeType{
	NodeTypeIdea,
	NodeTypeTask,
	NodeTypeResponsibility,
	NodeTypeMilestone,
}

// IsValid reports whether t belongs to the closed set
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeIdea, NodeTypeTask, NodeTypeResponsibility, NodeTypeMilestone:
		return true
	}
	return false
}

// ParseNodeType maps free text to a NodeType. Unknown values degrade to idea.
func ParseNodeType(s string) NodeType {
	t := NodeType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return NodeTypeIdea
}

// Color returns the brand color used to paint nodes of this type
func (t NodeType) Color() string {
	switch t {
	case NodeTypeTask:
		return "#f39200"
	case NodeTypeResponsibility:
		return "#004a99"
	case NodeTypeMilestone:
		return "#10b981"
	default:
		return "#00a1e4"
	}
}
