package entities

import (
	"strings"

	"mindmap-backend/domain/core/valueobjects"
	pkgerrors "mindmap-backend/pkg/errors"
)

// DefaultLabel is given to nodes created without a label
const DefaultLabel = "Nuevo Punto"

// MaxLabelLength bounds node labels
const MaxLabelLength = 200

// Node is a single idea, task, responsibility or milestone in a mind map.
// Nodes are values: copying a Node through Clone never aliases the original.
type Node struct {
	ID          valueobjects.NodeID   `json:"id"`
	Label       string                `json:"label"`
	Description string                `json:"description,omitempty"`
	Type        valueobjects.NodeType `json:"type"`
	Color       string                `json:"color,omitempty"`
	Assignee    string                `json:"assignee,omitempty"`
	Attachments []string              `json:"attachments,omitempty"`
	Links       []string              `json:"links,omitempty"`
	Collapsed   bool                  `json:"isCollapsed,omitempty"`
}

// NodeFields carries the optional fields of a node. A nil pointer means
// "not supplied" so partial updates only replace what is present.
type NodeFields struct {
	Label       *string                `json:"label,omitempty"`
	Description *string                `json:"description,omitempty"`
	Type        *valueobjects.NodeType `json:"type,omitempty"`
	Color       *string                `json:"color,omitempty"`
	Assignee    *string                `json:"assignee,omitempty"`
	Attachments *[]string              `json:"attachments,omitempty"`
	Links       *[]string              `json:"links,omitempty"`
	Collapsed   *bool                  `json:"isCollapsed,omitempty"`
}

// NewNode creates a node with the given id, applying the supplied fields
// over the defaults (label "Nuevo Punto", type idea).
func NewNode(id valueobjects.NodeID, fields NodeFields) (Node, error) {
	if id.IsZero() {
		return Node{}, pkgerrors.NewValidationError("node id cannot be empty")
	}
	n := Node{
		ID:    id,
		Label: DefaultLabel,
		Type:  valueobjects.NodeTypeIdea,
	}
	return fields.Apply(n)
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	c := n
	c.Attachments = cloneStrings(n.Attachments)
	c.Links = cloneStrings(n.Links)
	return c
}

// Apply returns a copy of n with every supplied field replaced.
func (f NodeFields) Apply(n Node) (Node, error) {
	out := n.Clone()

	if f.Label != nil {
		label := strings.TrimSpace(*f.Label)
		if label == "" {
			return n, pkgerrors.NewValidationError("label cannot be empty")
		}
		if len([]rune(label)) > MaxLabelLength {
			return n, pkgerrors.NewValidationError("label is too long")
		}
		out.Label = label
	}
	if f.Description != nil {
		out.Description = *f.Description
	}
	if f.Type != nil {
		out.Type = valueobjects.ParseNodeType(string(*f.Type))
	}
	if f.Color != nil {
		out.Color = *f.Color
	}
	if f.Assignee != nil {
		out.Assignee = strings.TrimSpace(*f.Assignee)
	}
	if f.Attachments != nil {
		out.Attachments = cloneStrings(*f.Attachments)
	}
	if f.Links != nil {
		out.Links = cloneStrings(*f.Links)
	}
	if f.Collapsed != nil {
		out.Collapsed = *f.Collapsed
	}

	return out, nil
}

// IsEmpty reports whether no field is supplied
func (f NodeFields) IsEmpty() bool {
	return f.Label == nil && f.Description == nil && f.Type == nil && f.Color == nil &&
		f.Assignee == nil && f.Attachments == nil && f.Links == nil && f.Collapsed == nil
}

// Suggestion builds the fields of an AI-suggested child node
func Suggestion(label, description string, nodeType valueobjects.NodeType) NodeFields {
	return NodeFields{
		Label:       &label,
		Description: &description,
		Type:        &nodeType,
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
