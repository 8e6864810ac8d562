// Package generation turns untrusted generator output into typed map entities.
//
// Every decoder degrades to an empty result on a shape mismatch and reports
// the mismatch as a MALFORMED_PAYLOAD error, so callers can log the problem
// and carry on with what they have.
package generation

import (
	"bytes"
	"encoding/json"
	"strings"

	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/interview"
	pkgerrors "mindmap-backend/pkg/errors"
)

// FieldMismatchCode marks a MALFORMED_PAYLOAD error raised for a single
// field of the wrong shape; the rest of the payload was still decoded.
const FieldMismatchCode = "FIELD_NOT_ARRAY"

// IsPartial reports whether err came from a field mismatch, so the result
// returned with it is usable.
func IsPartial(err error) bool {
	appErr := pkgerrors.GetAppError(err)
	return appErr != nil && appErr.Type == pkgerrors.ErrorTypeMalformedPayload && appErr.Code == FieldMismatchCode
}

// GeneratedMap is a decoded {nodes, edges} payload
type GeneratedMap struct {
	Nodes []entities.Node
	Edges []entities.Edge
}

// IsEmpty reports whether no node survived decoding
func (g GeneratedMap) IsEmpty() bool {
	return len(g.Nodes) == 0
}

type rawNode struct {
	ID          json.RawMessage `json:"id"`
	Label       *string         `json:"label"`
	Description *string         `json:"description"`
	Type        *string         `json:"type"`
}

type rawEdge struct {
	ID     *string `json:"id"`
	Source *string `json:"source"`
	Target *string `json:"target"`
}

type rawSuggestion struct {
	Label       *string `json:"label"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
}

type rawQuestion struct {
	Text    *string  `json:"text"`
	Options []string `json:"options"`
}

// DecodeMap decodes a generated {nodes, edges} object. Nodes without an id or
// label and edges without a source or target are skipped; missing edge ids
// are minted. A missing field counts as empty. A field of the wrong shape
// also counts as empty: the other field is still decoded and returned along
// with the MALFORMED_PAYLOAD error.
func DecodeMap(raw []byte) (GeneratedMap, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimPayload(raw), &obj); err != nil || obj == nil {
		return GeneratedMap{}, pkgerrors.NewMalformedPayloadError("map", err)
	}

	nodeItems, nodesErr := arrayField(obj, "nodes")
	edgeItems, edgesErr := arrayField(obj, "edges")

	out := GeneratedMap{
		Nodes: make([]entities.Node, 0, len(nodeItems)),
		Edges: make([]entities.Edge, 0, len(edgeItems)),
	}

	for _, item := range nodeItems {
		var rn rawNode
		if json.Unmarshal(item, &rn) != nil {
			continue
		}
		id, ok := scalarID(rn.ID)
		if !ok || rn.Label == nil || strings.TrimSpace(*rn.Label) == "" {
			continue
		}
		n := entities.Node{
			ID:    id,
			Label: strings.TrimSpace(*rn.Label),
			Type:  valueobjects.ParseNodeType(deref(rn.Type)),
		}
		n.Description = deref(rn.Description)
		out.Nodes = append(out.Nodes, n)
	}

	for _, item := range edgeItems {
		var re rawEdge
		if json.Unmarshal(item, &re) != nil {
			continue
		}
		source, okS := valueobjects.ParseNodeID(deref(re.Source))
		target, okT := valueobjects.ParseNodeID(deref(re.Target))
		if !okS || !okT {
			continue
		}
		e := entities.Edge{
			ID:     valueobjects.EdgeID(strings.TrimSpace(deref(re.ID))),
			Source: source,
			Target: target,
		}
		if e.ID == "" {
			e.ID = valueobjects.NewEdgeID()
		}
		out.Edges = append(out.Edges, e)
	}

	if nodesErr != nil {
		return out, nodesErr
	}
	return out, edgesErr
}

// DecodeSuggestions decodes an array of {label, description, type} child
// suggestions. Items without a label are skipped.
func DecodeSuggestions(raw []byte) ([]entities.NodeFields, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(trimPayload(raw), &items); err != nil {
		return nil, pkgerrors.NewMalformedPayloadError("suggestions", err)
	}

	out := make([]entities.NodeFields, 0, len(items))
	for _, item := range items {
		var rs rawSuggestion
		if json.Unmarshal(item, &rs) != nil || rs.Label == nil {
			continue
		}
		label := strings.TrimSpace(*rs.Label)
		if label == "" {
			continue
		}
		out = append(out, entities.Suggestion(label, deref(rs.Description), valueobjects.ParseNodeType(deref(rs.Type))))
	}
	return out, nil
}

// DecodeQuestions decodes an array of {text, options[]} questions. Items
// without text are skipped and blank options are dropped.
func DecodeQuestions(raw []byte) ([]interview.Question, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(trimPayload(raw), &items); err != nil {
		return nil, pkgerrors.NewMalformedPayloadError("questions", err)
	}

	out := make([]interview.Question, 0, len(items))
	for _, item := range items {
		var rq rawQuestion
		if json.Unmarshal(item, &rq) != nil || rq.Text == nil {
			continue
		}
		text := strings.TrimSpace(*rq.Text)
		if text == "" {
			continue
		}
		q := interview.Question{Text: text, Options: make([]string, 0, len(rq.Options))}
		for _, o := range rq.Options {
			if o = strings.TrimSpace(o); o != "" {
				q.Options = append(q.Options, o)
			}
		}
		out = append(out, q)
	}
	return out, nil
}

// arrayField returns an empty slice when the field is not an array.
func arrayField(obj map[string]json.RawMessage, name string) ([]json.RawMessage, error) {
	raw, ok := obj[name]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, pkgerrors.NewMalformedPayloadError(name, err).
			WithCode(FieldMismatchCode).
			WithDetail("field", name)
	}
	return items, nil
}

// scalarID accepts string and numeric ids; generators occasionally emit 1, 2, 3.
func scalarID(raw json.RawMessage) (valueobjects.NodeID, bool) {
	if len(raw) == 0 || isNull(raw) {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return valueobjects.ParseNodeID(s)
	}
	var num json.Number
	if json.Unmarshal(raw, &num) == nil {
		return valueobjects.ParseNodeID(num.String())
	}
	return "", false
}

// trimPayload strips whitespace and a surrounding markdown code fence.
func trimPayload(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if !bytes.HasPrefix(raw, []byte("```")) {
		return raw
	}
	raw = bytes.TrimPrefix(raw, []byte("```"))
	if nl := bytes.IndexByte(raw, '\n'); nl >= 0 {
		raw = raw[nl+1:]
	}
	raw = bytes.TrimSuffix(bytes.TrimSpace(raw), []byte("```"))
	return bytes.TrimSpace(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
