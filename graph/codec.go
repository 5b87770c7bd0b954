package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// wireNode is the editor representation of a node: the kind travels in
// "type" and the label inside "data".
type wireNode struct {
	ID       string          `json:"id"`
	Type     Kind            `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the node in editor format.
func (n Node) MarshalJSON() ([]byte, error) {
	var fields map[string]any
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	if fields == nil {
		fields = map[string]any{}
	}
	if n.Label != "" {
		fields["label"] = n.Label
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireNode{ID: n.ID, Type: n.Kind(), Position: n.Position, Data: data})
}

// UnmarshalJSON decodes a node from editor format.
func (n *Node) UnmarshalJSON(b []byte) error {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("failed to unmarshal node: %w", err)
	}
	raw := w.Data
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = []byte("{}")
	}

	var data Data
	switch w.Type {
	case KindVariable:
		var d VariableData
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("node %s: %w", w.ID, err)
		}
		data = d
	case KindFunction:
		var d FunctionData
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("node %s: %w", w.ID, err)
		}
		data = d
	case KindLoop:
		var d LoopData
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("node %s: %w", w.ID, err)
		}
		data = d
	case KindCondition:
		var d ConditionData
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("node %s: %w", w.ID, err)
		}
		data = d
	case KindBody:
		var d BodyData
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("node %s: %w", w.ID, err)
		}
		data = d
	default:
		return fmt.Errorf("node %s: unknown kind %q", w.ID, w.Type)
	}

	var label struct {
		Label string `json:"label"`
	}
	_ = json.Unmarshal(raw, &label)

	*n = Node{ID: w.ID, Label: label.Label, Position: w.Position, Data: data}
	return nil
}

// UnmarshalJSON accepts the loop count as either a number or a string.
func (d *LoopData) UnmarshalJSON(b []byte) error {
	var aux struct {
		IndexVar string `json:"indexVar"`
		Count    any    `json:"count"`
		CountVar any    `json:"countVar"`
		Body     string `json:"body"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*d = LoopData{
		IndexVar: aux.IndexVar,
		Count:    scalarText(aux.Count),
		CountVar: scalarText(aux.CountVar),
		Body:     aux.Body,
	}
	return nil
}

// MarshalJSON emits a numeric count as a JSON number.
func (d LoopData) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if d.IndexVar != "" {
		out["indexVar"] = d.IndexVar
	}
	if d.Count != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(d.Count)); err == nil {
			out["count"] = i
		} else {
			out["count"] = d.Count
		}
	}
	if d.CountVar != "" {
		out["countVar"] = d.CountVar
	}
	if d.Body != "" {
		out["body"] = d.Body
	}
	return json.Marshal(out)
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ParseJSON decodes a graph in editor JSON format.
func ParseJSON(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	return g, nil
}

// ParseYAML decodes a graph written as YAML using the same field names as the
// JSON format.
func ParseYAML(data []byte) (Graph, error) {
	j, err := yamlToJSON(data)
	if err != nil {
		return Graph{}, err
	}
	return ParseJSON(j)
}

// ToJSON encodes the graph as indented JSON.
func (g Graph) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	return data, nil
}

// ToYAML encodes the graph as YAML.
func (g Graph) ToYAML() ([]byte, error) {
	j, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	var raw any
	if err := json.Unmarshal(j, &raw); err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph YAML: %w", err)
	}
	return data, nil
}

// LoadFile reads and validates a graph from a .json, .yaml or .yml file.
func LoadFile(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("failed to read graph file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return Decode(data)
	}
}
