package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a block kind.
type Kind string

const (
	KindVariable  Kind = "variable"
	KindFunction  Kind = "function"
	KindLoop      Kind = "loop"
	KindCondition Kind = "condition"
	KindBody      Kind = "body"
)

// Role labels an outgoing edge of a multi-exit node. The zero value is the
// sequential "next" edge.
type Role string

const (
	RoleNone  Role = ""
	RoleBody  Role = "body"
	RoleNext  Role = "next"
	RoleTrue  Role = "true"
	RoleFalse Role = "false"
)

// Sequential reports whether the role continues the plain successor chain.
func (r Role) Sequential() bool {
	return r == RoleNone || r == RoleNext
}

// Position is a node position on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Less orders positions left to right, then top to bottom.
func (p Position) Less(o Position) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	return p.Y < o.Y
}

// Node is one visual block. Data carries the kind-specific payload.
type Node struct {
	ID       string
	Label    string
	Position Position
	Data     Data
}

// Kind returns the node kind derived from its data.
func (n Node) Kind() Kind {
	if n.Data == nil {
		return ""
	}
	return n.Data.Kind()
}

// DisplayLabel returns the label used for trace items: the explicit label,
// else the kind, else the id.
func (n Node) DisplayLabel() string {
	if l := strings.TrimSpace(n.Label); l != "" {
		return l
	}
	if k := n.Kind(); k != "" {
		return string(k)
	}
	return n.ID
}

// Edge connects two nodes.
type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
	Role   Role   `json:"sourceHandle,omitempty"`
}

// Graph is the user-authored program.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Index returns the nodes keyed by id. The first node wins on duplicates.
func (g Graph) Index() map[string]Node {
	idx := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, ok := idx[n.ID]; !ok {
			idx[n.ID] = n
		}
	}
	return idx
}

// ErrInvalidGraph is returned by Validate.
var ErrInvalidGraph = errors.New("invalid graph")

// Validate checks the structural invariants a stored graph must satisfy:
// unique non-empty ids and typed data on every node. Dangling edges, cycles
// and duplicate roles are tolerated because the plan builder handles them.
func (g Graph) Validate() error {
	var errs []string
	seen := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		switch {
		case n.ID == "":
			errs = append(errs, fmt.Sprintf("node[%d]: empty id", i))
		case seen[n.ID]:
			errs = append(errs, fmt.Sprintf("node %s: duplicate id", n.ID))
		}
		seen[n.ID] = true
		if n.Data == nil {
			errs = append(errs, fmt.Sprintf("node %s: missing data", n.ID))
		}
	}
	for i, e := range g.Edges {
		switch e.Role {
		case RoleNone, RoleBody, RoleNext, RoleTrue, RoleFalse:
		default:
			errs = append(errs, fmt.Sprintf("edge[%d]: unknown role %q", i, e.Role))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(errs, "; "))
	}
	return nil
}
