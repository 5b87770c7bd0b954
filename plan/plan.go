package plan

import "encoding/json"

// Node is a plan node. The set of implementations is closed: Plain, Loop,
// Condition.
type Node interface {
	NodeID() string
	NodeLabel() string
	planNode()
}

// Plain is a single-exit block emitted verbatim, followed by its children.
type Plain struct {
	ID       string
	Label    string
	Text     string
	Children []Node
}

// Loop unrolls Body CountExpr times, then continues with Next.
type Loop struct {
	ID        string
	Label     string
	IndexVar  string
	CountExpr string
	PreBody   string
	Body      []Node
	Next      []Node
}

// Condition takes True or False, then continues with Next.
type Condition struct {
	ID    string
	Label string
	Expr  string
	True  []Node
	False []Node
	Next  []Node
}

func (p *Plain) NodeID() string     { return p.ID }
func (l *Loop) NodeID() string      { return l.ID }
func (c *Condition) NodeID() string { return c.ID }

func (p *Plain) NodeLabel() string     { return p.Label }
func (l *Loop) NodeLabel() string      { return l.Label }
func (c *Condition) NodeLabel() string { return c.Label }

func (*Plain) planNode()     {}
func (*Loop) planNode()      {}
func (*Condition) planNode() {}

// MarshalJSON encodes the plain node with a kind discriminator.
func (p *Plain) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     string `json:"kind"`
		ID       string `json:"nodeId"`
		Label    string `json:"label,omitempty"`
		Text     string `json:"text"`
		Children []Node `json:"children"`
	}{"plain", p.ID, p.Label, p.Text, nonNil(p.Children)})
}

// MarshalJSON encodes the loop node with a kind discriminator.
func (l *Loop) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      string `json:"kind"`
		ID        string `json:"nodeId"`
		Label     string `json:"label,omitempty"`
		IndexVar  string `json:"indexVar"`
		CountExpr string `json:"countExpr"`
		PreBody   string `json:"preBody,omitempty"`
		Body      []Node `json:"body"`
		Next      []Node `json:"next"`
	}{"loop", l.ID, l.Label, l.IndexVar, l.CountExpr, l.PreBody, nonNil(l.Body), nonNil(l.Next)})
}

// MarshalJSON encodes the condition node with a kind discriminator.
func (c *Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		ID    string `json:"nodeId"`
		Label string `json:"label,omitempty"`
		Expr  string `json:"condition"`
		True  []Node `json:"true"`
		False []Node `json:"false"`
		Next  []Node `json:"next"`
	}{"condition", c.ID, c.Label, c.Expr, nonNil(c.True), nonNil(c.False), nonNil(c.Next)})
}

func nonNil(nodes []Node) []Node {
	if nodes == nil {
		return []Node{}
	}
	return nodes
}

// Walk visits every node depth-first in emission order.
func Walk(nodes []Node, fn func(n Node, depth int)) {
	walk(nodes, 0, fn)
}

func walk(nodes []Node, depth int, fn func(Node, int)) {
	for _, n := range nodes {
		fn(n, depth)
		switch v := n.(type) {
		case *Plain:
			walk(v.Children, depth, fn)
		case *Loop:
			walk(v.Body, depth+1, fn)
			walk(v.Next, depth, fn)
		case *Condition:
			walk(v.True, depth+1, fn)
			walk(v.False, depth+1, fn)
			walk(v.Next, depth, fn)
		}
	}
}

// Size returns the number of nodes in the plan.
func Size(nodes []Node) int {
	n := 0
	Walk(nodes, func(Node, int) { n++ })
	return n
}
