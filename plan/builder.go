package plan

import (
	"sort"

	"github.com/BaSui01/blockflow/graph"
)

// Build turns a flat graph into a rooted, nested plan. It is deterministic,
// never fails, and emits every node at most once.
func Build(nodes []graph.Node, edges []graph.Edge) []Node {
	b := newBuilder(nodes, edges)
	var out []Node
	for _, id := range b.roots() {
		if n := b.visit(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// FromGraph is Build over a graph value.
func FromGraph(g graph.Graph) []Node {
	return Build(g.Nodes, g.Edges)
}

type builder struct {
	order   []graph.Node
	byID    map[string]graph.Node
	out     map[string][]graph.Edge
	inDeg   map[string]int
	visited map[string]bool
}

func newBuilder(nodes []graph.Node, edges []graph.Edge) *builder {
	b := &builder{
		byID:    make(map[string]graph.Node, len(nodes)),
		out:     make(map[string][]graph.Edge),
		inDeg:   make(map[string]int, len(nodes)),
		visited: make(map[string]bool, len(nodes)),
	}
	for _, n := range nodes {
		if _, dup := b.byID[n.ID]; dup {
			continue
		}
		b.byID[n.ID] = n
		b.order = append(b.order, n)
		b.inDeg[n.ID] = 0
	}
	for _, e := range edges {
		if _, ok := b.byID[e.Source]; !ok {
			continue
		}
		if _, ok := b.byID[e.Target]; !ok {
			continue
		}
		b.out[e.Source] = append(b.out[e.Source], e)
		b.inDeg[e.Target]++
	}
	for src, list := range b.out {
		sort.SliceStable(list, func(i, j int) bool {
			return b.before(b.byID[list[i].Target], b.byID[list[j].Target])
		})
		b.out[src] = list
	}
	return b
}

// before orders nodes by visual position, falling back to id.
func (b *builder) before(x, y graph.Node) bool {
	if x.Position != y.Position {
		return x.Position.Less(y.Position)
	}
	return x.ID < y.ID
}

func (b *builder) roots() []string {
	var roots []graph.Node
	for _, n := range b.order {
		if b.inDeg[n.ID] == 0 {
			roots = append(roots, n)
		}
	}
	if len(roots) == 0 && len(b.order) > 0 {
		first := b.order[0]
		for _, n := range b.order[1:] {
			if b.before(n, first) {
				first = n
			}
		}
		roots = []graph.Node{first}
	}
	sort.SliceStable(roots, func(i, j int) bool { return b.before(roots[i], roots[j]) })

	ids := make([]string, len(roots))
	for i, n := range roots {
		ids[i] = n.ID
	}
	return ids
}

func (b *builder) visit(id string) Node {
	if b.visited[id] {
		return nil
	}
	n, ok := b.byID[id]
	if !ok {
		return nil
	}
	b.visited[id] = true
	edges := b.out[id]

	switch d := n.Data.(type) {
	case graph.LoopData:
		loop := &Loop{
			ID:        n.ID,
			Label:     n.DisplayLabel(),
			IndexVar:  d.Index(),
			CountExpr: d.CountExpr(),
			PreBody:   d.Body,
		}
		if e, ok := first(edges, func(r graph.Role) bool { return r == graph.RoleBody || r == graph.RoleNone }); ok {
			loop.Body = b.visitAll([]graph.Edge{e})
		}
		if e, ok := first(edges, func(r graph.Role) bool { return r == graph.RoleNext }); ok {
			loop.Next = b.visitAll([]graph.Edge{e})
		}
		return loop

	case graph.ConditionData:
		cond := &Condition{ID: n.ID, Label: n.DisplayLabel(), Expr: d.Expr()}
		if e, ok := first(edges, func(r graph.Role) bool { return r == graph.RoleTrue }); ok {
			cond.True = b.visitAll([]graph.Edge{e})
		}
		if e, ok := first(edges, func(r graph.Role) bool { return r == graph.RoleFalse }); ok {
			cond.False = b.visitAll([]graph.Edge{e})
		}
		cond.Next = b.visitAll(filter(edges, graph.Role.Sequential))
		return cond

	default:
		return &Plain{
			ID:       n.ID,
			Label:    n.DisplayLabel(),
			Text:     graph.BlockText(n),
			Children: b.visitAll(filter(edges, graph.Role.Sequential)),
		}
	}
}

func (b *builder) visitAll(edges []graph.Edge) []Node {
	var out []Node
	for _, e := range edges {
		if n := b.visit(e.Target); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func first(edges []graph.Edge, match func(graph.Role) bool) (graph.Edge, bool) {
	for _, e := range edges {
		if match(e.Role) {
			return e, true
		}
	}
	return graph.Edge{}, false
}

func filter(edges []graph.Edge, match func(graph.Role) bool) []graph.Edge {
	var out []graph.Edge
	for _, e := range edges {
		if match(e.Role) {
			out = append(out, e)
		}
	}
	return out
}
