package codegen

import (
	"strings"
	"unicode"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/plan"
)

// Generate renders a plan as whole-program source text. Both branches of
// every condition are emitted; loop counts stay unevaluated.
func Generate(nodes []plan.Node) string {
	var w writer
	w.nodes(nodes, 0)
	return w.sb.String()
}

// GenerateGraph plans the graph and renders it.
func GenerateGraph(nodes []graph.Node, edges []graph.Edge) string {
	return Generate(plan.Build(nodes, edges))
}

type writer struct {
	sb strings.Builder
}

func (w *writer) nodes(nodes []plan.Node, depth int) {
	for _, n := range nodes {
		w.node(n, depth)
	}
}

func (w *writer) node(n plan.Node, depth int) {
	switch v := n.(type) {
	case *plan.Plain:
		if !w.block(v.Text, depth) {
			w.line("pass", depth)
		}
		w.nodes(v.Children, depth)

	case *plan.Loop:
		w.line("for "+v.IndexVar+" in range("+v.CountExpr+"):", depth)
		wrote := w.block(v.PreBody, depth+1)
		if !wrote && len(v.Body) == 0 {
			w.line("pass", depth+1)
		}
		w.nodes(v.Body, depth+1)
		w.nodes(v.Next, depth)

	case *plan.Condition:
		w.line("if "+v.Expr+":", depth)
		w.branch(v.True, depth+1)
		w.line("else:", depth)
		w.branch(v.False, depth+1)
		w.nodes(v.Next, depth)
	}
}

func (w *writer) branch(nodes []plan.Node, depth int) {
	if len(nodes) == 0 {
		w.line("pass", depth)
		return
	}
	w.nodes(nodes, depth)
}

// block writes text with trailing blank lines removed and reports whether
// anything was written.
func (w *writer) block(text string, depth int) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if strings.TrimSpace(text) == "" {
		return false
	}
	w.sb.WriteString(graph.Indent(text, depth))
	w.sb.WriteByte('\n')
	return true
}

func (w *writer) line(s string, depth int) {
	w.sb.WriteString(strings.Repeat("    ", depth))
	w.sb.WriteString(s)
	w.sb.WriteByte('\n')
}
