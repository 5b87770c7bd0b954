package codegen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BaSui01/blockflow/graph"
)

// checkIndentation verifies the block structure of indentation-delimited
// source: every header ending in ':' opens a deeper block, dedents return to
// an enclosing level, and every else pairs with an if at the same level.
func checkIndentation(src string) error {
	stack := []int{0}
	expectIndent := false
	lastAt := map[int]string{}

	for i, raw := range strings.Split(src, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := strings.TrimLeft(raw, " ")
		if strings.HasPrefix(line, "\t") {
			return fmt.Errorf("line %d: tab indentation", i+1)
		}
		indent := len(raw) - len(line)
		if indent%4 != 0 {
			return fmt.Errorf("line %d: indent %d is not a multiple of 4", i+1, indent)
		}

		top := stack[len(stack)-1]
		switch {
		case expectIndent:
			if indent <= top {
				return fmt.Errorf("line %d: expected an indented block", i+1)
			}
			stack = append(stack, indent)
		case indent > top:
			return fmt.Errorf("line %d: unexpected indent", i+1)
		default:
			for len(stack) > 1 && stack[len(stack)-1] > indent {
				delete(lastAt, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			if stack[len(stack)-1] != indent {
				return fmt.Errorf("line %d: dedent does not match any outer level", i+1)
			}
		}

		if line == "else:" && !strings.HasPrefix(lastAt[indent], "if ") {
			return fmt.Errorf("line %d: else without if", i+1)
		}
		lastAt[indent] = line
		expectIndent = strings.HasSuffix(line, ":")
	}
	if expectIndent {
		return fmt.Errorf("source ends with an open block")
	}
	return nil
}

// shaper decodes a byte sequence into an acyclic, single-root graph whose
// loop and condition nesting never exceeds maxDepth.
type shaper struct {
	choices  []uint8
	pos      int
	maxDepth int
	nodes    []graph.Node
	edges    []graph.Edge
}

var bodies = []string{"x = 1", "print(x)", "y = x + 1\nprint(y)", ""}

func (s *shaper) next() int {
	if s.pos >= len(s.choices) {
		return 0
	}
	c := s.choices[s.pos]
	s.pos++
	return int(c)
}

func (s *shaper) add(data graph.Data) string {
	id := fmt.Sprintf("n%d", len(s.nodes))
	s.nodes = append(s.nodes, graph.Node{ID: id, Position: graph.Position{X: float64(len(s.nodes))}, Data: data})
	return id
}

func (s *shaper) link(src, dst string, role graph.Role) {
	s.edges = append(s.edges, graph.Edge{Source: src, Target: dst, Role: role})
}

func (s *shaper) chain(depth int) string {
	length := 1 + s.next()%3
	var first, prev string
	var prevKind graph.Kind
	for i := 0; i < length; i++ {
		id, kind := s.block(depth)
		if first == "" {
			first = id
		} else {
			role := graph.RoleNone
			if prevKind == graph.KindLoop {
				role = graph.RoleNext
			}
			s.link(prev, id, role)
		}
		prev, prevKind = id, kind
	}
	return first
}

func (s *shaper) block(depth int) (string, graph.Kind) {
	kind := s.next() % 5
	if depth >= s.maxDepth && (kind == 2 || kind == 3) {
		kind = 4
	}
	switch kind {
	case 0:
		return s.add(graph.VariableData{Variables: []graph.Variable{{Name: "x", Type: graph.TypeInt, Value: s.next()}}}), graph.KindVariable
	case 1:
		return s.add(graph.FunctionData{Name: "f", Params: []graph.Param{{Name: "a"}}, Body: bodies[s.next()%len(bodies)]}), graph.KindFunction
	case 2:
		pre := ""
		if s.next()%2 == 0 {
			pre = bodies[s.next()%len(bodies)]
		}
		id := s.add(graph.LoopData{CountVar: "x", Body: pre})
		if s.next()%3 != 0 {
			s.link(id, s.chain(depth+1), graph.RoleBody)
		}
		return id, graph.KindLoop
	case 3:
		id := s.add(graph.ConditionData{Condition: "x > 0"})
		if s.next()%3 != 0 {
			s.link(id, s.chain(depth+1), graph.RoleTrue)
		}
		if s.next()%3 != 0 {
			s.link(id, s.chain(depth+1), graph.RoleFalse)
		}
		return id, graph.KindCondition
	default:
		return s.add(graph.BodyData{Text: bodies[s.next()%len(bodies)]}), graph.KindBody
	}
}

// Property: generated code is well-formed for nesting up to five levels.
func TestProperty_GeneratedCodeIsWellFormed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("indentation is structurally valid", prop.ForAll(
		func(choices []uint8, maxDepth int) bool {
			s := &shaper{choices: choices, maxDepth: maxDepth}
			s.chain(0)
			code := GenerateGraph(s.nodes, s.edges)
			if err := checkIndentation(code); err != nil {
				t.Logf("%v\n%s", err, code)
				return false
			}
			return true
		},
		gen.SliceOfN(64, gen.UInt8()),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

func TestGenerate_FiveLevelsDeep(t *testing.T) {
	// loop > condition > loop > condition > loop > body
	s := &shaper{maxDepth: 5}
	outer := s.add(graph.LoopData{Count: "2"})
	c1 := s.add(graph.ConditionData{Condition: "i > 0"})
	l2 := s.add(graph.LoopData{IndexVar: "j", Count: "2"})
	c2 := s.add(graph.ConditionData{Condition: "j > 0"})
	l3 := s.add(graph.LoopData{IndexVar: "k", Count: "2"})
	leaf := s.add(graph.BodyData{Text: "print(i, j, k)"})
	s.link(outer, c1, graph.RoleBody)
	s.link(c1, l2, graph.RoleTrue)
	s.link(l2, c2, graph.RoleBody)
	s.link(c2, l3, graph.RoleFalse)
	s.link(l3, leaf, graph.RoleBody)

	code := GenerateGraph(s.nodes, s.edges)
	if err := checkIndentation(code); err != nil {
		t.Fatalf("%v\n%s", err, code)
	}
	if !strings.Contains(code, "\n                    print(i, j, k)\n") {
		t.Fatalf("leaf not at depth 5:\n%s", code)
	}
}

func TestCheckIndentation_RejectsBrokenSource(t *testing.T) {
	broken := []string{
		"for i in range(3):\nprint(i)\n",
		"x = 1\n    y = 2\n",
		"if x:\n    a = 1\n  b = 2\n",
		"else:\n    pass\n",
		"if x:\n",
	}
	for _, src := range broken {
		if checkIndentation(src) == nil {
			t.Errorf("expected rejection of %q", src)
		}
	}
}
