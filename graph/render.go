package graph

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

const indentUnit = "    "

// Indent prefixes every non-empty line of s with depth indentation units.
func Indent(s string, depth int) string {
	if depth <= 0 {
		return s
	}
	prefix := strings.Repeat(indentUnit, depth)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// Line normalises s to end with exactly one line terminator.
func Line(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace) + "\n"
}

// BlockText renders the statement text of a single-exit block. Loop and
// condition blocks are structural and render through the plan instead; for
// them BlockText returns their header line.
func BlockText(n Node) string {
	switch d := n.Data.(type) {
	case VariableData:
		return d.Render()
	case FunctionData:
		return d.Render()
	case BodyData:
		return d.Render()
	case LoopData:
		return "for " + d.Index() + " in range(" + d.CountExpr() + "):"
	case ConditionData:
		return "if " + d.Expr() + ":"
	default:
		return "pass"
	}
}

// Render returns the assignments, one per line. Unnamed entries are skipped.
func (d VariableData) Render() string {
	var lines []string
	for _, v := range d.Variables {
		if strings.TrimSpace(v.Name) == "" {
			continue
		}
		lines = append(lines, v.Name+" = "+v.expr())
	}
	if len(lines) == 0 {
		return "# (no variables)"
	}
	return strings.Join(lines, "\n")
}

func (v Variable) expr() string {
	if src := v.Source; src != nil {
		switch src.Type {
		case SourceCall:
			if src.Fn != "" {
				args := make([]string, 0, len(src.Args))
				for _, a := range src.Args {
					args = append(args, a.expr())
				}
				return src.Fn + "(" + strings.Join(args, ", ") + ")"
			}
		case SourceVar:
			if src.VarName != "" {
				return src.VarName
			}
		}
	}
	switch v.Type {
	case TypeVar, TypeFunc:
		if s := strings.TrimSpace(scalarText(v.Value)); s != "" {
			return s
		}
		return "None"
	}
	return FormatLiteral(v.Value, v.Type)
}

func (a Arg) expr() string {
	if a.UseVar {
		return a.VarName
	}
	return FormatLiteral(a.Value, a.Type)
}

// Render returns the def statement with its indented body.
func (d FunctionData) Render() string {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = DefaultFuncName
	}
	params := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		if p.Default == nil || p.Default == "" {
			params = append(params, p.Name)
			continue
		}
		params = append(params, p.Name+"="+FormatLiteral(p.Default, p.Type))
	}
	body := strings.TrimRightFunc(d.Body, unicode.IsSpace)
	if strings.TrimSpace(body) == "" {
		body = "pass"
	}
	return "def " + name + "(" + strings.Join(params, ", ") + "):\n" + Indent(body, 1)
}

// Render returns the block text, or pass when it is blank.
func (d BodyData) Render() string {
	body := strings.TrimRightFunc(d.Text, unicode.IsSpace)
	if strings.TrimSpace(body) == "" {
		return "pass"
	}
	return body
}

// FormatLiteral renders value as a source literal of the given type.
// Unparseable numbers render as 0.
func FormatLiteral(value any, t ValueType) string {
	switch t {
	case TypeInt:
		f, ok := toNumber(value)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return "0"
		}
		return formatNumber(math.Trunc(f))
	case TypeFloat:
		f, ok := toNumber(value)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return "0"
		}
		return formatNumber(f)
	case TypeBool:
		return pyBool(isTrue(value))
	case TypeStr:
		return strconv.Quote(scalarText(value))
	}

	switch v := value.(type) {
	case nil:
		return `""`
	case bool:
		return pyBool(v)
	case string:
		switch v {
		case "true":
			return "True"
		case "false":
			return "False"
		}
		if strings.TrimSpace(v) != "" {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return formatNumber(f)
			}
		}
		return strconv.Quote(v)
	}
	if f, ok := toNumber(value); ok {
		return formatNumber(f)
	}
	return strconv.Quote(scalarText(value))
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func isTrue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		// leading integer prefix, as in "12px"
		end := 0
		for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
			end++
		}
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
