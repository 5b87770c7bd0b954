package dryrun

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BaSui01/blockflow/interp"
)

// maxSequence bounds lists and strings built by range and repetition.
const maxSequence = 1_000_000

type scope struct {
	vars map[string]any
	out  *strings.Builder
}

type builtinRef string

func (s *scope) lookup(name string) (any, error) {
	if v, ok := s.vars[name]; ok {
		return v, nil
	}
	if _, ok := builtins[name]; ok {
		return builtinRef(name), nil
	}
	return nil, nameError(name)
}

func syntaxError(format string, args ...any) error {
	return &interp.ExecError{Type: "SyntaxError", Message: fmt.Sprintf(format, args...)}
}

func typeError(format string, args ...any) error {
	return &interp.ExecError{Type: "TypeError", Message: fmt.Sprintf(format, args...)}
}

func valueError(format string, args ...any) error {
	return &interp.ExecError{Type: "ValueError", Message: fmt.Sprintf(format, args...)}
}

func nameError(name string) error {
	return &interp.ExecError{Type: "NameError", Message: fmt.Sprintf("name '%s' is not defined", name)}
}

func zeroDivision() error {
	return &interp.ExecError{Type: "ZeroDivisionError", Message: "division by zero"}
}

func memoryError() error {
	return &interp.ExecError{Type: "MemoryError", Message: "sequence too large"}
}

func truthy(v any) bool {
	if _, ok := v.(builtinRef); ok {
		return true
	}
	return interp.Truthy(v)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []any:
		return "list"
	case builtinRef:
		return "builtin_function_or_method"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// number normalises bool and int64 to int64, and float64 to float64.
func number(v any) (i int64, f float64, isInt bool, ok bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, 1, true, true
		}
		return 0, 0, true, true
	case int64:
		return t, float64(t), true, true
	case float64:
		return 0, t, false, true
	}
	return 0, 0, false, false
}

func unary(op string, v any) (any, error) {
	i, f, isInt, ok := number(v)
	if !ok {
		return nil, typeError("bad operand type for unary %s: '%s'", op, typeName(v))
	}
	if op == "+" {
		if isInt {
			return i, nil
		}
		return f, nil
	}
	if isInt {
		return -i, nil
	}
	return -f, nil
}

func binary(op string, a, b any) (any, error) {
	switch op {
	case "+":
		if as, ok := a.(string); ok {
			if bs, ok := b.(string); ok {
				return as + bs, nil
			}
		}
		if al, ok := a.([]any); ok {
			if bl, ok := b.([]any); ok {
				out := make([]any, 0, len(al)+len(bl))
				return append(append(out, al...), bl...), nil
			}
		}
	case "*":
		if s, n, ok := repeatOperands(a, b); ok {
			return repeat(s, n)
		}
	}

	ai, af, aInt, aok := number(a)
	bi, bf, bInt, bok := number(b)
	if !aok || !bok {
		return nil, typeError("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
	}
	if aInt && bInt {
		return intOp(op, ai, bi)
	}
	return floatOp(op, af, bf)
}

func repeatOperands(a, b any) (any, int64, bool) {
	if n, _, isInt, ok := number(b); ok && isInt {
		switch a.(type) {
		case string, []any:
			return a, n, true
		}
	}
	if n, _, isInt, ok := number(a); ok && isInt {
		switch b.(type) {
		case string, []any:
			return b, n, true
		}
	}
	return nil, 0, false
}

func repeat(seq any, n int64) (any, error) {
	if n < 0 {
		n = 0
	}
	switch s := seq.(type) {
	case string:
		if int64(len(s))*n > maxSequence {
			return nil, memoryError()
		}
		return strings.Repeat(s, int(n)), nil
	case []any:
		if int64(len(s))*n > maxSequence {
			return nil, memoryError()
		}
		out := make([]any, 0, int64(len(s))*n)
		for k := int64(0); k < n; k++ {
			out = append(out, s...)
		}
		return out, nil
	}
	return nil, typeError("can't repeat '%s'", typeName(seq))
}

func intOp(op string, a, b int64) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, zeroDivision()
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, zeroDivision()
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, zeroDivision()
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	case "**":
		if b < 0 || b > 64 {
			return math.Pow(float64(a), float64(b)), nil
		}
		result := int64(1)
		for k := int64(0); k < b; k++ {
			result *= a
		}
		return result, nil
	}
	return nil, syntaxError("unknown operator %q", op)
}

func floatOp(op string, a, b float64) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, zeroDivision()
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, zeroDivision()
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, zeroDivision()
		}
		return a - b*math.Floor(a/b), nil
	case "**":
		return math.Pow(a, b), nil
	}
	return nil, syntaxError("unknown operator %q", op)
}

func equal(a, b any) bool {
	_, af, _, aok := number(a)
	_, bf, _, bok := number(b)
	if aok && bok {
		return af == bf
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case builtinRef:
		y, ok := b.(builtinRef)
		return ok && x == y
	}
	return false
}

func compare(op string, a, b any) (bool, error) {
	switch op {
	case "==":
		return equal(a, b), nil
	case "!=":
		return !equal(a, b), nil
	case "in", "not in":
		found, err := membership(a, b)
		if err != nil {
			return false, err
		}
		return found == (op == "in"), nil
	}

	_, af, _, aok := number(a)
	_, bf, _, bok := number(b)
	if aok && bok {
		return ordered(op, af < bf, af == bf), nil
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return ordered(op, as < bs, as == bs), nil
	}
	return false, typeError("'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
}

func ordered(op string, less, eq bool) bool {
	switch op {
	case "<":
		return less
	case "<=":
		return less || eq
	case ">":
		return !less && !eq
	default:
		return !less
	}
}

func membership(item, container any) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeError("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case []any:
		for _, v := range c {
			if equal(item, v) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, typeError("argument of type '%s' is not iterable", typeName(container))
}

func subscript(target, index any) (any, error) {
	i, _, isInt, ok := number(index)
	if !ok || !isInt {
		return nil, typeError("indices must be integers, not %s", typeName(index))
	}
	switch t := target.(type) {
	case string:
		runes := []rune(t)
		k, err := normalizeIndex(i, len(runes))
		if err != nil {
			return nil, err
		}
		return string(runes[k]), nil
	case []any:
		k, err := normalizeIndex(i, len(t))
		if err != nil {
			return nil, err
		}
		return t[k], nil
	}
	return nil, typeError("'%s' object is not subscriptable", typeName(target))
}

func normalizeIndex(i int64, length int) (int, error) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, &interp.ExecError{Type: "IndexError", Message: "index out of range"}
	}
	return int(i), nil
}

// str renders a value the way print does.
func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return repr(v)
}

func repr(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t)
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, "'", `\'`, "\n", `\n`, "\t", `\t`).Replace(t) + "'"
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = repr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case builtinRef:
		return "<built-in function " + string(t) + ">"
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.Abs(f) < 1e16 && f == math.Trunc(f) {
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
