package dryrun

import (
	"math"
	"strconv"
	"strings"
)

type builtin func(s *scope, args []any) (any, error)

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"print": builtinPrint,
		"len":   builtinLen,
		"int":   builtinInt,
		"float": builtinFloat,
		"str":   oneArg("str", func(v any) (any, error) { return str(v), nil }),
		"bool":  oneArg("bool", func(v any) (any, error) { return truthy(v), nil }),
		"abs":   oneArg("abs", builtinAbs),
		"min":   extremum("min", "<"),
		"max":   extremum("max", ">"),
		"sum":   oneArg("sum", builtinSum),
		"range": builtinRange,
	}
}

func oneArg(name string, fn func(any) (any, error)) builtin {
	return func(_ *scope, args []any) (any, error) {
		if len(args) != 1 {
			return nil, typeError("%s() takes exactly one argument (%d given)", name, len(args))
		}
		return fn(args[0])
	}
}

func builtinPrint(s *scope, args []any) (any, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = str(a)
	}
	s.out.WriteString(strings.Join(parts, " "))
	s.out.WriteByte('\n')
	return nil, nil
}

func builtinLen(_ *scope, args []any) (any, error) {
	if len(args) != 1 {
		return nil, typeError("len() takes exactly one argument (%d given)", len(args))
	}
	switch t := args[0].(type) {
	case string:
		return int64(len([]rune(t))), nil
	case []any:
		return int64(len(t)), nil
	}
	return nil, typeError("object of type '%s' has no len()", typeName(args[0]))
}

func builtinInt(_ *scope, args []any) (any, error) {
	if len(args) == 0 {
		return int64(0), nil
	}
	switch t := args[0].(type) {
	case bool, int64:
		i, _, _, _ := number(t)
		return i, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, valueError("cannot convert float %s to integer", formatFloat(t))
		}
		return int64(math.Trunc(t)), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, valueError("invalid literal for int() with base 10: %s", repr(t))
		}
		return i, nil
	}
	return nil, typeError("int() argument must be a string or a number, not '%s'", typeName(args[0]))
}

func builtinFloat(_ *scope, args []any) (any, error) {
	if len(args) == 0 {
		return 0.0, nil
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, valueError("could not convert string to float: %s", repr(s))
		}
		return f, nil
	}
	_, f, _, ok := number(args[0])
	if !ok {
		return nil, typeError("float() argument must be a string or a number, not '%s'", typeName(args[0]))
	}
	return f, nil
}

func builtinAbs(v any) (any, error) {
	i, f, isInt, ok := number(v)
	if !ok {
		return nil, typeError("bad operand type for abs(): '%s'", typeName(v))
	}
	if isInt {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	return math.Abs(f), nil
}

func builtinSum(v any) (any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, typeError("'%s' object is not iterable", typeName(v))
	}
	var total any = int64(0)
	for _, item := range list {
		next, err := binary("+", total, item)
		if err != nil {
			return nil, err
		}
		total = next
	}
	return total, nil
}

func extremum(name, op string) builtin {
	return func(_ *scope, args []any) (any, error) {
		items := args
		if len(args) == 1 {
			list, ok := args[0].([]any)
			if !ok {
				return nil, typeError("'%s' object is not iterable", typeName(args[0]))
			}
			items = list
		}
		if len(items) == 0 {
			return nil, valueError("%s() arg is an empty sequence", name)
		}
		best := items[0]
		for _, item := range items[1:] {
			better, err := compare(op, item, best)
			if err != nil {
				return nil, err
			}
			if better {
				best = item
			}
		}
		return best, nil
	}
}

func builtinRange(_ *scope, args []any) (any, error) {
	bounds := make([]int64, len(args))
	for i, a := range args {
		n, _, isInt, ok := number(a)
		if !ok || !isInt {
			return nil, typeError("'%s' object cannot be interpreted as an integer", typeName(a))
		}
		bounds[i] = n
	}
	var start, stop, step int64 = 0, 0, 1
	switch len(bounds) {
	case 1:
		stop = bounds[0]
	case 2:
		start, stop = bounds[0], bounds[1]
	case 3:
		start, stop, step = bounds[0], bounds[1], bounds[2]
	default:
		return nil, typeError("range expected 1 to 3 arguments, got %d", len(bounds))
	}
	if step == 0 {
		return nil, valueError("range() arg 3 must not be zero")
	}
	out := []any{}
	for v := start; (step > 0 && v < stop) || (step < 0 && v > stop); v += step {
		if len(out) >= maxSequence {
			return nil, memoryError()
		}
		out = append(out, v)
	}
	return out, nil
}
