package dryrun

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/interp"
)

// compound statement keywords the dry-run interpreter does not execute.
var unsupported = map[string]bool{
	"def": true, "for": true, "while": true, "if": true, "elif": true, "else": true,
	"class": true, "try": true, "except": true, "finally": true, "with": true,
	"import": true, "from": true, "return": true, "global": true, "nonlocal": true,
	"del": true, "raise": true, "assert": true, "lambda": true, "yield": true,
	"break": true, "continue": true,
}

// Interpreter is an in-process interpreter for the statement subset the block
// vocabulary produces: assignments, augmented assignments, expression
// statements such as print calls, pass and comments.
type Interpreter struct {
	mu      sync.Mutex
	globals map[string]any
	closed  bool
	logger  *zap.Logger
}

// New creates an interpreter with an empty global namespace.
func New(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		globals: make(map[string]any),
		logger:  logger.With(zap.String("component", "dryrun_interpreter")),
	}
}

// NewFactory returns a factory producing independent interpreters.
func NewFactory(logger *zap.Logger) interp.Factory {
	return func(context.Context) (interp.Interpreter, error) {
		return New(logger), nil
	}
}

// Evaluate evaluates one expression against the global namespace.
func (in *Interpreter) Evaluate(ctx context.Context, src string) (any, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, interp.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, err := compile(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	var discard strings.Builder
	v, err := e(&scope{vars: in.globals, out: &discard})
	if err != nil {
		return nil, err
	}
	if ref, ok := v.(builtinRef); ok {
		return interp.Opaque{Repr: repr(ref), Truth: true}, nil
	}
	return v, nil
}

// Execute runs code line by line. Execution stops at the first failing line;
// output written before the failure is returned with the error.
func (in *Interpreter) Execute(ctx context.Context, code string) (interp.Output, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return interp.Output{}, interp.ErrClosed
	}

	var stdout strings.Builder
	sc := &scope{vars: in.globals, out: &stdout}
	for lineNo, raw := range strings.Split(code, "\n") {
		if err := ctx.Err(); err != nil {
			return interp.Output{Stdout: stdout.String()}, err
		}
		if err := in.execLine(sc, raw); err != nil {
			in.logger.Debug("statement failed", zap.Int("line", lineNo+1), zap.Error(err))
			return interp.Output{Stdout: stdout.String(), Stderr: traceback(lineNo+1, err)}, err
		}
	}
	return interp.Output{Stdout: stdout.String()}, nil
}

// Close discards the namespace.
func (in *Interpreter) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.globals = nil
	return nil
}

func (in *Interpreter) execLine(sc *scope, raw string) error {
	line := strings.TrimRight(raw, " \t\r")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}
	if line != trimmed {
		return &interp.ExecError{Type: "IndentationError", Message: "unexpected indent"}
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return err
	}
	first := tokens[0]
	if first.kind == tkName {
		if first.text == "pass" && tokens[1].kind == tkEOF {
			return nil
		}
		if unsupported[first.text] {
			return syntaxError("'%s' statements are not supported by the dry-run interpreter", first.text)
		}
	}

	if len(tokens) > 2 && first.kind == tkName && !keywords[first.text] && tokens[1].kind == tkOp {
		switch op := tokens[1].text; op {
		case "=":
			value, err := evalTokens(sc, tokens[2:])
			if err != nil {
				return err
			}
			sc.vars[first.text] = value
			return nil
		case "+=", "-=", "*=", "/=", "%=":
			current, err := sc.lookup(first.text)
			if err != nil {
				return err
			}
			operand, err := evalTokens(sc, tokens[2:])
			if err != nil {
				return err
			}
			value, err := binary(strings.TrimSuffix(op, "="), current, operand)
			if err != nil {
				return err
			}
			sc.vars[first.text] = value
			return nil
		}
	}

	_, err = evalTokens(sc, tokens)
	return err
}

func evalTokens(sc *scope, tokens []token) (any, error) {
	e, err := compileTokens(tokens)
	if err != nil {
		return nil, err
	}
	return e(sc)
}

func traceback(line int, err error) string {
	var ee *interp.ExecError
	if !errors.As(err, &ee) {
		return err.Error() + "\n"
	}
	var sb strings.Builder
	sb.WriteString("Traceback (most recent call last):\n")
	sb.WriteString("  File \"<exec>\", line ")
	sb.WriteString(strconv.Itoa(line))
	sb.WriteString(", in <module>\n")
	sb.WriteString(ee.Error())
	sb.WriteString("\n")
	return sb.String()
}
