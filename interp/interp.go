package interp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Interpreter is a persistent interpreter session. Statements executed through
// one Interpreter share a single global namespace. Implementations are not
// required to be safe for concurrent use; callers serialise access.
type Interpreter interface {
	// Evaluate evaluates a single expression and returns its value.
	Evaluate(ctx context.Context, expr string) (any, error)
	// Execute runs statement text and returns what it wrote. A statement that
	// raises returns its captured output together with an *ExecError.
	Execute(ctx context.Context, code string) (Output, error)
	// Close releases the session.
	Close() error
}

// Factory creates a fresh interpreter session.
type Factory func(ctx context.Context) (Interpreter, error)

// Output is the captured output of one Execute call.
type Output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// ErrClosed is returned by calls on a closed interpreter.
var ErrClosed = errors.New("interpreter closed")

// ExecError reports an exception raised by user code.
type ExecError struct {
	Type    string
	Message string
}

func (e *ExecError) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

// Opaque is a value the interpreter could not transfer structurally. It keeps
// the textual representation and the truth value computed by the interpreter.
type Opaque struct {
	Repr  string `json:"repr"`
	Truth bool   `json:"truthy"`
}

func (o Opaque) String() string { return o.Repr }

// Truthy applies scripting-language truthiness to a transferred value.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case Opaque:
		return t.Truth
	default:
		return true
	}
}

// AsCount converts a transferred value to a loop trip count. Non-numeric and
// non-finite values report false; fractional values truncate toward zero.
func AsCount(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case Opaque:
		return AsCount(t.Repr)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

// Op is a wire request operation.
type Op string

const (
	OpEval Op = "eval"
	OpExec Op = "exec"
)

// Request is one wire request understood by out-of-process interpreters.
type Request struct {
	ID   uint64 `json:"id"`
	Op   Op     `json:"op"`
	Code string `json:"code"`
}

// Response answers a Request.
type Response struct {
	ID        uint64 `json:"id"`
	OK        bool   `json:"ok"`
	Value     any    `json:"value,omitempty"`
	Opaque    bool   `json:"opaque,omitempty"`
	Truthy    bool   `json:"truthy,omitempty"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Serve answers a wire request using in. It is the server half of the wire
// protocol spoken by the python and remote adapters.
func Serve(ctx context.Context, in Interpreter, req Request) Response {
	resp := Response{ID: req.ID, OK: true}
	switch req.Op {
	case OpEval:
		v, err := in.Evaluate(ctx, req.Code)
		if err != nil {
			return failure(resp, err)
		}
		resp.Value = v
		if o, ok := v.(Opaque); ok {
			resp.Value, resp.Opaque, resp.Truthy = o.Repr, true, o.Truth
		}
	case OpExec:
		out, err := in.Execute(ctx, req.Code)
		resp.Stdout, resp.Stderr = out.Stdout, out.Stderr
		if err != nil {
			return failure(resp, err)
		}
	default:
		return failure(resp, fmt.Errorf("unknown op %q", req.Op))
	}
	return resp
}

func failure(resp Response, err error) Response {
	resp.OK = false
	resp.Error = err.Error()
	var ee *ExecError
	if errors.As(err, &ee) {
		resp.ErrorType, resp.Error = ee.Type, ee.Message
	}
	return resp
}

// Decode turns a wire response back into call results.
func (r Response) Decode() (any, Output, error) {
	out := Output{Stdout: r.Stdout, Stderr: r.Stderr}
	if !r.OK {
		if r.ErrorType != "" {
			return nil, out, &ExecError{Type: r.ErrorType, Message: r.Error}
		}
		return nil, out, errors.New(r.Error)
	}
	if r.Opaque {
		repr, _ := r.Value.(string)
		return Opaque{Repr: repr, Truth: r.Truthy}, out, nil
	}
	return r.Value, out, nil
}
