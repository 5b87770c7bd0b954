package interp

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{true, true},
		{0, false},
		{int64(2), true},
		{0.0, false},
		{math.NaN(), true},
		{"", false},
		{"False", true},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
		{Opaque{Repr: "<obj>", Truth: false}, false},
		{struct{}{}, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Truthy(c.v), "%#v", c.v)
	}
}

func TestAsCount(t *testing.T) {
	cases := []struct {
		v    any
		want int
		ok   bool
	}{
		{3, 3, true},
		{int64(4), 4, true},
		{2.9, 2, true},
		{-1.5, -1, true},
		{"7", 7, true},
		{true, 1, true},
		{math.Inf(1), 0, false},
		{math.NaN(), 0, false},
		{"inf", 0, false},
		{"many", 0, false},
		{nil, 0, false},
		{[]any{1}, 0, false},
		{Opaque{Repr: "5"}, 5, true},
	}
	for _, c := range cases {
		got, ok := AsCount(c.v)
		assert.Equal(t, c.ok, ok, "%#v", c.v)
		assert.Equal(t, c.want, got, "%#v", c.v)
	}
}

type stubInterpreter struct {
	value any
	out   Output
	err   error
}

func (s stubInterpreter) Evaluate(context.Context, string) (any, error) { return s.value, s.err }
func (s stubInterpreter) Execute(context.Context, string) (Output, error) {
	return s.out, s.err
}
func (s stubInterpreter) Close() error { return nil }

func TestServeDecode_RoundTrip(t *testing.T) {
	ctx := context.Background()

	resp := Serve(ctx, stubInterpreter{value: 3.0}, Request{ID: 1, Op: OpEval, Code: "n"})
	v, _, err := resp.Decode()
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, uint64(1), resp.ID)

	resp = Serve(ctx, stubInterpreter{value: Opaque{Repr: "<x>", Truth: true}}, Request{Op: OpEval})
	v, _, err = resp.Decode()
	require.NoError(t, err)
	assert.Equal(t, Opaque{Repr: "<x>", Truth: true}, v)

	exec := stubInterpreter{out: Output{Stdout: "a\n", Stderr: "boom\n"}, err: &ExecError{Type: "ValueError", Message: "bad"}}
	resp = Serve(ctx, exec, Request{Op: OpExec, Code: "x"})
	_, out, err := resp.Decode()
	var ee *ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "ValueError: bad", ee.Error())
	assert.Equal(t, "a\n", out.Stdout)
	assert.Equal(t, "boom\n", out.Stderr)

	resp = Serve(ctx, stubInterpreter{}, Request{Op: "compile"})
	_, _, err = resp.Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown op")
}
