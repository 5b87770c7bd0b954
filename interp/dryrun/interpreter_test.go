package dryrun

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/blockflow/interp"
)

func TestInterpreter_Evaluate(t *testing.T) {
	ctx := context.Background()
	in := New(zaptest.NewLogger(t))
	_, err := in.Execute(ctx, "n = 3\nname = 'blocks'\nitems = [1, 2, 3]\nflag = False")
	require.NoError(t, err)

	tests := []struct {
		expr string
		want any
	}{
		{"n", int64(3)},
		{"n * 2 + 1", int64(7)},
		{"n / 2", 1.5},
		{"7 // 2", int64(3)},
		{"-7 // 2", int64(-4)},
		{"-7 % 3", int64(2)},
		{"2 ** 10", int64(1024)},
		{"2 ** -1", 0.5},
		{"-n", int64(-3)},
		{"n > 2 and name == 'blocks'", true},
		{"flag or n", int64(3)},
		{"not flag", true},
		{"0 <= n < 3", false},
		{"0 <= n <= 3", true},
		{"2 in items", true},
		{"'x' not in name", true},
		{"len(items) + len(name)", int64(9)},
		{"items[-1]", int64(3)},
		{"name[0]", "b"},
		{"int('42') + int(2.9)", int64(44)},
		{"float('1.5')", 1.5},
		{"str(n) + '!'", "3!"},
		{"bool([])", false},
		{"abs(-2.5)", 2.5},
		{"min(4, n, 9)", int64(3)},
		{"max(items)", int64(3)},
		{"sum(items)", int64(6)},
		{"range(3)", []any{int64(0), int64(1), int64(2)}},
		{"range(5, 0, -2)", []any{int64(5), int64(3), int64(1)}},
		{"'ab' * 2", "abab"},
		{"True + 1", int64(2)},
		{"None", nil},
		{"1e3", 1000.0},
		{"(n + 1) * 2", int64(8)},
		{`"a" "b"`, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := in.Evaluate(ctx, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpreter_EvaluateErrors(t *testing.T) {
	ctx := context.Background()
	in := New(nil)

	cases := map[string]string{
		"missing":    "NameError",
		"1 / 0":      "ZeroDivisionError",
		"'a' + 1":    "TypeError",
		"1 +":        "SyntaxError",
		"(1":         "SyntaxError",
		"[1][5]":     "IndexError",
		"int('x')":   "ValueError",
		"'a' < 1":    "TypeError",
		"$":          "SyntaxError",
		"range(0.5)": "TypeError",
	}
	for src, kind := range cases {
		_, err := in.Evaluate(ctx, src)
		var ee *interp.ExecError
		require.True(t, errors.As(err, &ee), "%s: %v", src, err)
		assert.Equal(t, kind, ee.Type, src)
	}
}

func TestInterpreter_ShortCircuit(t *testing.T) {
	in := New(nil)
	ctx := context.Background()
	_, err := in.Execute(ctx, "x = 0")
	require.NoError(t, err)

	v, err := in.Evaluate(ctx, "x != 0 and 10 / x > 1")
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestInterpreter_ExecutePrintAndState(t *testing.T) {
	ctx := context.Background()
	in := New(nil)

	out, err := in.Execute(ctx, "total = 0\n# running sum\nfor_value = 5\ntotal += for_value\npass\nprint('total:', total, 1.0, None, [1, 'a'])\n")
	require.NoError(t, err)
	assert.Equal(t, "total: 5 1.0 None [1, 'a']\n", out.Stdout)
	assert.Empty(t, out.Stderr)

	v, err := in.Evaluate(ctx, "total")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestInterpreter_ExecuteFailureKeepsEarlierOutput(t *testing.T) {
	ctx := context.Background()
	in := New(nil)

	out, err := in.Execute(ctx, "print('before')\ny = undefined_name\nprint('after')")
	require.Error(t, err)
	assert.Equal(t, "before\n", out.Stdout)
	assert.Contains(t, out.Stderr, "line 2")
	assert.Contains(t, out.Stderr, "NameError: name 'undefined_name' is not defined")

	_, err = in.Evaluate(ctx, "y")
	require.Error(t, err, "failed assignment leaves no binding")
}

func TestInterpreter_UnsupportedStatements(t *testing.T) {
	ctx := context.Background()
	in := New(nil)

	for _, src := range []string{"def f():\n    pass", "for i in range(3):", "import math", "    x = 1"} {
		_, err := in.Execute(ctx, src)
		require.Error(t, err, src)
	}
}

func TestInterpreter_CloseAndCancel(t *testing.T) {
	in := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := in.Execute(ctx, "x = 1")
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, in.Close())
	_, err = in.Evaluate(context.Background(), "1")
	require.ErrorIs(t, err, interp.ErrClosed)
	_, err = in.Execute(context.Background(), "x = 1")
	require.ErrorIs(t, err, interp.ErrClosed)
}

func TestFactory_IndependentNamespaces(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	a, err := factory(ctx)
	require.NoError(t, err)
	b, err := factory(ctx)
	require.NoError(t, err)

	_, err = a.Execute(ctx, "x = 1")
	require.NoError(t, err)
	_, err = b.Evaluate(ctx, "x")
	require.Error(t, err)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "3.0", formatFloat(3))
	assert.Equal(t, "0.1", formatFloat(0.1))
	assert.Equal(t, "-2.5", formatFloat(-2.5))
	assert.Equal(t, "1e+20", formatFloat(1e20))
	assert.Equal(t, "inf", formatFloat(math.Inf(1)))
}

