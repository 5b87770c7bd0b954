package python

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/blockflow/interp"
)

func startPython(t *testing.T, cfg Config) *Interpreter {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	in, err := Start(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = in.Close() })
	return in
}

func TestInterpreter_PersistentNamespace(t *testing.T) {
	in := startPython(t, Config{Timeout: 10 * time.Second})
	ctx := context.Background()

	out, err := in.Execute(ctx, "n = 3\nprint('n is', n)\n")
	require.NoError(t, err)
	assert.Equal(t, "n is 3\n", out.Stdout)

	v, err := in.Evaluate(ctx, "n * 2")
	require.NoError(t, err)
	count, ok := interp.AsCount(v)
	require.True(t, ok)
	assert.Equal(t, 6, count)

	v, err = in.Evaluate(ctx, "n > 5")
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestInterpreter_ExceptionIsReported(t *testing.T) {
	in := startPython(t, Config{Timeout: 10 * time.Second})
	ctx := context.Background()

	out, err := in.Execute(ctx, "print('before')\n1 / 0\n")
	var ee *interp.ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "ZeroDivisionError", ee.Type)
	assert.Equal(t, "before\n", out.Stdout)
	assert.Contains(t, out.Stderr, "ZeroDivisionError")

	_, err = in.Evaluate(ctx, "undefined_name")
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "NameError", ee.Type)
}

func TestInterpreter_ExitDoesNotKillSession(t *testing.T) {
	in := startPython(t, Config{Timeout: 10 * time.Second})
	ctx := context.Background()

	_, err := in.Execute(ctx, "n = 4\n")
	require.NoError(t, err)

	for _, code := range []string{"import sys\nsys.exit(2)\n", "exit()\n"} {
		_, err = in.Execute(ctx, code)
		var ee *interp.ExecError
		require.True(t, errors.As(err, &ee), code)
		assert.Equal(t, "SystemExit", ee.Type)
	}

	v, err := in.Evaluate(ctx, "n")
	require.NoError(t, err)
	count, _ := interp.AsCount(v)
	assert.Equal(t, 4, count)
}

func TestInterpreter_InputSeesEndOfInput(t *testing.T) {
	in := startPython(t, Config{Timeout: 10 * time.Second})
	ctx := context.Background()

	_, err := in.Execute(ctx, "x = input()\n")
	var ee *interp.ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "EOFError", ee.Type)

	out, err := in.Execute(ctx, "print('still here')\n")
	require.NoError(t, err)
	assert.Equal(t, "still here\n", out.Stdout)
}

func TestInterpreter_OpaqueValues(t *testing.T) {
	in := startPython(t, Config{Timeout: 10 * time.Second})
	ctx := context.Background()

	v, err := in.Evaluate(ctx, "object()")
	require.NoError(t, err)
	o, ok := v.(interp.Opaque)
	require.True(t, ok)
	assert.True(t, o.Truth)

	v, err = in.Evaluate(ctx, "float('inf')")
	require.NoError(t, err)
	_, ok = interp.AsCount(v)
	assert.False(t, ok)
}

func TestInterpreter_TimeoutKillsProcess(t *testing.T) {
	in := startPython(t, Config{Timeout: 200 * time.Millisecond})
	ctx := context.Background()

	_, err := in.Execute(ctx, "import time\ntime.sleep(5)\n")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = in.Evaluate(ctx, "1")
	require.ErrorIs(t, err, interp.ErrClosed)
}

func TestStart_MissingExecutable(t *testing.T) {
	_, err := Start(context.Background(), Config{Executable: "definitely-not-a-python-binary"}, nil)
	require.Error(t, err)
}
