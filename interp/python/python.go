package python

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/interp"
)

//go:embed driver.py
var driverSource string

// Config configures the subprocess interpreter.
type Config struct {
	// Executable is the interpreter binary. Defaults to python3.
	Executable string
	// Timeout bounds a single Evaluate or Execute call. Zero disables it.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env []string
}

// Interpreter runs statements in a long-lived CPython subprocess that speaks
// JSON lines over stdin/stdout. A call that outlives its context kills the
// process; the interpreter is unusable afterwards.
type Interpreter struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	waitErr chan error
	nextID  uint64
	closed  bool
	timeout time.Duration
	logger  *zap.Logger
}

// Start launches a subprocess interpreter.
func Start(ctx context.Context, cfg Config, logger *zap.Logger) (*Interpreter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	exe := cfg.Executable
	if exe == "" {
		exe = "python3"
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "-u", "-c", driverSource)
	if len(cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), cfg.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("python stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("python stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", exe, err)
	}

	in := &Interpreter{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReaderSize(stdout, 64*1024),
		waitErr: make(chan error, 1),
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("component", "python_interpreter"), zap.Int("pid", cmd.Process.Pid)),
	}
	go func() { in.waitErr <- cmd.Wait() }()
	in.logger.Debug("python interpreter started", zap.String("executable", exe))
	return in, nil
}

// NewFactory returns a factory that starts one subprocess per session.
func NewFactory(cfg Config, logger *zap.Logger) interp.Factory {
	return func(ctx context.Context) (interp.Interpreter, error) {
		return Start(ctx, cfg, logger)
	}
}

// Evaluate evaluates one expression in the subprocess.
func (in *Interpreter) Evaluate(ctx context.Context, expr string) (any, error) {
	resp, err := in.call(ctx, interp.OpEval, expr)
	if err != nil {
		return nil, err
	}
	v, _, err := resp.Decode()
	return v, err
}

// Execute runs statement text in the subprocess.
func (in *Interpreter) Execute(ctx context.Context, code string) (interp.Output, error) {
	resp, err := in.call(ctx, interp.OpExec, code)
	if err != nil {
		return interp.Output{}, err
	}
	_, out, err := resp.Decode()
	return out, err
}

type result struct {
	resp interp.Response
	err  error
}

func (in *Interpreter) call(ctx context.Context, op interp.Op, code string) (interp.Response, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return interp.Response{}, interp.ErrClosed
	}
	if in.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.timeout)
		defer cancel()
	}

	in.nextID++
	req := interp.Request{ID: in.nextID, Op: op, Code: code}
	data, err := json.Marshal(req)
	if err != nil {
		return interp.Response{}, err
	}
	if _, err := in.stdin.Write(append(data, '\n')); err != nil {
		in.killLocked()
		return interp.Response{}, fmt.Errorf("python write: %w", err)
	}

	ch := make(chan result, 1)
	go func() {
		line, err := in.stdout.ReadBytes('\n')
		if err != nil {
			ch <- result{err: fmt.Errorf("python read: %w", err)}
			return
		}
		var resp interp.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			ch <- result{err: fmt.Errorf("python decode: %w", err)}
			return
		}
		ch <- result{resp: resp}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			in.killLocked()
			return interp.Response{}, r.err
		}
		if r.resp.ID != req.ID {
			in.killLocked()
			return interp.Response{}, fmt.Errorf("python protocol: response %d for request %d", r.resp.ID, req.ID)
		}
		return r.resp, nil
	case <-ctx.Done():
		in.logger.Warn("python call abandoned, killing interpreter", zap.String("op", string(op)), zap.Error(ctx.Err()))
		in.killLocked()
		return interp.Response{}, ctx.Err()
	}
}

func (in *Interpreter) killLocked() {
	if in.closed {
		return
	}
	in.closed = true
	_ = in.stdin.Close()
	if in.cmd.Process != nil {
		_ = in.cmd.Process.Kill()
	}
}

// Close stops the subprocess, killing it if it does not exit promptly.
func (in *Interpreter) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	_ = in.stdin.Close()
	in.mu.Unlock()

	select {
	case <-in.waitErr:
	case <-time.After(2 * time.Second):
		_ = in.cmd.Process.Kill()
		<-in.waitErr
	}
	in.logger.Debug("python interpreter stopped")
	return nil
}
