package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/codegen"
	"github.com/BaSui01/blockflow/config"
	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/internal/tlsutil"
	"github.com/BaSui01/blockflow/interp"
	"github.com/BaSui01/blockflow/interp/dryrun"
	"github.com/BaSui01/blockflow/interp/python"
	"github.com/BaSui01/blockflow/interp/remote"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/trace"
)

// errRunFailed marks a run whose failures were already reported on stderr.
var errRunFailed = errors.New("run finished with failures")

// newFactory returns the interpreter factory selected by cfg.Kind.
func newFactory(cfg config.InterpreterConfig, logger *zap.Logger) (interp.Factory, error) {
	switch cfg.Kind {
	case "", "dryrun":
		return dryrun.NewFactory(logger), nil
	case "python":
		return python.NewFactory(python.Config{
			Executable: cfg.PythonPath,
			Timeout:    cfg.Timeout,
		}, logger), nil
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, errors.New("remote interpreter requires a URL")
		}
		rc := remote.Config{URL: cfg.RemoteURL, Timeout: cfg.Timeout}
		if strings.HasPrefix(cfg.RemoteURL, "wss://") {
			rc.HTTPClient = tlsutil.KernelClient(10 * time.Second)
		}
		return remote.NewFactory(rc, logger), nil
	default:
		return nil, fmt.Errorf("unknown interpreter kind %q", cfg.Kind)
	}
}

// toolFlags are shared by the local graph commands.
type toolFlags struct {
	file     string
	interp   string
	python   string
	remote   string
	timeout  time.Duration
	maxItems int
	verbose  bool
}

func (f *toolFlags) register(fs *flag.FlagSet, withInterp bool) {
	fs.StringVar(&f.file, "f", "", "Graph file (.json, .yaml or .yml)")
	fs.BoolVar(&f.verbose, "v", false, "Log to stderr")
	if !withInterp {
		return
	}
	fs.StringVar(&f.interp, "interp", "dryrun", "Interpreter: dryrun, python or remote")
	fs.StringVar(&f.python, "python", "python3", "Python executable for -interp python")
	fs.StringVar(&f.remote, "url", "", "Kernel URL for -interp remote")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "Per-call interpreter timeout")
	fs.IntVar(&f.maxItems, "max-items", trace.DefaultMaxItems, "Maximum number of trace items")
}

func (f *toolFlags) logger() *zap.Logger {
	if !f.verbose {
		return zap.NewNop()
	}
	logger, _ := initLogger(config.LogConfig{Level: "debug", Format: "console", OutputPaths: []string{"stderr"}})
	return logger
}

func (f *toolFlags) factory(logger *zap.Logger) (interp.Factory, error) {
	return newFactory(config.InterpreterConfig{
		Kind:       f.interp,
		PythonPath: f.python,
		RemoteURL:  f.remote,
		Timeout:    f.timeout,
	}, logger)
}

func (f *toolFlags) load() (graph.Graph, error) {
	if f.file == "" {
		return graph.Graph{}, errors.New("missing -f graph file")
	}
	return graph.LoadFile(f.file)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// 🧾 codegen 命令
// =============================================================================

func runCodegen(args []string, stdout io.Writer) error {
	var f toolFlags
	fs := flag.NewFlagSet("codegen", flag.ContinueOnError)
	f.register(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := f.load()
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, codegen.GenerateGraph(g.Nodes, g.Edges))
	return err
}

// =============================================================================
// 🧭 trace 命令
// =============================================================================

func runTrace(args []string, stdout io.Writer) error {
	var f toolFlags
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	f.register(fs, true)
	asJSON := fs.Bool("json", false, "Print the queue as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := f.load()
	if err != nil {
		return err
	}
	logger := f.logger()
	defer func() { _ = logger.Sync() }()
	factory, err := f.factory(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	in, err := factory(ctx)
	if err != nil {
		return fmt.Errorf("failed to start interpreter: %w", err)
	}
	defer in.Close()

	b := trace.NewBuilder(
		trace.WithMaxItems(f.maxItems),
		trace.WithReplay(true),
		trace.WithLogger(logger),
	)
	q, err := b.BuildGraph(ctx, g.Nodes, g.Edges, in)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Hash  string      `json:"hash"`
			Items trace.Queue `json:"items"`
		}{q.Hash(), q})
	}
	for i, item := range q {
		if _, err := fmt.Fprintf(stdout, "#%d [%s]\n%s", i, item.Label, item.Text); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// ▶️ run 命令
// =============================================================================

func runRun(args []string, stdout, stderr io.Writer) error {
	var f toolFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	f.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := f.load()
	if err != nil {
		return err
	}
	logger := f.logger()
	defer func() { _ = logger.Sync() }()
	factory, err := f.factory(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	c := session.New(factory,
		session.WithLogger(logger),
		session.WithBuilder(trace.NewBuilder(
			trace.WithMaxItems(f.maxItems),
			trace.WithReplay(true),
			trace.WithLogger(logger),
		)),
	)
	defer c.Close()

	if _, err := c.Rebuild(ctx, g.Nodes, g.Edges); err != nil {
		return err
	}
	res, err := c.RunAll(ctx)
	if _, werr := io.WriteString(stdout, res.Stdout); werr != nil {
		return werr
	}
	if _, werr := io.WriteString(stderr, res.Stderr); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	if res.Failures > 0 || res.Interrupted {
		return errRunFailed
	}
	return nil
}
