package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/interp"
	"github.com/BaSui01/blockflow/plan"
	"github.com/BaSui01/blockflow/trace"
)

// State is the controller state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateClosed  State = "closed"
)

var (
	// ErrSessionBusy rejects a call that overlaps a running Step, RunAll,
	// Rebuild or Restart.
	ErrSessionBusy = errors.New("session busy")
	// ErrSessionClosed is returned by calls on a closed controller.
	ErrSessionClosed = errors.New("session closed")
)

// Listener observes cursor movement. Callbacks run on the calling goroutine
// without controller locks held.
type Listener interface {
	OnStepChange(index int, item trace.Item)
	OnReset()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	StepChange func(index int, item trace.Item)
	Reset      func()
}

func (f ListenerFuncs) OnStepChange(index int, item trace.Item) {
	if f.StepChange != nil {
		f.StepChange(index, item)
	}
}

func (f ListenerFuncs) OnReset() {
	if f.Reset != nil {
		f.Reset()
	}
}

// Recorder receives step and run observations.
type Recorder interface {
	RecordSessionStep(outcome string, duration time.Duration)
	RecordSessionRun(status string, steps int, duration time.Duration)
}

// Snapshot is a point-in-time view of a controller for presentation.
type Snapshot struct {
	Cursor       int         `json:"cursor"`
	Total        int         `json:"total"`
	State        State       `json:"state"`
	Initialized  bool        `json:"initialized"`
	Stdout       string      `json:"stdout"`
	Stderr       string      `json:"stderr"`
	ActiveNodeID string      `json:"activeNodeId,omitempty"`
	QueueHash    string      `json:"queueHash"`
	Generation   uint64      `json:"generation"`
	Queue        trace.Queue `json:"queue,omitempty"`
}

// StepResult describes one executed item.
type StepResult struct {
	Index  int           `json:"index"`
	Item   trace.Item    `json:"item"`
	Output interp.Output `json:"output"`
	Error  string        `json:"error,omitempty"`
	// Done is set when the cursor was already past the end and nothing ran.
	Done bool `json:"done"`
}

// RunResult summarises a RunAll call. Stdout and Stderr hold only what this
// run appended to the session logs.
type RunResult struct {
	Executed    int    `json:"executed"`
	Failures    int    `json:"failures"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Interrupted bool   `json:"interrupted"`
}

// Controller drives one interpreter session over a trace queue: a cursor
// into the queue, accumulated stdout and stderr logs, and an idle/running
// state machine that rejects overlapping operations.
type Controller struct {
	factory  interp.Factory
	builder  *trace.Builder
	logger   *zap.Logger
	tracer   oteltrace.Tracer
	recorder Recorder
	initOnce singleflight.Group

	mu         sync.Mutex
	in         interp.Interpreter
	queue      trace.Queue
	hash       string
	hashSet    bool
	cursor     int
	state      State
	generation uint64
	stdout     strings.Builder
	stderr     strings.Builder
	active     string
	listeners  map[int]Listener
	nextLID    int
	lastActive time.Time
}

// RunOption configures a single RunAll call.
type RunOption func(*runOptions)

type runOptions struct {
	onStart func(ctx context.Context) error
}

// WithRunStart calls fn once the run has been accepted, before any item
// executes. An error from fn aborts the run and is returned by RunAll.
func WithRunStart(fn func(ctx context.Context) error) RunOption {
	return func(o *runOptions) { o.onStart = fn }
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBuilder sets the trace builder used by Rebuild. The default builder
// replays items against a scratch interpreter.
func WithBuilder(b *trace.Builder) Option {
	return func(c *Controller) {
		if b != nil {
			c.builder = b
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithTracer(t oteltrace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithListener registers a listener at construction time.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.addListener(l) }
}

// New creates an idle controller with an empty queue. The interpreter is
// acquired lazily on the first Init, Step or RunAll.
func New(factory interp.Factory, opts ...Option) *Controller {
	c := &Controller{
		factory:    factory,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("github.com/BaSui01/blockflow/session"),
		state:      StateIdle,
		listeners:  make(map[int]Listener),
		lastActive: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.builder == nil {
		c.builder = trace.NewBuilder(trace.WithReplay(true), trace.WithLogger(c.logger))
	}
	c.logger = c.logger.With(zap.String("component", "session"))
	return c
}

// Subscribe registers l and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.addListener(l)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) addListener(l Listener) int {
	c.nextLID++
	c.listeners[c.nextLID] = l
	return c.nextLID
}

func (c *Controller) listenersLocked() []Listener {
	out := make([]Listener, 0, len(c.listeners))
	for i := 1; i <= c.nextLID; i++ {
		if l, ok := c.listeners[i]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Init acquires the interpreter. Concurrent callers share one acquisition;
// later calls return immediately.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrSessionClosed
	case c.in != nil:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	_, err, _ := c.initOnce.Do("init", func() (any, error) {
		c.mu.Lock()
		ready := c.in != nil
		c.mu.Unlock()
		if ready {
			return nil, nil
		}

		in, err := c.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to start interpreter: %w", err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == StateClosed {
			_ = in.Close()
			return nil, ErrSessionClosed
		}
		c.in = in
		c.logger.Debug("interpreter ready")
		return nil, nil
	})
	return err
}

// begin moves idle to running and returns the generation the caller runs
// against.
func (c *Controller) begin() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed:
		return 0, ErrSessionClosed
	case StateRunning:
		return 0, ErrSessionBusy
	}
	c.state = StateRunning
	c.lastActive = time.Now()
	return c.generation, nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		c.state = StateIdle
	}
	c.lastActive = time.Now()
}

// Step executes the item at the cursor and advances the cursor by one, also
// when the item fails. Past the end of the queue Step does nothing.
func (c *Controller) Step(ctx context.Context) (StepResult, error) {
	gen, err := c.begin()
	if err != nil {
		return StepResult{}, err
	}
	defer c.finish()

	if err := c.Init(ctx); err != nil {
		return StepResult{}, err
	}

	ctx, span := c.tracer.Start(ctx, "session.step")
	defer span.End()

	c.mu.Lock()
	if gen != c.generation || c.cursor >= len(c.queue) {
		idx := c.cursor
		c.mu.Unlock()
		return StepResult{Index: idx, Done: true}, nil
	}
	idx, item, in := c.cursor, c.queue[c.cursor], c.in
	c.mu.Unlock()

	res := c.execute(ctx, gen, in, idx, item)
	span.SetAttributes(attribute.Int("session.cursor", idx), attribute.String("node.id", item.NodeID))
	if res.Error != "" {
		span.SetStatus(codes.Error, res.Error)
	}
	return res, nil
}

// RunAll executes the remaining items in order. A failing item is recorded
// and the run continues. The run stops early when the queue is replaced, the
// session is reset or closed, or ctx is done.
func (c *Controller) RunAll(ctx context.Context, opts ...RunOption) (RunResult, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	gen, err := c.begin()
	if err != nil {
		return RunResult{}, err
	}
	defer c.finish()

	if ro.onStart != nil {
		if err := ro.onStart(ctx); err != nil {
			return RunResult{}, err
		}
	}

	if err := c.Init(ctx); err != nil {
		return RunResult{}, err
	}

	ctx, span := c.tracer.Start(ctx, "session.run_all")
	defer span.End()
	start := time.Now()

	var res RunResult
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			res.Interrupted, runErr = true, err
			break
		}
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			res.Interrupted = true
			break
		}
		if c.cursor >= len(c.queue) {
			c.mu.Unlock()
			break
		}
		idx, item, in := c.cursor, c.queue[c.cursor], c.in
		c.mu.Unlock()

		step := c.execute(ctx, gen, in, idx, item)
		res.Executed++
		res.Stdout += header(item) + step.Output.Stdout
		if step.Error != "" {
			res.Failures++
			res.Stderr += stderrText(step)
		}
	}

	status := "succeeded"
	switch {
	case runErr != nil:
		status = "canceled"
	case res.Interrupted:
		status = "interrupted"
	case res.Failures > 0:
		status = "failed"
	}
	if c.recorder != nil {
		c.recorder.RecordSessionRun(status, res.Executed, time.Since(start))
	}
	span.SetAttributes(attribute.Int("session.executed", res.Executed), attribute.Int("session.failures", res.Failures))
	if status != "succeeded" {
		span.SetStatus(codes.Error, status)
	}
	c.logger.Info("run finished",
		zap.String("status", status),
		zap.Int("executed", res.Executed),
		zap.Int("failures", res.Failures),
		zap.Duration("duration", time.Since(start)))
	return res, runErr
}

// execute runs one item, fires OnStepChange once and, unless the generation
// moved on meanwhile, appends the logs and advances the cursor.
func (c *Controller) execute(ctx context.Context, gen uint64, in interp.Interpreter, idx int, item trace.Item) StepResult {
	c.mu.Lock()
	c.active = item.NodeID
	listeners := c.listenersLocked()
	c.mu.Unlock()
	for _, l := range listeners {
		l.OnStepChange(idx, item)
	}

	start := time.Now()
	out, err := in.Execute(ctx, item.Text)
	res := StepResult{Index: idx, Item: item, Output: out}
	outcome := "ok"
	if err != nil {
		res.Error = err.Error()
		outcome = "error"
	}
	if c.recorder != nil {
		c.recorder.RecordSessionStep(outcome, time.Since(start))
	}
	c.logger.Debug("step executed",
		zap.Int("cursor", idx),
		zap.String("node_id", item.NodeID),
		zap.String("outcome", outcome))

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return res
	}
	c.stdout.WriteString(header(item))
	c.stdout.WriteString(out.Stdout)
	if res.Error != "" {
		c.stderr.WriteString(stderrText(res))
	}
	c.cursor = idx + 1
	return res
}

func header(item trace.Item) string {
	return "[" + item.Label + "] >>>\n"
}

func stderrText(res StepResult) string {
	if res.Output.Stderr != "" {
		return graph.Line(res.Output.Stderr)
	}
	return graph.Line(res.Error)
}

// Reset clears the logs and moves the cursor back to the start. Interpreter
// state is kept. An in-flight run stops before its next item.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	listeners := c.resetLocked()
	c.mu.Unlock()
	notifyReset(listeners)
	return nil
}

func (c *Controller) resetLocked() []Listener {
	c.generation++
	c.cursor = 0
	c.stdout.Reset()
	c.stderr.Reset()
	c.active = ""
	c.lastActive = time.Now()
	return c.listenersLocked()
}

func notifyReset(listeners []Listener) {
	for _, l := range listeners {
		l.OnReset()
	}
}

// Restart replaces the interpreter with a fresh one and resets.
func (c *Controller) Restart(ctx context.Context) error {
	if _, err := c.begin(); err != nil {
		return err
	}
	c.mu.Lock()
	old := c.in
	c.in = nil
	c.mu.Unlock()
	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.Warn("failed to close interpreter", zap.Error(err))
		}
	}
	err := c.Init(ctx)
	c.finish()
	if err != nil {
		return err
	}
	return c.Reset()
}

// SetQueue installs a queue. When its content hash differs from the current
// queue's the session resets; an identical queue keeps cursor and logs.
// SetQueue is accepted while a run is in flight: the run stops before its
// next item and never executes items of the new queue.
func (c *Controller) SetQueue(q trace.Queue) (bool, error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false, ErrSessionClosed
	}
	changed, listeners := c.setQueueLocked(q)
	c.mu.Unlock()
	if changed {
		notifyReset(listeners)
	}
	return changed, nil
}

func (c *Controller) setQueueLocked(q trace.Queue) (bool, []Listener) {
	h := q.Hash()
	c.queue = q
	if c.hashSet && h == c.hash {
		return false, nil
	}
	c.hash, c.hashSet = h, true
	c.logger.Debug("queue replaced", zap.Int("items", len(q)), zap.String("hash", h))
	return true, c.resetLocked()
}

// Rebuild plans the graph, builds its trace and installs it with SetQueue
// semantics. With a replaying builder the trace is built against a scratch
// interpreter and the session interpreter is not touched; otherwise counts
// and conditions are evaluated against the session interpreter.
func (c *Controller) Rebuild(ctx context.Context, nodes []graph.Node, edges []graph.Edge) (bool, error) {
	if _, err := c.begin(); err != nil {
		return false, err
	}

	q, err := c.buildTrace(ctx, plan.Build(nodes, edges))
	if err != nil {
		c.finish()
		return false, err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false, ErrSessionClosed
	}
	c.state = StateIdle
	changed, listeners := c.setQueueLocked(q)
	c.mu.Unlock()
	if changed {
		notifyReset(listeners)
	}
	return changed, nil
}

func (c *Controller) buildTrace(ctx context.Context, nodes []plan.Node) (trace.Queue, error) {
	if !c.builder.Replay() {
		if err := c.Init(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		in := c.in
		c.mu.Unlock()
		if in == nil {
			return nil, ErrSessionClosed
		}
		return c.builder.Build(ctx, nodes, evalOnly{in})
	}

	scratch, err := c.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start scratch interpreter: %w", err)
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			c.logger.Debug("failed to close scratch interpreter", zap.Error(err))
		}
	}()
	return c.builder.Build(ctx, nodes, scratch)
}

// evalOnly hides Execute so a builder never runs statements on the session
// interpreter.
type evalOnly struct{ in interp.Interpreter }

func (e evalOnly) Evaluate(ctx context.Context, expr string) (any, error) {
	return e.in.Evaluate(ctx, expr)
}

// Snapshot returns the current state. The queue is included when
// withQueue is set.
func (c *Controller) Snapshot(withQueue bool) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Cursor:       c.cursor,
		Total:        len(c.queue),
		State:        c.state,
		Initialized:  c.in != nil,
		Stdout:       c.stdout.String(),
		Stderr:       c.stderr.String(),
		ActiveNodeID: c.active,
		QueueHash:    c.hash,
		Generation:   c.generation,
	}
	if withQueue {
		s.Queue = append(trace.Queue(nil), c.queue...)
	}
	return s
}

// Queue returns a copy of the current queue.
func (c *Controller) Queue() trace.Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(trace.Queue(nil), c.queue...)
}

// LastActive reports when the session was last used.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Close tears down the interpreter. An in-flight run stops before its next
// item. Close is idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.generation++
	in := c.in
	c.in = nil
	c.listeners = make(map[int]Listener)
	c.mu.Unlock()

	if in != nil {
		return in.Close()
	}
	return nil
}
