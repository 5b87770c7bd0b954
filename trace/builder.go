package trace

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/interp"
	"github.com/BaSui01/blockflow/plan"
)

// DefaultMaxItems bounds a trace unless WithMaxItems says otherwise.
const DefaultMaxItems = 100_000

// ErrTraceTooLarge is returned when a trace would exceed its item cap.
var ErrTraceTooLarge = errors.New("trace too large")

// Evaluator evaluates loop counts and branch conditions.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string) (any, error)
}

// Executor is implemented by evaluators that can also run statements. With
// replay enabled the builder uses it to apply pending items before each
// evaluation.
type Executor interface {
	Execute(ctx context.Context, code string) (interp.Output, error)
}

// Recorder receives one observation per Build call.
type Recorder interface {
	RecordTraceBuild(status string, items int, duration time.Duration)
}

// Builder expands plans into queues of atomic steps.
type Builder struct {
	maxItems atomic.Int64
	replay   bool
	logger   *zap.Logger
	tracer   oteltrace.Tracer
	recorder Recorder
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxItems sets the item cap. Values below one are ignored.
func WithMaxItems(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxItems.Store(int64(n))
		}
	}
}

// WithReplay makes the builder execute emitted items on the evaluator before
// each evaluation, so expressions observe the effects of earlier steps.
func WithReplay(enabled bool) Option {
	return func(b *Builder) { b.replay = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithTracer(t oteltrace.Tracer) Option {
	return func(b *Builder) {
		if t != nil {
			b.tracer = t
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// NewBuilder creates a trace builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/BaSui01/blockflow/trace"),
	}
	b.maxItems.Store(DefaultMaxItems)
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(zap.String("component", "trace_builder"))
	return b
}

// MaxItems reports the configured cap.
func (b *Builder) MaxItems() int { return int(b.maxItems.Load()) }

// Replay reports whether pending items are executed before each evaluation.
func (b *Builder) Replay() bool { return b.replay }

// SetMaxItems changes the cap for builds that start afterwards. Values below
// one are ignored.
func (b *Builder) SetMaxItems(n int) {
	if n > 0 {
		b.maxItems.Store(int64(n))
	}
}

// Build walks the plan depth first, unrolling loops by their evaluated count
// and following only the taken branch of each condition. A count that fails
// to evaluate, is not numeric, or is negative counts as zero; a condition
// that fails to evaluate counts as false.
func (b *Builder) Build(ctx context.Context, nodes []plan.Node, ev Evaluator) (Queue, error) {
	ctx, span := b.tracer.Start(ctx, "trace.build",
		oteltrace.WithAttributes(
			attribute.Int("plan.size", plan.Size(nodes)),
			attribute.Bool("trace.replay", b.replay),
		))
	defer span.End()
	start := time.Now()

	r := &run{b: b, ctx: ctx, ev: ev, limit: b.MaxItems()}
	if b.replay {
		r.exec, _ = ev.(Executor)
	}
	err := r.nodes(nodes)
	if err == nil {
		err = ctx.Err()
	}

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrTraceTooLarge):
		status = "too_large"
	case ctx.Err() != nil:
		status = "canceled"
	default:
		status = "error"
	}
	if b.recorder != nil {
		b.recorder.RecordTraceBuild(status, len(r.q), time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return nil, err
	}
	span.SetAttributes(attribute.Int("trace.items", len(r.q)))
	b.logger.Debug("trace built",
		zap.Int("items", len(r.q)),
		zap.Int("evaluations", r.evals),
		zap.Duration("duration", time.Since(start)))
	return r.q, nil
}

// BuildGraph plans the graph and builds its trace.
func (b *Builder) BuildGraph(ctx context.Context, nodes []graph.Node, edges []graph.Edge, ev Evaluator) (Queue, error) {
	return b.Build(ctx, plan.Build(nodes, edges), ev)
}

type run struct {
	b        *Builder
	ctx      context.Context
	ev       Evaluator
	exec     Executor
	limit    int
	q        Queue
	executed int
	evals    int
}

func (r *run) nodes(nodes []plan.Node) error {
	for _, n := range nodes {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if err := r.node(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) node(n plan.Node) error {
	switch v := n.(type) {
	case *plan.Plain:
		text := v.Text
		if strings.TrimSpace(text) == "" {
			text = "pass"
		}
		if err := r.emit(v, text); err != nil {
			return err
		}
		return r.nodes(v.Children)

	case *plan.Loop:
		count := 0
		val, err := r.evaluate(v.CountExpr)
		if err != nil {
			r.b.logger.Debug("loop count evaluation failed",
				zap.String("node_id", v.ID), zap.String("expr", v.CountExpr), zap.Error(err))
		} else if c, ok := interp.AsCount(val); ok && c > 0 {
			count = c
		}
		for k := 0; k < count; k++ {
			if err := r.emit(v, v.IndexVar+" = "+strconv.Itoa(k)); err != nil {
				return err
			}
			if strings.TrimSpace(v.PreBody) != "" {
				if err := r.emit(v, v.PreBody); err != nil {
					return err
				}
			}
			if err := r.nodes(v.Body); err != nil {
				return err
			}
		}
		return r.nodes(v.Next)

	case *plan.Condition:
		val, err := r.evaluate(v.Expr)
		taken := err == nil && interp.Truthy(val)
		if err != nil {
			r.b.logger.Debug("condition evaluation failed",
				zap.String("node_id", v.ID), zap.String("expr", v.Expr), zap.Error(err))
		}
		branch := v.False
		if taken {
			branch = v.True
		}
		if err := r.nodes(branch); err != nil {
			return err
		}
		return r.nodes(v.Next)
	}
	return nil
}

func (r *run) emit(n plan.Node, text string) error {
	if len(r.q) >= r.limit {
		return fmt.Errorf("%w: more than %d items", ErrTraceTooLarge, r.limit)
	}
	r.q = append(r.q, Item{NodeID: n.NodeID(), Label: n.NodeLabel(), Text: graph.Line(text)})
	return nil
}

func (r *run) evaluate(expr string) (any, error) {
	if r.exec != nil {
		for ; r.executed < len(r.q); r.executed++ {
			if _, err := r.exec.Execute(r.ctx, r.q[r.executed].Text); err != nil {
				if r.ctx.Err() != nil {
					return nil, r.ctx.Err()
				}
				r.b.logger.Debug("replay step failed",
					zap.String("node_id", r.q[r.executed].NodeID), zap.Error(err))
			}
		}
	}
	r.evals++
	return r.ev.Evaluate(r.ctx, expr)
}
