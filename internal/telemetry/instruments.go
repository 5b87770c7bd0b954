package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/BaSui01/blockflow"

// EngineRecorder receives trace build and session execution measurements.
type EngineRecorder interface {
	RecordTraceBuild(status string, items int, duration time.Duration)
	RecordSessionStep(outcome string, duration time.Duration)
	RecordSessionRun(status string, steps int, duration time.Duration)
}

// Instruments 将引擎指标记录到全局 OTel MeterProvider，再转发给 next。
// telemetry 未启用时 MeterProvider 为 noop，记录开销可忽略。
type Instruments struct {
	next EngineRecorder

	buildTotal    metric.Int64Counter
	traceItems    metric.Int64Histogram
	buildDuration metric.Float64Histogram
	stepTotal     metric.Int64Counter
	stepDuration  metric.Float64Histogram
	runTotal      metric.Int64Counter
	runSteps      metric.Int64Histogram
}

// NewInstruments 创建 OTel 仪表；next 可为 nil
func NewInstruments(next EngineRecorder) (*Instruments, error) {
	meter := otel.Meter(instrumentationName)
	in := &Instruments{next: next}

	var err error
	if in.buildTotal, err = meter.Int64Counter("blockflow.trace.build.total",
		metric.WithDescription("Total number of trace builds"),
		metric.WithUnit("{build}")); err != nil {
		return nil, err
	}
	if in.traceItems, err = meter.Int64Histogram("blockflow.trace.items",
		metric.WithDescription("Items per built trace"),
		metric.WithUnit("{item}")); err != nil {
		return nil, err
	}
	if in.buildDuration, err = meter.Float64Histogram("blockflow.trace.build.duration",
		metric.WithDescription("Trace build duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if in.stepTotal, err = meter.Int64Counter("blockflow.session.step.total",
		metric.WithDescription("Total number of executed session steps"),
		metric.WithUnit("{step}")); err != nil {
		return nil, err
	}
	if in.stepDuration, err = meter.Float64Histogram("blockflow.session.step.duration",
		metric.WithDescription("Session step duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if in.runTotal, err = meter.Int64Counter("blockflow.session.run.total",
		metric.WithDescription("Total number of run-all executions"),
		metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if in.runSteps, err = meter.Int64Histogram("blockflow.session.run.steps",
		metric.WithDescription("Steps executed per run"),
		metric.WithUnit("{step}")); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instruments) RecordTraceBuild(status string, items int, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("status", status))
	in.buildTotal.Add(ctx, 1, attrs)
	in.traceItems.Record(ctx, int64(items), attrs)
	in.buildDuration.Record(ctx, duration.Seconds(), attrs)
	if in.next != nil {
		in.next.RecordTraceBuild(status, items, duration)
	}
}

func (in *Instruments) RecordSessionStep(outcome string, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	in.stepTotal.Add(ctx, 1, attrs)
	in.stepDuration.Record(ctx, duration.Seconds(), attrs)
	if in.next != nil {
		in.next.RecordSessionStep(outcome, duration)
	}
}

func (in *Instruments) RecordSessionRun(status string, steps int, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("status", status))
	in.runTotal.Add(ctx, 1, attrs)
	in.runSteps.Record(ctx, int64(steps), attrs)
	if in.next != nil {
		in.next.RecordSessionRun(status, steps, duration)
	}
}
