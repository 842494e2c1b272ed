package observer

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnykmshr/taskflow/pkg/task"
)

// tracerName is the instrumentation scope name for taskflow tracing.
const tracerName = "github.com/vnykmshr/taskflow"

// spanName is the name of the span covering one task from first start to
// terminal state.
const spanName = "taskflow.task"

// Tracing returns an observer that records one OpenTelemetry span per task
// using the global TracerProvider. Without a configured provider the noop
// tracer is used and the observer costs next to nothing.
func Tracing() Observer {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns a tracing observer using the provided tracer.
//
// The span starts at the first attempt and ends at the terminal event.
// Each attempt and each retry is added as a span event; a failed task sets
// the span status to codes.Error.
func TracingWithTracer(tracer trace.Tracer) Observer {
	return &tracingObserver{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

type tracingObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

func (o *tracingObserver) span(ctx context.Context, s task.Snapshot) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()

	if sp, ok := o.spans[s.ID]; ok {
		return sp
	}

	attrs := []attribute.KeyValue{
		attribute.String("taskflow.task.id", s.ID),
		attribute.Int("taskflow.task.priority", s.Priority),
		attribute.String("taskflow.task.class", s.Class.String()),
		attribute.Int("taskflow.task.max_attempts", s.MaxAttempts),
	}
	for k, v := range s.Labels {
		attrs = append(attrs, attribute.String("taskflow.label."+k, v))
	}

	opts := []trace.SpanStartOption{
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	}
	if !s.StartedAt.IsZero() {
		opts = append(opts, trace.WithTimestamp(s.StartedAt))
	}

	_, sp := o.tracer.Start(ctx, spanName, opts...)
	o.spans[s.ID] = sp
	return sp
}

func (o *tracingObserver) finish(ctx context.Context, s task.Snapshot, fn func(trace.Span)) {
	sp := o.span(ctx, s)

	o.mu.Lock()
	delete(o.spans, s.ID)
	o.mu.Unlock()

	sp.SetAttributes(
		attribute.Int("taskflow.task.attempts", s.Attempts),
		attribute.String("taskflow.task.state", s.State.String()),
	)
	fn(sp)

	if !s.CompletedAt.IsZero() {
		sp.End(trace.WithTimestamp(s.CompletedAt))
		return
	}
	sp.End()
}

func (o *tracingObserver) OnStarted(ctx context.Context, s task.Snapshot) error {
	o.span(ctx, s).AddEvent("attempt.started", trace.WithAttributes(
		attribute.Int("taskflow.attempt", s.Attempts),
	))
	return nil
}

func (o *tracingObserver) OnRetried(ctx context.Context, s task.Snapshot) error {
	o.span(ctx, s).AddEvent("attempt.retried", trace.WithAttributes(
		attribute.Int("taskflow.attempt", s.Attempts),
		attribute.String("taskflow.error", s.Error),
		attribute.String("taskflow.error_kind", s.ErrKind.String()),
	))
	return nil
}

func (o *tracingObserver) OnCompleted(ctx context.Context, s task.Snapshot) error {
	o.finish(ctx, s, func(sp trace.Span) {
		sp.SetStatus(codes.Ok, "")
	})
	return nil
}

func (o *tracingObserver) OnFailed(ctx context.Context, s task.Snapshot) error {
	o.finish(ctx, s, func(sp trace.Span) {
		err := s.Err
		if err == nil {
			err = errors.New(s.Error)
		}
		sp.RecordError(err, trace.WithAttributes(attribute.String("taskflow.error_kind", s.ErrKind.String())))
		sp.SetStatus(codes.Error, s.Error)
	})
	return nil
}

func (o *tracingObserver) OnCancelled(ctx context.Context, s task.Snapshot) error {
	o.finish(ctx, s, func(sp trace.Span) {
		sp.AddEvent("task.cancelled")
		sp.SetStatus(codes.Unset, "")
	})
	return nil
}
