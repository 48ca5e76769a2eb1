package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/replydesk"

// Tracer provides OpenTelemetry tracing for the pipeline.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDispatchSpan starts a span for one webhook request.
func (t *Tracer) StartDispatchSpan(ctx context.Context, tenantID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "replydesk.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("replydesk.tenant_id", tenantID)),
	)
}

// StartEventSpan starts a span for processing one event.
func (t *Tracer) StartEventSpan(ctx context.Context, eventID, tenantID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "replydesk.process",
		trace.WithAttributes(
			attribute.String("replydesk.event_id", eventID),
			attribute.String("replydesk.tenant_id", tenantID),
		),
	)
}

// EndEventSpan ends an event span with its outcome.
func (t *Tracer) EndEventSpan(span trace.Span, outcome, action string, err error) {
	span.SetAttributes(attribute.String("replydesk.outcome", outcome))
	if action != "" {
		span.SetAttributes(attribute.String("replydesk.action", action))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
