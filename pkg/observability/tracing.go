package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across the IAM core.
var (
	AttrInstanceID    = attribute.Key("iam.instance.id")
	AttrAggregateID   = attribute.Key("iam.aggregate.id")
	AttrAggregateType = attribute.Key("iam.aggregate.type")
	AttrCommandName   = attribute.Key("iam.command.name")
	AttrEventCount    = attribute.Key("iam.event.count")
	AttrProjection    = attribute.Key("iam.projection.name")
)

// StartSpan opens a span on the tracer with the given attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan closes the span, recording err when set.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the current trace id, empty outside a sampled trace.
func TraceID(ctx context.Context) string {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
