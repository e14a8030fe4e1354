package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/drblury/queueflow"

// StartPublishSpan opens a producer span around a publish.
func StartPublishSpan(ctx context.Context, queue string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "queue.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("messaging.destination.name", queue)),
	)
}

func startHandleSpan(ctx context.Context, queue, messageID, correlationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "queue.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", queue),
			attribute.String("messaging.message.id", messageID),
			attribute.String("messaging.message.conversation_id", correlationID),
		),
	)
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
