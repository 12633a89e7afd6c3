package authcore

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/authcore"

func defaultTracer() trace.Tracer { return otel.Tracer(tracerName) }

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "authcore."+op)
}

// endSpan records err on span and ends it. Expected outcomes such as bad
// credentials are errors too; the span status only says the call failed.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
