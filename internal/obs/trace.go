package obs

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TraceFields returns trace_id and span_id for the span carried by ctx, or
// nil when ctx has no recording span context.
func TraceFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.Stringer("trace_id", sc.TraceID()),
		zap.Stringer("span_id", sc.SpanID()),
	}
}

// WithTrace scopes log to the span in ctx. Without one, log is returned as is.
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	fs := TraceFields(ctx)
	if log == nil || len(fs) == 0 {
		return log
	}
	return log.With(fs...)
}
