package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for lectern's request spans.
const tracerName = "github.com/lecternhq/lectern"

// CorrelationID returns the trace id of the active span, which doubles as
// the request correlation id surfaced in the X-Correlation-ID header. Empty
// when ctx carries no trace.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default logger enriched with the trace_id and span_id
// of the active span, so handler logs can be joined with their request.
// Without a span it is just the default logger.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
