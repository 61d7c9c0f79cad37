package workerpresentation

import (
	"context"

	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for an event handler execution.
// Fields: event, event_id (generated if absent), trace_id/span_id when the context
// carries a valid span, plus caller attributes. Keep attrs low-cardinality.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	eventName string,
	attrs map[string]string,
) (context.Context, observability.Logger) {
	base = logctx.FromOr(ctx, base)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := []observability.Field{
		observability.F("event", eventName),
		observability.F("event_id", evtID),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	logger := base.With(fields...)
	return logctx.With(ctx, logger), logger
}
