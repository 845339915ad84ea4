package queue

import "context"

type traceKey struct{}

// WithTraceID carries a caller supplied trace id to the events published
// while handling a request.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceIDFromContext returns the trace id set by WithTraceID.
func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceKey{}).(string)
	return traceID
}
