package obs

import "context"

type requestIDContextKey struct{}

// ContextWithRequestID attaches the request id so downstream layers can
// correlate log lines and audit records with the HTTP request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the request id, if one was attached.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
