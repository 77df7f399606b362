package authcore

import "context"

type correlationIDContextKey struct{}
type orgIDContextKey struct{}

// WithCorrelationID attaches a request correlation identifier to ctx. Audit
// events carry it so an operation can be traced across services without
// logging token contents or credentials.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey{}, id)
}

func correlationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDContextKey{}).(string)
	return id
}

// WithOrgID attaches the caller's organization identifier to ctx. It is an
// opaque label carried into sessions and audit events; the engine never
// interprets it.
func WithOrgID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, orgIDContextKey{}, id)
}

func orgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(orgIDContextKey{}).(string)
	return id
}
