package auth

import "context"

type callerContextKey struct{}

// ContextWithCaller attaches the authenticated caller to the context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the authenticated caller from the context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	v, ok := ctx.Value(callerContextKey{}).(Caller)
	if !ok || v.ID == "" {
		return Caller{}, false
	}
	return v, true
}

// CallerID returns the caller id or "" for anonymous contexts.
func CallerID(ctx context.Context) string {
	c, _ := CallerFromContext(ctx)
	return c.ID
}
