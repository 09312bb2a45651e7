package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyCallerKey contextKey = "caller_key"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithCallerKey stores the rate-limit identity of the caller.
func WithCallerKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ContextKeyCallerKey, key)
}

// CallerKeyFromContext returns the caller identity, or "anonymous".
func CallerKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(ContextKeyCallerKey).(string); ok && key != "" {
		return key
	}
	return "anonymous"
}
