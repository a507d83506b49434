package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/beacon/pkg/location"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// UserIDKey is the context key for the authenticated caller
	UserIDKey ContextKey = "user_id"
	// RouteKey is the context key for the matched route pattern
	RouteKey ContextKey = "route"
)

// TraceContext holds tracing information
type TraceContext struct {
	RequestID string
	UserID    location.Identity
	Route     string
}

// NewRequestID generates a new request ID
func NewRequestID() string {
	return uuid.New().String()
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds the caller identity to the context
func WithUserID(ctx context.Context, id location.Identity) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// WithRoute adds the route pattern to the context
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves the caller identity from the context
func GetUserID(ctx context.Context) location.Identity {
	if id, ok := ctx.Value(UserIDKey).(location.Identity); ok {
		return id
	}
	return ""
}

// GetRoute retrieves the route pattern from the context
func GetRoute(ctx context.Context) string {
	if route, ok := ctx.Value(RouteKey).(string); ok {
		return route
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		RequestID: GetRequestID(ctx),
		UserID:    GetUserID(ctx),
		Route:     GetRoute(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new request ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithRequestID(ctx, NewRequestID())
}

// LoggerFromContext adds the request fields found in ctx to baseLogger
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	logger := baseLogger
	if tc.RequestID != "" {
		logger = logger.With().Str("request_id", tc.RequestID).Logger()
	}
	if tc.UserID != "" {
		logger = logger.With().Str("user_id", tc.UserID.String()).Logger()
	}
	if tc.Route != "" {
		logger = logger.With().Str("route", tc.Route).Logger()
	}
	return logger
}
