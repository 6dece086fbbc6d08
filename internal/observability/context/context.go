package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}

type correlationIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok && v != "" {
		return ctx, v
	}
	cid := ulid.Make().String()
	return context.WithValue(ctx, correlationIDKey{}, cid), cid
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Storefront surfaces a request can land on.
const (
	SurfaceAPI      = "api"
	SurfaceAdmin    = "admin"
	SurfaceWebhooks = "webhooks"
	SurfaceOps      = "ops"
	SurfaceUnknown  = "unknown"
)

// Surface maps a matched gin route to the storefront area serving it.
func Surface(route string) string {
	route = strings.TrimSpace(route)
	switch {
	case route == "/health" || route == "/metrics":
		return SurfaceOps
	case strings.HasPrefix(route, "/api/"):
		return SurfaceAPI
	case strings.HasPrefix(route, "/admin/"):
		return SurfaceAdmin
	case strings.HasPrefix(route, "/webhooks/"):
		return SurfaceWebhooks
	}
	return SurfaceUnknown
}

// OrderFromRoute names the order a route addresses. Guest routes carry the public order
// number, admin routes the internal id. key is empty for routes outside /orders/:id.
func OrderFromRoute(route string, param func(string) string) (key, value string) {
	if param == nil {
		return "", ""
	}
	switch {
	case strings.HasPrefix(route, "/api/orders/:id"):
		key = "order_number"
	case strings.HasPrefix(route, "/admin/orders/:id"):
		key = "order_id"
	default:
		return "", ""
	}
	value = strings.TrimSpace(param("id"))
	if value == "" {
		return "", ""
	}
	return key, value
}
