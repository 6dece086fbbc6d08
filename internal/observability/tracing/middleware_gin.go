package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrSurface   = "storefront.surface"
	attrRequestID = "request_id"
)

// GinMiddleware opens a server span per request. The span is renamed to the matched route once
// the handlers ran, and order routes record the order they addressed.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("storefront/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, spanName(c.Request.Method, ""), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String(attrRequestID, requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		span.SetName(spanName(c.Request.Method, route))
		span.SetAttributes(SafeAttributes(routeAttributes(c, route, status, time.Since(start))...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func spanName(method, route string) string {
	name := "HTTP " + strings.ToUpper(method)
	if route == "" {
		return name
	}
	return name + " " + route
}

func routeAttributes(c *gin.Context, route string, status int, elapsed time.Duration) []attribute.KeyValue {
	if route == "" {
		route = "unknown"
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrSurface, obscontext.Surface(route)),
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
		attribute.Int64("http.server_duration_ms", elapsed.Milliseconds()),
	}
	if key, value := obscontext.OrderFromRoute(route, c.Param); key != "" {
		attrs = append(attrs, attribute.String("storefront."+key, value))
	}
	return attrs
}

// withRequestBaggage carries the request id to downstream processor calls.
func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember(attrRequestID, requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
