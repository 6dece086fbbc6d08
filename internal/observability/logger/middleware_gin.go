package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging. ErrorClassifier maps a handler error to the
// error_type/error_code pair the API responds with.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware writes one http_request line per request, tagged with the storefront surface
// and, on order routes, the order it addressed.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := obscontext.WithRequestID(c.Request.Context(), requestIDFor(c))
		ctx, _ = obscontext.EnsureCorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		surface := obscontext.Surface(route)
		fields := requestFields(c, route, surface, time.Since(start))

		errorType := ""
		if lastErr := c.Errors.Last(); lastErr != nil {
			errorCode := ""
			if cfg.ErrorClassifier != nil {
				errorType, errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", errorCode))
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		level := levelFor(surface, c.Writer.Status(), errorType)
		if entry := FromContext(c.Request.Context()).Check(level, "http_request"); entry != nil {
			entry.Write(fields...)
		}
	}
}

// requestIDFor reuses the caller's request id or mints one, and echoes it back.
func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		requestID = strings.TrimSpace(c.GetString("request_id"))
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(requestIDHeader, requestID)
	return requestID
}

func requestFields(c *gin.Context, route, surface string, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("surface", surface),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("route", route),
		zap.Int("status", c.Writer.Status()),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
		zap.Int("bytes_out", max(c.Writer.Size(), 0)),
	}
	if key, value := obscontext.OrderFromRoute(route, c.Param); key != "" {
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// levelFor keeps health and metrics scrapes quiet and raises the client errors an operator acts on.
func levelFor(surface string, status int, errorType string) zapcore.Level {
	switch {
	case surface == obscontext.SurfaceOps:
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case surface == obscontext.SurfaceWebhooks && status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	case errorType == "conflict", errorType == "unauthorized":
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}
