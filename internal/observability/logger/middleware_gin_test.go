package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name      string
		surface   string
		status    int
		errorType string
		want      zapcore.Level
	}{
		{"metrics scrape", obscontext.SurfaceOps, http.StatusOK, "", zapcore.DebugLevel},
		{"guest order", obscontext.SurfaceAPI, http.StatusCreated, "", zapcore.InfoLevel},
		{"guest validation", obscontext.SurfaceAPI, http.StatusBadRequest, "validation_error", zapcore.InfoLevel},
		{"throttled checkout", obscontext.SurfaceAPI, http.StatusTooManyRequests, "rate_limited", zapcore.WarnLevel},
		{"bad signature", obscontext.SurfaceWebhooks, http.StatusBadRequest, "validation_error", zapcore.WarnLevel},
		{"admin without key", obscontext.SurfaceAdmin, http.StatusUnauthorized, "unauthorized", zapcore.WarnLevel},
		{"database down", obscontext.SurfaceAdmin, http.StatusInternalServerError, "internal_error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFor(tt.surface, tt.status, tt.errorType))
		})
	}
}

func TestGinMiddlewareTagsOrderRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "not_found", "order_not_found" },
	}))
	r.GET("/api/orders/:id", func(c *gin.Context) {
		_ = c.AbortWithError(http.StatusNotFound, errors.New("order not found"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/LTS-2026-000042", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, obscontext.SurfaceAPI, fields["surface"])
	assert.Equal(t, "LTS-2026-000042", fields["order_number"])
	assert.Equal(t, "order_not_found", fields["error_code"])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}
