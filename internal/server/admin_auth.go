package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/observability/logger"
)

// AdminRequired authenticates admin requests with a static bearer key.
func (s *Server) AdminRequired() gin.HandlerFunc {
	expected := strings.TrimSpace(s.cfg.AdminAPIKey)
	if expected == "" {
		if s.cfg.IsProduction() {
			s.log.Warn("ADMIN_API_KEY not set; admin routes are closed")
		} else {
			s.log.Warn("ADMIN_API_KEY not set; admin routes are open")
		}
	}

	return func(c *gin.Context) {
		if expected == "" {
			if s.cfg.IsProduction() {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
			logger.FromContext(c.Request.Context()).Warn("admin key rejected")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Next()
	}
}
