package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/cyphera/grantpay/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header does not match key. An empty key
// disables the check.
func RequireAPIKey(key string) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		provided := []byte(c.GetHeader(APIKeyHeader))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			logger.FromContext(c.Request.Context()).Warn("Rejected request with invalid API key",
				zap.String("path", c.Request.URL.Path),
				zap.Bool("key_present", len(provided) > 0),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":          "invalid or missing API key",
				"code":           "authentication_error",
				"correlation_id": GetCorrelationID(c),
			})
			return
		}
		c.Next()
	}
}

// MaxBodySize caps request bodies at limit bytes.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
