package middleware

import (
	"github.com/cyphera/grantpay/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	correlationIDKey    = "correlationID"
	maxCorrelationIDLen = 128
)

// CorrelationIDMiddleware tags the request with the caller's X-Correlation-ID, or a fresh uuid when
// the header is missing or unusable, and echoes it in the response.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if !usableCorrelationID(id) {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

// usableCorrelationID rejects ids that are empty, oversized or carry characters outside
// printable ASCII, since the id is echoed into headers and logs.
func usableCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetCorrelationID returns the id set by CorrelationIDMiddleware, or "".
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}
