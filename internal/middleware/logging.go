package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/cyphera/grantpay/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"X-Api-Key":     true,
	"Cookie":        true,
}

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// RequestLoggingMiddleware writes one line per completed request, leveled by response status.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if ce := logger.FromContext(c.Request.Context()).Check(levelForStatus(status), "Request completed"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("route", c.FullPath()),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("client_ip", c.ClientIP()),
				zap.Int("body_size", c.Writer.Size()),
			)
		}
	}
}

// EnhancedLoggingMiddleware adds a debug line with redacted headers and the body size, plus one
// line per gin error. Query strings stay out of the log since interaction callbacks carry
// interact_ref and hash there.
func EnhancedLoggingMiddleware(isDevelopment bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isDevelopment {
			c.Next()
			return
		}

		log := logger.FromContext(c.Request.Context())

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		headers := make(map[string]string, len(c.Request.Header))
		for key, values := range c.Request.Header {
			switch {
			case redactedHeaders[key]:
				headers[key] = "[REDACTED]"
			case len(values) > 0:
				headers[key] = values[0]
			}
		}

		log.Debug("Detailed request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("headers", headers),
			zap.Int("body_size", len(body)),
		)

		c.Next()

		for _, ginErr := range c.Errors {
			log.Error("Request error", zap.Error(ginErr.Err), zap.Uint64("type", uint64(ginErr.Type)))
		}
	}
}
