package http

import (
	"net/http"
	"time"

	"github.com/cyphera/grantpay/internal/logger"
	"go.uber.org/zap"
)

// CorrelationHeader carries the inbound request's correlation id to downstream servers.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationMiddleware copies the correlation id on the request context into CorrelationHeader.
// Requests that already set the header keep it.
func CorrelationMiddleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			id := logger.CorrelationID(req.Context())
			if id == "" || req.Header.Get(CorrelationHeader) != "" {
				return next.RoundTrip(req)
			}
			req = req.Clone(req.Context())
			req.Header.Set(CorrelationHeader, id)
			return next.RoundTrip(req)
		})
	}
}

// LoggingMiddleware logs each round trip at debug level. Headers are never logged since they
// carry GNAP tokens.
func LoggingMiddleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			log := logger.FromContext(req.Context()).With(
				zap.String("method", req.Method),
				zap.String("host", req.URL.Host),
				zap.String("path", req.URL.Path))
			start := time.Now()

			resp, err := next.RoundTrip(req)
			if err != nil {
				log.Debug("round trip failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
				return resp, err
			}
			log.Debug("round trip done", zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))
			return resp, nil
		})
	}
}
