package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// GlobalRateLimiter caps the aggregate request rate across all clients with a
// single token bucket. There is no per-client fairness: the ingress is an
// internal service boundary and the cap exists to protect the broker and the
// database, not to meter tenants.
type GlobalRateLimiter struct {
	limiter *rate.Limiter
}

// NewGlobalRateLimiter creates a limiter allowing rps sustained requests per
// second with the given burst capacity. A non-positive burst defaults to rps.
func NewGlobalRateLimiter(rps, burst int) *GlobalRateLimiter {
	if burst <= 0 {
		burst = rps
	}

	return &GlobalRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Allow reports whether one more request fits under the cap.
func (l *GlobalRateLimiter) Allow() bool {
	return l.limiter.Allow()
}

// RateLimit creates a middleware that rejects requests over the global cap
// with a 429 problem response.
func RateLimit(limiter *GlobalRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Allow() {
				next.ServeHTTP(w, r)

				return
			}

			correlationID := GetCorrelationID(r.Context())

			logger.Warn("Request rate limited",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("correlation_id", correlationID),
			)

			problemDetail := struct {
				Type          string `json:"type"`
				Title         string `json:"title"`
				Status        int    `json:"status"`
				Detail        string `json:"detail"`
				Instance      string `json:"instance"`
				CorrelationID string `json:"correlationId"`
			}{
				Type:          fmt.Sprintf("https://aggregator.io/problems/%d", http.StatusTooManyRequests),
				Title:         "Too Many Requests",
				Status:        http.StatusTooManyRequests,
				Detail:        "Request rate limit exceeded, retry later",
				Instance:      r.URL.Path,
				CorrelationID: correlationID,
			}

			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusTooManyRequests)

			if err := json.NewEncoder(w).Encode(problemDetail); err != nil {
				logger.Error("Failed to encode rate limit response",
					slog.Any("error", err),
					slog.String("correlation_id", correlationID),
				)
			}
		})
	}
}
