package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"holistica/internal/domain"
	gw "holistica/internal/gateway"
	"holistica/internal/platform/telemetry"
)

// RateLimit returns middleware that enforces per-IP rate limits.
// layer labels the decision in metrics (e.g. "ip", "login").
// The metrics parameter is optional; pass nil to skip metric recording.
func RateLimit(limiter gw.RateLimiter, layer string, m *telemetry.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if result := limiter.Allow(ip); !result.Allowed {
				if m != nil {
					m.RecordRateLimitDecision(r.Context(), layer, "denied")
				}
				slog.Debug("rate limit exceeded", "layer", layer, "client_ip", ip, "retry_after", result.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				writeErrorResponse(w, http.StatusTooManyRequests, domain.ErrorResponse{
					Error:      "Demasiadas solicitudes",
					RetryAfter: result.RetryAfter,
				})
				return
			}

			if m != nil {
				m.RecordRateLimitDecision(r.Context(), layer, "allowed")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// Use RemoteAddr directly. X-Forwarded-For is client-controlled and
	// must not be trusted without a validated trusted proxy list.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
