package middleware

import (
	"log/slog"
	"net/http"
	"time"

	gw "holistica/internal/gateway"
)

// Logging returns a middleware that logs each request using slog.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &gw.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
			ctx, slot := gw.ContextWithIdentitySlot(r.Context())

			next.ServeHTTP(sw, r.WithContext(ctx))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Code,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"request_id", gw.RequestIDFromContext(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if claims, ok := slot.Claims(); ok {
				attrs = append(attrs, "subject_id", claims.SubjectID, "role", claims.Role.String())
			}
			logger.Info("request", attrs...)
		})
	}
}
