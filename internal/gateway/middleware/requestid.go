package middleware

import (
	"net/http"

	"github.com/google/uuid"

	gw "holistica/internal/gateway"
)

// RequestID assigns a request ID to each request. A well-formed UUID in the
// incoming X-Request-ID header is kept; anything else is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(gw.ContextWithRequestID(r.Context(), id)))
	})
}
