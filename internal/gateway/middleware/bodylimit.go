package middleware

import "net/http"

// MaxBodySize limits request bodies to maxBytes. Handlers see an
// *http.MaxBytesError when they read past the limit.
func MaxBodySize(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
