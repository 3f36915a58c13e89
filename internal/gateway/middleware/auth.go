package middleware

import (
	"log/slog"
	"net/http"

	"holistica/internal/domain"
	gw "holistica/internal/gateway"
	"holistica/internal/platform/telemetry"
)

// Auth returns a middleware that runs the gate on every request.
// Paths in publicPaths are exempt from authentication.
// The metrics parameter is optional; pass nil to skip metric recording.
func Auth(gate *gw.Gate, publicPaths []string, m *telemetry.Metrics) Middleware {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := public[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			ex := &httpExchange{w: w, r: r}
			out := gate.Authenticate(ex)
			if m != nil {
				m.RecordAuthDecision(r.Context(), "authenticate", resultLabel(out))
			}
			if !out.Authorized() {
				slog.Debug("request rejected by gate",
					"reason", out.Reason.String(),
					"path", r.URL.Path,
					"request_id", gw.RequestIDFromContext(r.Context()),
				)
				return
			}
			next.ServeHTTP(w, ex.r)
		})
	}
}

// RequireRole returns a middleware that only lets through requests whose
// claims carry one of roles. It must run after Auth.
func RequireRole(m *telemetry.Metrics, roles ...domain.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := gw.ClaimsFromContext(r.Context())
			if !ok {
				reason := gw.ReasonMissingCredential
				writeError(w, reason.Status(), reason.Message())
				return
			}

			out := gw.Authorize(claims, roles...)
			if m != nil {
				m.RecordAuthDecision(r.Context(), "authorize", resultLabel(out))
			}
			if !out.Authorized() {
				slog.Debug("request rejected by role check",
					"subject_id", claims.SubjectID,
					"role", claims.Role.String(),
					"path", r.URL.Path,
				)
				writeError(w, out.Reason.Status(), out.Reason.Message())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// httpExchange adapts a net/http request/response pair to gateway.Exchange.
// SetClaims replaces r with a copy whose context carries the claims.
type httpExchange struct {
	w http.ResponseWriter
	r *http.Request
}

func (e *httpExchange) Header(name string) string {
	return e.r.Header.Get(name)
}

func (e *httpExchange) SetClaims(c domain.Claims) {
	e.r = e.r.WithContext(gw.ContextWithClaims(e.r.Context(), c))
}

func (e *httpExchange) Reject(status int, message string) {
	writeError(e.w, status, message)
}

func resultLabel(out gw.Outcome) string {
	if out.Authorized() {
		return "success"
	}
	return out.Reason.String()
}
