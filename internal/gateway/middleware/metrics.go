package middleware

import (
	"net/http"
	"time"

	gw "holistica/internal/gateway"
	"holistica/internal/platform/telemetry"
)

// UnmatchedRoute labels requests that no registered route serves.
const UnmatchedRoute = "unmatched"

// RouteMatcher resolves the registered route pattern that would serve r,
// or "" when there is none.
type RouteMatcher interface {
	Route(r *http.Request) string
}

// Metrics returns middleware that records HTTP request metrics.
// Place as the outermost middleware to capture the full request lifecycle.
// The path label is the route pattern from routes, so arbitrary request
// paths cannot create new series. Both parameters are optional.
func Metrics(m *telemetry.Metrics, routes RouteMatcher) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &gw.StatusWriter{ResponseWriter: w, Code: http.StatusOK}

			next.ServeHTTP(sw, r)

			if m != nil {
				m.RecordHTTPRequest(r.Context(), r.Method, routeLabel(routes, r), sw.Code, time.Since(start).Seconds())
			}
		})
	}
}

func routeLabel(routes RouteMatcher, r *http.Request) string {
	if routes == nil {
		return UnmatchedRoute
	}
	if p := routes.Route(r); p != "" {
		return p
	}
	return UnmatchedRoute
}
