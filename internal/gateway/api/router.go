// Package api exposes the account operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"holistica/internal/account"
	"holistica/internal/domain"
	gw "holistica/internal/gateway"
	"holistica/internal/gateway/middleware"
	"holistica/internal/platform/telemetry"
)

// PublicPaths are served without a bearer token.
var PublicPaths = []string{"/healthz", "/readyz", "/metrics", "/auth/register", "/auth/login"}

// AccountService is the subset of account.Service the router needs.
type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in account.LoginInput) (*domain.Session, error)
	Profile(ctx context.Context, subjectID int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ChangeRole(ctx context.Context, id int64, role domain.Role) (*domain.User, error)
}

// Options configures optional router collaborators.
type Options struct {
	// LoginLimiter throttles POST /auth/login per client IP. Nil disables it.
	LoginLimiter gw.RateLimiter
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	// Metrics is optional; nil skips metric recording.
	Metrics *telemetry.Metrics
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Router dispatches requests to the account handlers.
type Router struct {
	mux      *http.ServeMux
	accounts AccountService
	opts     Options
}

// NewRouter registers every route. Authentication happens upstream in
// middleware.Auth; the admin routes add a role check here.
func NewRouter(accounts AccountService, opts Options) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		accounts: accounts,
		opts:     opts,
	}

	r.mux.HandleFunc("GET /healthz", r.healthz)
	r.mux.HandleFunc("GET /readyz", r.readyz)
	if opts.MetricsHandler != nil {
		r.mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	r.mux.HandleFunc("POST /auth/register", r.register)
	var login http.Handler = http.HandlerFunc(r.login)
	if opts.LoginLimiter != nil {
		login = middleware.RateLimit(opts.LoginLimiter, "login", opts.Metrics)(login)
	}
	r.mux.Handle("POST /auth/login", login)

	r.mux.HandleFunc("GET /v1/me", r.me)

	adminOnly := middleware.RequireRole(opts.Metrics, domain.RoleAdmin)
	r.mux.Handle("GET /v1/admin/users", adminOnly(http.HandlerFunc(r.listUsers)))
	r.mux.Handle("PUT /v1/admin/users/{id}/role", adminOnly(http.HandlerFunc(r.changeRole)))

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Route returns the path of the registered pattern that serves req, such as
// "/v1/admin/users/{id}/role", or "" when no route matches.
func (r *Router) Route(req *http.Request) string {
	_, pattern := r.mux.Handler(req)
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

func (r *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) readyz(w http.ResponseWriter, req *http.Request) {
	if r.opts.Ready != nil {
		if err := r.opts.Ready(req.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var in account.RegisterInput
	if !decode(w, req, &in) {
		return
	}
	u, err := r.accounts.Register(req.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var in account.LoginInput
	if !decode(w, req, &in) {
		return
	}
	sess, err := r.accounts.Login(req.Context(), in)
	r.recordLogin(req.Context(), err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (r *Router) recordLogin(ctx context.Context, err error) {
	if r.opts.Metrics == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		result = "invalid_credentials"
	case errors.Is(err, domain.ErrInvalidInput):
		result = "invalid_input"
	case err != nil:
		result = "error"
	}
	r.opts.Metrics.RecordLogin(ctx, result)
}

func (r *Router) me(w http.ResponseWriter, req *http.Request) {
	claims, ok := gw.ClaimsFromContext(req.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	u, err := r.accounts.Profile(req.Context(), claims.SubjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.accounts.ListUsers(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type changeRoleRequest struct {
	Role domain.Role `json:"role"`
}

func (r *Router) changeRole(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(req.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, domain.ErrUserNotFound)
		return
	}
	var body changeRoleRequest
	if !decode(w, req, &body) {
		return
	}
	u, err := r.accounts.ChangeRole(req.Context(), id, body.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

var errTrailingData = errors.New("trailing data after JSON value")

// decode reads a single JSON object from the body. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, req *http.Request, dst any) bool {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		// Anything after the first value is rejected.
		if err = dec.Decode(&struct{}{}); errors.Is(err, io.EOF) {
			return true
		}
		if err == nil {
			err = errTrailingData
		}
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "Cuerpo de la solicitud demasiado grande")
	case errors.Is(err, io.EOF):
		writeErrorMessage(w, http.StatusBadRequest, "Cuerpo de la solicitud vacío")
	default:
		writeErrorMessage(w, http.StatusBadRequest, "JSON inválido")
	}
	return false
}
