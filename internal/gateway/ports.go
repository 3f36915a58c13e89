package gateway

import (
	"context"
	"net/http"
	"time"

	"holistica/internal/domain"
)

// TokenVerifier decodes the identity carried by a bearer token.
// Expired tokens must return domain.ErrTokenExpired; any other error is
// treated as an invalid credential.
type TokenVerifier interface {
	Verify(token string) (domain.Claims, error)
}

// TokenSigner issues access tokens for authenticated users.
type TokenSigner interface {
	Sign(claims domain.Claims) (string, time.Time, error)
	TTL() time.Duration
}

// Exchange is the part of a host request/response the gate needs.
type Exchange interface {
	// Header returns the named request header, or "" if absent.
	Header(name string) string
	// SetClaims attaches the verified identity to the request.
	SetClaims(domain.Claims)
	// Reject writes exactly one JSON error body with the given status.
	Reject(status int, message string)
}

// RateLimiter decides whether a request identified by key should be allowed.
type RateLimiter interface {
	Allow(key string) RateLimitResult
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter int // seconds until next token available; 0 if allowed
}

// StatusWriter wraps http.ResponseWriter to capture the status code.
type StatusWriter struct {
	http.ResponseWriter
	Code int
}

func (sw *StatusWriter) WriteHeader(code int) {
	sw.Code = code
	sw.ResponseWriter.WriteHeader(code)
}

// ClaimsFromContext extracts the verified identity from a request context.
func ClaimsFromContext(ctx context.Context) (domain.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(domain.Claims)
	return c, ok
}

// ContextWithClaims stores the verified identity in the context. If an outer
// handler reserved an IdentitySlot, the identity is also recorded there.
func ContextWithClaims(ctx context.Context, c domain.Claims) context.Context {
	if slot, ok := ctx.Value(slotKey{}).(*IdentitySlot); ok && !slot.set {
		slot.claims, slot.set = c, true
	}
	return context.WithValue(ctx, claimsKey{}, c)
}

type claimsKey struct{}

// IdentitySlot lets middleware that wraps the gate see the identity the gate
// attached further down the chain. It is written at most once per request.
type IdentitySlot struct {
	claims domain.Claims
	set    bool
}

// Claims returns the recorded identity, if any.
func (s *IdentitySlot) Claims() (domain.Claims, bool) {
	return s.claims, s.set
}

// ContextWithIdentitySlot reserves a fresh slot in ctx.
func ContextWithIdentitySlot(ctx context.Context) (context.Context, *IdentitySlot) {
	slot := &IdentitySlot{}
	return context.WithValue(ctx, slotKey{}, slot), slot
}

type slotKey struct{}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID stores the request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type requestIDKey struct{}
