package gateway

import (
	"errors"
	"net/http"
	"strings"

	"holistica/internal/domain"
)

const bearerPrefix = "Bearer "

// Reason says why a request was rejected. ReasonNone means it was not.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonMissingCredential
	ReasonExpiredCredential
	ReasonInvalidCredential
	ReasonInsufficientRole
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMissingCredential:
		return "missing_credential"
	case ReasonExpiredCredential:
		return "expired_credential"
	case ReasonInvalidCredential:
		return "invalid_credential"
	case ReasonInsufficientRole:
		return "insufficient_role"
	default:
		return "unknown"
	}
}

// Status is the HTTP status written for the rejection.
func (r Reason) Status() int {
	switch r {
	case ReasonNone:
		return 0
	case ReasonMissingCredential, ReasonExpiredCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// Message is the user-facing text of the rejection body.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonMissingCredential:
		return "Token de acceso requerido"
	case ReasonExpiredCredential:
		return "Token expirado"
	case ReasonInsufficientRole:
		return "Permisos insuficientes"
	default:
		return "Token inválido"
	}
}

// Outcome is the result of authenticating or authorizing one request.
type Outcome struct {
	Claims domain.Claims
	Reason Reason
}

// Authorized reports whether the chain may continue.
func (o Outcome) Authorized() bool {
	return o.Reason == ReasonNone
}

func rejected(r Reason) Outcome {
	return Outcome{Reason: r}
}

// Gate turns a bearer credential into attached claims or a terminal rejection.
type Gate struct {
	verifier TokenVerifier
}

// NewGate returns a Gate that verifies tokens with v.
func NewGate(v TokenVerifier) *Gate {
	return &Gate{verifier: v}
}

// Authenticate inspects the Authorization header of ex. On success the
// claims are attached and nothing is written; on rejection exactly one
// error response is written. Callers must stop unless the outcome is Authorized.
func (g *Gate) Authenticate(ex Exchange) Outcome {
	out := g.check(ex.Header("Authorization"))
	if !out.Authorized() {
		ex.Reject(out.Reason.Status(), out.Reason.Message())
		return out
	}
	ex.SetClaims(out.Claims)
	return out
}

func (g *Gate) check(header string) Outcome {
	tok, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || tok == "" {
		return rejected(ReasonMissingCredential)
	}

	claims, err := g.verifier.Verify(tok)
	switch {
	case err == nil:
		return Outcome{Claims: claims}
	case errors.Is(err, domain.ErrTokenExpired):
		return rejected(ReasonExpiredCredential)
	default:
		return rejected(ReasonInvalidCredential)
	}
}

// Authorize checks the claimed role against the roles a route accepts.
func Authorize(claims domain.Claims, required ...domain.Role) Outcome {
	if !claims.HasRole(required...) {
		return Outcome{Claims: claims, Reason: ReasonInsufficientRole}
	}
	return Outcome{Claims: claims}
}
