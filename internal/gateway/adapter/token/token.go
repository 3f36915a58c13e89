// Package token signs and verifies HS256 access tokens with the process secret.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"holistica/internal/domain"
)

// Issuer is stamped into every signed token and required on verification.
const Issuer = "holistica"

// payload is the JWT body. "id" and "role" are the identity claims.
type payload struct {
	SubjectID int64       `json:"id"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Option configures a Verifier or Signer.
type Option func(*options)

type options struct {
	leeway time.Duration
	now    func() time.Time
}

// WithLeeway tolerates clock skew when checking exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(o *options) { o.leeway = d }
}

// WithClock overrides the time source. Tests use it to pin expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Verifier checks token signatures against a shared secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns a Verifier bound to secret.
func NewVerifier(secret string, opts ...Option) *Verifier {
	o := buildOptions(opts)
	return &Verifier{
		secret: []byte(secret),
		// SECURITY: only HS256, so a token can't pick its own algorithm
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(Issuer),
			jwt.WithLeeway(o.leeway),
			jwt.WithTimeFunc(o.now),
		),
	}
}

// Verify decodes the claims of a valid token.
// Expired tokens return domain.ErrTokenExpired; every other failure returns
// an error wrapping domain.ErrInvalidToken.
func (v *Verifier) Verify(tokenStr string) (domain.Claims, error) {
	var p payload
	_, err := v.parser.ParseWithClaims(tokenStr, &p, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.Claims{}, domain.ErrTokenExpired
	default:
		return domain.Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if p.SubjectID <= 0 {
		return domain.Claims{}, fmt.Errorf("%w: missing subject id", domain.ErrInvalidToken)
	}
	return domain.Claims{SubjectID: p.SubjectID, Role: p.Role}, nil
}

// Signer issues tokens verifiable by a Verifier holding the same secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer whose tokens expire after ttl.
// A negative ttl produces already-expired tokens.
func NewSigner(secret string, ttl time.Duration, opts ...Option) *Signer {
	o := buildOptions(opts)
	return &Signer{secret: []byte(secret), ttl: ttl, now: o.now}
}

// TTL returns the lifetime of issued tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a signed token for claims and its expiry time.
func (s *Signer) Sign(claims domain.Claims) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, payload{
		SubjectID: claims.SubjectID,
		Role:      claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, exp, nil
}
