package testutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"holistica/internal/domain"
	"holistica/internal/gateway/adapter/token"
)

// TestSecret is the signing secret shared by test tokens and verifiers.
const TestSecret = "holistica-test-secret"

// IssueTestToken creates an HS256 token carrying claims, signed with secret.
// A negative ttl produces an already-expired token.
func IssueTestToken(t *testing.T, secret string, claims domain.Claims, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	return SignCustomClaims(t, secret, jwt.MapClaims{
		"id":   claims.SubjectID,
		"role": int(claims.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"iss":  token.Issuer,
	})
}

// SignCustomClaims creates an HS256 token with arbitrary claims.
func SignCustomClaims(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// ErrDecoding stands in for a verifier fault that is neither expiry nor a bad signature.
var ErrDecoding = errors.New("internal decoding fault")

// StubVerifier answers Verify from a fixed table and records every token it sees.
// Unknown tokens verify as domain.ErrInvalidToken.
type StubVerifier struct {
	mu      sync.Mutex
	results map[string]stubResult
	calls   []string
}

type stubResult struct {
	claims domain.Claims
	err    error
}

// NewStubVerifier returns an empty StubVerifier.
func NewStubVerifier() *StubVerifier {
	return &StubVerifier{results: make(map[string]stubResult)}
}

// Accept makes token verify to claims.
func (s *StubVerifier) Accept(token string, claims domain.Claims) *StubVerifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[token] = stubResult{claims: claims}
	return s
}

// Fail makes token fail verification with err.
func (s *StubVerifier) Fail(token string, err error) *StubVerifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[token] = stubResult{err: err}
	return s
}

// Verify implements gateway.TokenVerifier.
func (s *StubVerifier) Verify(token string) (domain.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, token)
	r, ok := s.results[token]
	if !ok {
		return domain.Claims{}, domain.ErrInvalidToken
	}
	return r.claims, r.err
}

// Calls returns the tokens passed to Verify, in order.
func (s *StubVerifier) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
