package domain

import "errors"

// Sentinel errors used across service boundaries.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// Account errors wrap the generic sentinels so the HTTP layer can map them by kind.
var (
	ErrUserNotFound = wrap(ErrNotFound, "user not found")
	ErrEmailTaken   = wrap(ErrConflict, "email already registered")
	ErrUnknownRole  = wrap(ErrInvalidInput, "unknown role")
)

// ErrorResponse is the JSON error envelope returned to clients.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type wrappedError struct {
	msg string
	err error
}

func wrap(err error, msg string) error {
	return &wrappedError{msg: msg, err: err}
}

func (e *wrappedError) Error() string { return e.msg }

func (e *wrappedError) Unwrap() error { return e.err }
