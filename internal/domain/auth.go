package domain

import "errors"

// Failure taxonomy surfaced by the API client and the auth store.
// Callers pick a user-facing message with errors.Is; every error coming
// out of a store wraps exactly one of these, carrying the server's own
// message when it sent one.
var (
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrAccountNotVerified      = errors.New("account email is not verified")
	ErrAccountNotFound         = errors.New("account does not exist")
	ErrSecondFactorRequired    = errors.New("second factor code required")
	ErrInvalidSecondFactorCode = errors.New("second factor code is invalid")
	ErrConflict                = errors.New("already exists")
	ErrNotFound                = errors.New("not found")
	ErrSessionExpired          = errors.New("session is invalid or expired")
	ErrServerError             = errors.New("server error")

	// ErrOperationInFlight guards against re-entrant submission of the
	// same logical operation (double-clicked login).
	ErrOperationInFlight = errors.New("operation already in flight")

	// ErrInvalidInput is returned by client-side validation before any
	// network call is made.
	ErrInvalidInput = errors.New("invalid input")
)

// Identity is the signed-in user's display data. It is distinct from the
// opaque bearer token that proves the session.
type Identity struct {
	Name  string
	Email string
}
