package main

import (
	"errors"

	"github.com/drojas/tienda/internal/domain"
)

// messageFor picks the user-facing message for a failure. Wrapped server
// messages are kept when a sentinel alone would lose information.
func messageFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "email or password is incorrect"
	case errors.Is(err, domain.ErrAccountNotVerified):
		return "please verify your email address before signing in"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "no account exists for that email"
	case errors.Is(err, domain.ErrNotFound):
		return "nothing matches that request"
	case errors.Is(err, domain.ErrInvalidSecondFactorCode):
		return "that code was not accepted; wait for the next one and try again"
	case errors.Is(err, domain.ErrSecondFactorRequired):
		return "this account requires a second-factor code"
	case errors.Is(err, domain.ErrConflict):
		return "that email is already registered"
	case errors.Is(err, domain.ErrSessionExpired):
		return err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, domain.ErrOperationInFlight):
		return "a request is already in progress"
	case errors.Is(err, domain.ErrServerError):
		return "connection or server error; check your network and that the backend is running"
	default:
		return err.Error()
	}
}
