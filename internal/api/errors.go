package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/drojas/tienda/internal/domain"
)

// errorBody is the structured error the backend returns alongside non-2xx
// statuses: a machine-readable code plus a display message.
type errorBody struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// classify maps an HTTP status and the machine-readable error code to the
// domain failure taxonomy. The server-provided message is kept in the
// error chain so the UI can show it, but callers branch with errors.Is.
func classify(status int, authed bool, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body) // a non-JSON body just means no code

	switch body.Code {
	case "2FA_REQUIRED":
		return wrap(domain.ErrSecondFactorRequired, body.Message)
	case "INVALID_2FA_CODE":
		return wrap(domain.ErrInvalidSecondFactorCode, body.Message)
	case "USER_NOT_VERIFIED":
		return wrap(domain.ErrAccountNotVerified, body.Message)
	case "INVALID_CREDENTIALS":
		return wrap(domain.ErrInvalidCredentials, body.Message)
	case "USER_NOT_FOUND":
		return wrap(domain.ErrAccountNotFound, body.Message)
	}

	switch {
	case status == http.StatusUnauthorized && authed:
		return wrap(domain.ErrSessionExpired, body.Message)
	case status == http.StatusUnauthorized:
		return wrap(domain.ErrInvalidCredentials, body.Message)
	case status == http.StatusForbidden:
		return wrap(domain.ErrAccountNotVerified, body.Message)
	case status == http.StatusNotFound:
		// Only the USER_NOT_FOUND code above means a missing account; a
		// bare 404 is whatever resource the endpoint serves (a product, a
		// stale verification link).
		return wrap(domain.ErrNotFound, body.Message)
	case status == http.StatusConflict:
		return wrap(domain.ErrConflict, body.Message)
	case status >= 500:
		return wrap(domain.ErrServerError, body.Message)
	}

	if body.Message != "" {
		return fmt.Errorf("%w: %s", domain.ErrServerError, body.Message)
	}
	return fmt.Errorf("%w: unexpected status %d", domain.ErrServerError, status)
}

func wrap(sentinel error, message string) error {
	if message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
