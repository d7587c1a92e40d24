package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure kinds. Every error surfaced by the core wraps exactly one of these,
// so callers can branch with errors.Is on the kind or on the specific error.
var (
	ErrAuth             = errors.New("authentication failure")
	ErrPersistence      = errors.New("persistence failure")
	ErrExternalService  = errors.New("external service failure")
	ErrValidation       = errors.New("validation failure")
	ErrAmbiguousRouting = errors.New("ambiguous routing")
)

var (
	ErrDuplicateUsername = fmt.Errorf("%w: username already exists", ErrAuth)
	ErrMissingField      = fmt.Errorf("%w: username, display name and password are required", ErrAuth)
	ErrUserNotFound      = fmt.Errorf("%w: user not found", ErrAuth)
	ErrWrongPassword     = fmt.Errorf("%w: incorrect password", ErrAuth)

	ErrInvalidAmount   = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrInvalidCategory = fmt.Errorf("%w: unknown transaction type or category", ErrValidation)
)

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the text shown to the farmer for err. Internal details of
// persistence and upstream failures are not echoed back.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth), errors.Is(err, ErrValidation), errors.Is(err, ErrAmbiguousRouting):
		return err.Error()
	case errors.Is(err, ErrExternalService):
		return "The service is not reachable right now. Please try again."
	case errors.Is(err, ErrPersistence):
		return "Could not save or read your data."
	default:
		return "Something went wrong."
	}
}
