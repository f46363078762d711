// Package apperrors defines the error taxonomy shared by the placement and sourcer domains.
// Every error is an httperror.HTTPError tagged with a kind so handlers render it without mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindInvalidTransition Kind = "invalid_transition"
	KindAuthentication    Kind = "authentication_error"
	KindAuthorization     Kind = "authorization_error"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal_error"
)

const kindMetaKey = "kind"

func newError(status int, kind Kind, format string, args ...any) error {
	return httperror.NewHTTPError(status, fmt.Sprintf(format, args...)).AddMetaValue(kindMetaKey, string(kind))
}

// Validation marks a missing or out-of-range input.
func Validation(format string, args ...any) error {
	return newError(http.StatusBadRequest, KindValidation, format, args...)
}

// InvalidTransition marks a status change the state machine does not allow.
func InvalidTransition(from, to string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid status transition from %s to %s", from, to)).
		AddMetaValue(kindMetaKey, string(KindInvalidTransition)).
		AddMetaValue("from", from).
		AddMetaValue("to", to)
}

func Authentication(format string, args ...any) error {
	return newError(http.StatusUnauthorized, KindAuthentication, format, args...)
}

func Authorization(format string, args ...any) error {
	return newError(http.StatusForbidden, KindAuthorization, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(http.StatusNotFound, KindNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(http.StatusConflict, KindConflict, format, args...)
}

// Internal hides the underlying cause from the caller. Log the cause before returning it.
func Internal(format string, args ...any) error {
	return newError(http.StatusInternalServerError, KindInternal, format, args...)
}

// KindOf returns the taxonomy kind of err, or an empty kind for foreign errors.
func KindOf(err error) Kind {
	if err == nil || !httperror.IsHTTPError(err) {
		return ""
	}
	httpErr := httperror.ToHTTPError(err)
	if httpErr == nil || httpErr.Meta == nil {
		return ""
	}
	kind, _ := httpErr.Meta[kindMetaKey].(string)
	return Kind(kind)
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsNotFound also accepts plain 404 http errors raised outside this package.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, KindNotFound) {
		return true
	}
	var target *httperror.HTTPError
	if errors.As(err, &target) {
		return httperror.GetStatusCode(err) == http.StatusNotFound
	}
	return false
}
