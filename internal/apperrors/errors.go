// Package apperrors classifies service-layer failures so handlers can
// map them onto HTTP statuses without string matching.
package apperrors

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindRideNotOpen  Kind = "ride_not_open"
	KindBelowMinimum Kind = "below_minimum"
	KindDuplicateBid Kind = "duplicate_bid"
	KindCodeNotFound Kind = "code_not_found"
	KindCodeExpired  Kind = "code_expired"
	KindCodeMismatch Kind = "code_mismatch"
	KindInternal     Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

// InvalidState marks a lifecycle transition attempted from a status
// that does not allow it.
func InvalidState(message string) *Error {
	return New(KindInvalidState, message)
}

// Conflict marks a race lost to a concurrent writer, such as a second
// accept on a ride that already has a winner.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the classification of err, or "" when err was never
// classified by this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidState, KindRideNotOpen, KindBelowMinimum, KindDuplicateBid:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindCodeNotFound, KindCodeExpired, KindCodeMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
