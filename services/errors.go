package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies service failures independently of transport.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindForbidden     ErrorKind = "forbidden"
	KindExpired       ErrorKind = "expired"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindConflict      ErrorKind = "conflict"
	KindTooLarge      ErrorKind = "too_large"
	KindRateLimited   ErrorKind = "rate_limited"
	KindValidation    ErrorKind = "validation"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindStorage       ErrorKind = "storage"
	KindInternal      ErrorKind = "internal"
)

type AppError struct {
	Kind     ErrorKind
	HTTPCode int
	Message  string
	Data     interface{}
	Err      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

func newAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, HTTPCode: httpCodeFor(kind), Message: message, Err: err}
}

func newAppErrorWithData(kind ErrorKind, message string, data interface{}, err error) *AppError {
	return &AppError{Kind: kind, HTTPCode: httpCodeFor(kind), Message: message, Data: data, Err: err}
}

func httpCodeFor(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindExpired, KindQuotaExceeded:
		return http.StatusGone
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
