package errors

import (
	"errors"
	"net/http"
)

func NewValidation(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

func NewApi(status int, message string) ApiError {
	return ApiError{Status: status, Message: message}
}

func NewNetwork(op string, err error) NetworkError {
	return NetworkError{Op: op, Err: err}
}

// Kind reports which of the three failure kinds err belongs to.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var v ValidationError
	if errors.As(err, &v) {
		return KindValidation
	}
	var a ApiError
	if errors.As(err, &a) {
		return KindApi
	}
	var n NetworkError
	if errors.As(err, &n) {
		return KindNetwork
	}
	return KindUnknown
}

// Status returns the HTTP status carried by an ApiError.
func Status(err error) (int, bool) {
	var a ApiError
	if errors.As(err, &a) {
		return a.Status, true
	}
	return 0, false
}

// Retryable is true only for network failures. Nothing in this module retries
// on its own, the caller decides.
func Retryable(err error) bool {
	return Kind(err) == KindNetwork
}

// Unauthorized is true when the service rejected the credential.
func Unauthorized(err error) bool {
	status, ok := Status(err)
	return ok && (status == http.StatusUnauthorized || status == http.StatusForbidden)
}
