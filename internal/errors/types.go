package errors

import (
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindApi
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindApi:
		return "api"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// ValidationError is a local precondition failure. No request was sent.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if len(e.Field) == 0 {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ApiError is a non-2xx answer of the wallet service.
type ApiError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e ApiError) Error() string {
	msg := e.Message
	if len(msg) == 0 {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%d: %s", e.Status, msg)
}

// NetworkError means no usable response was obtained: transport failure,
// cancellation or a malformed body on an otherwise successful status.
type NetworkError struct {
	Op  string
	Err error
}

func (e NetworkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: network error", e.Op)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidCredential = ValidationError{Field: "credential", Message: "api key must not be empty"}
	ErrInvalidName       = ValidationError{Field: "name", Message: "please enter a wallet name"}
	ErrInvalidAmount     = ValidationError{Field: "amount", Message: "please enter a valid amount"}
	ErrInvalidBolt11     = ValidationError{Field: "bolt11", Message: "payment request must not be empty"}
)
