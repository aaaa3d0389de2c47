package integrations

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	ErrorUnexpected ErrorKind = iota
	ErrorMissingCredentials
	ErrorMissingAPIKey
	ErrorInvalidConfig
	ErrorLocationNotFound
	ErrorUpstreamClient
	ErrorUpstreamServer
	ErrorRequestTimeout
	ErrorTransport
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorMissingCredentials:
		return "missing_credentials"
	case ErrorMissingAPIKey:
		return "missing_api_key"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorLocationNotFound:
		return "location_not_found"
	case ErrorUpstreamClient:
		return "upstream_client_error"
	case ErrorUpstreamServer:
		return "upstream_server_error"
	case ErrorRequestTimeout:
		return "request_timeout"
	case ErrorTransport:
		return "transport_error"
	default:
		return "unexpected_error"
	}
}

// Error is a classified integration failure. It converts one to one into a
// failed Envelope.
type Error struct {
	Kind        ErrorKind
	Code        int
	Description string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Code, e.Description, e.Cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Envelope() Envelope {
	return Failure(e.Code, e.Description)
}

func NewErrMissingCredentials(providerLabel string) *Error {
	return &Error{
		Kind:        ErrorMissingCredentials,
		Code:        http.StatusUnauthorized,
		Description: providerLabel + " API key not found in credentials",
	}
}

func NewErrMissingAPIKey() *Error {
	return &Error{
		Kind:        ErrorMissingAPIKey,
		Code:        http.StatusUnauthorized,
		Description: "API key not found in credentials",
	}
}

func NewErrInvalidConfig(err error) *Error {
	return &Error{
		Kind:        ErrorInvalidConfig,
		Code:        http.StatusBadRequest,
		Description: err.Error(),
		Cause:       err,
	}
}

func NewErrLocationNotFound(location string) *Error {
	return &Error{
		Kind:        ErrorLocationNotFound,
		Code:        http.StatusNotFound,
		Description: "City not found: " + location,
	}
}

// NewErrUpstream classifies a non-success upstream status. 5xx statuses are
// server errors, everything else a client error; the code is passed through.
func NewErrUpstream(status int, description string) *Error {
	kind := ErrorUpstreamClient
	if status >= 500 {
		kind = ErrorUpstreamServer
	}
	return &Error{Kind: kind, Code: status, Description: description}
}

func NewErrRequestTimeout(cause error) *Error {
	return &Error{
		Kind:        ErrorRequestTimeout,
		Code:        http.StatusGatewayTimeout,
		Description: "Request timeout",
		Cause:       cause,
	}
}

func NewErrTransport(prefix string, cause error) *Error {
	return &Error{
		Kind:        ErrorTransport,
		Code:        http.StatusInternalServerError,
		Description: fmt.Sprintf("%s: %v", prefix, cause),
		Cause:       cause,
	}
}

func NewErrUnexpected(cause error) *Error {
	return &Error{
		Kind:        ErrorUnexpected,
		Code:        http.StatusInternalServerError,
		Description: cause.Error(),
		Cause:       cause,
	}
}

// AsError returns err as an *Error, classifying anything else as unexpected.
func AsError(err error) *Error {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr
	}
	return NewErrUnexpected(err)
}
