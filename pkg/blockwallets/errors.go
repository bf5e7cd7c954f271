package blockwallets

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies why a provider call failed.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport" // The request never got a response.
	KindAuth      ErrorKind = "auth"      // The API key was rejected.
	KindMalformed ErrorKind = "malformed" // The response body could not be used.
	KindProvider  ErrorKind = "provider"  // The provider reported a failure.
)

// APIError is returned by every failing [Client] call.
type APIError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int

	// Message is the provider's error.message, when the body carried one.
	Message string

	Err error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first APIError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	default:
		return KindProvider
	}
}
