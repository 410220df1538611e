package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable covers transport failures: the server could not be
	// reached, timed out or answered with a gateway error.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized is a credential failure: bad identifier/password or an
	// invalid, expired or foreign token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is a validation failure, either detected locally before
	// any request or reported by the server.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedResponse means a successful answer could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// Failure is a non-2xx answer of the API.
type Failure struct {
	Status int
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("api error %d: %s", f.Status, f.Message())
}

// Message is the human-readable reason: the server detail, or the status
// text when the server sent none.
func (f *Failure) Message() string {
	if f.Detail != "" {
		return f.Detail
	}
	if text := http.StatusText(f.Status); text != "" {
		return text
	}
	return "request failed"
}

// Is lets errors.Is match a Failure against the sentinel of its class.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return f.Status == http.StatusUnauthorized || f.Status == http.StatusForbidden
	case ErrUnavailable:
		return f.Status == http.StatusBadGateway ||
			f.Status == http.StatusServiceUnavailable ||
			f.Status == http.StatusGatewayTimeout
	case ErrInvalidInput:
		return f.Status == http.StatusBadRequest || f.Status == http.StatusUnprocessableEntity
	}
	return false
}

// IsCredentialFailure reports whether err means the presented credential
// was rejected.
func IsCredentialFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
