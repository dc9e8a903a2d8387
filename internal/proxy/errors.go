package proxy

import (
	"errors"
	"net/url"
)

var (
	// Routing rejections: no upstream call is made
	ErrEmptyPath        = errors.New("empty upstream path")
	ErrReservedPath     = errors.New("path is reserved for the authentication provider")
	ErrInvalidPath      = errors.New("invalid path segment")
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrMissingServiceToken is a configuration error: token mode was
	// selected but the server holds no service credential
	ErrMissingServiceToken = errors.New("service credential not configured")

	ErrCircuitOpen      = errors.New("upstream circuit open")
	ErrRequestTooLarge  = errors.New("request body too large")
	ErrResponseTooLarge = errors.New("upstream response too large")
	ErrClientClosed     = errors.New("client closed request")
)

// UnreachableError reports a transport failure talking to the upstream
type UnreachableError struct {
	Timeout bool
	Err     error
}

func newUnreachableError(err error, timeout bool) *UnreachableError {
	// url.Error carries the outbound URL, which may hold the service token
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return &UnreachableError{Timeout: timeout, Err: err}
}

func (e *UnreachableError) Error() string {
	if e.Timeout {
		return "upstream timeout: " + e.Err.Error()
	}
	return "upstream unreachable: " + e.Err.Error()
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}
