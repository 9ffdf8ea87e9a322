package session

import (
	"fmt"
)

// kindError is a sentinel with a short name that notifications use as
// the error title.
type kindError struct {
	name    string
	message string
}

func (e *kindError) Error() string { return e.message }
func (e *kindError) Name() string  { return e.name }

var (
	// the sign-in page carried no <meta name="csrf-token">
	ErrTokenNotFound = &kindError{name: "TokenNotFound", message: "csrf token not found on sign-in page"}
	// the sign-in submission did not produce a session
	ErrRejected = &kindError{name: "Rejected", message: "sign-in was rejected"}
	// the data layer refused the current session
	ErrAuthRequired = &kindError{name: "AuthRequired", message: "session is no longer authorized"}
)

// HTTPError is a response with a status outside of 2xx that was not
// interpreted as an authorization signal.
type HTTPError struct {
	Method string
	Path   string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

func (e *HTTPError) Name() string { return "HTTPError" }

// NetworkError covers transport failures, including request timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *NetworkError) Unwrap() error { return e.Err }
func (e *NetworkError) Name() string  { return "NetworkError" }

// MalformedError is a body that could not be decoded into the expected
// shape.
type MalformedError struct {
	What string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.What, e.Err.Error())
}

func (e *MalformedError) Unwrap() error { return e.Err }
func (e *MalformedError) Name() string  { return "MalformedError" }
