package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call to the remote API
type Kind int

const (
	// Rejected means the server refused the request with a message meant for the visitor
	Rejected Kind = iota + 1
	// Unauthorized means the server no longer accepts the session token
	Unauthorized
	// Unreachable means no response was received
	Unreachable
	// MalformedResponse means the server answered outside the expected contract
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case Rejected:
		return "rejected"
	case Unauthorized:
		return "unauthorized"
	case Unreachable:
		return "unreachable"
	case MalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// AuthError is the only error type returned by Client methods
type AuthError struct {
	Kind    Kind
	Message string // server-supplied for Rejected, empty otherwise
	Status  int    // HTTP status, 0 when no response was received
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	default:
		return e.Kind.String()
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 when err is not an AuthError
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// IsUnauthorized reports whether err means the session must be invalidated
func IsUnauthorized(err error) bool {
	return KindOf(err) == Unauthorized
}

// MessageOf returns the server message carried by a Rejected error
func MessageOf(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Kind == Rejected {
		return ae.Message
	}
	return ""
}

func rejected(status int, message string) *AuthError {
	return &AuthError{Kind: Rejected, Status: status, Message: message}
}

func unauthorized(status int, message string) *AuthError {
	return &AuthError{Kind: Unauthorized, Status: status, Message: message}
}

func unreachable(err error) *AuthError {
	return &AuthError{Kind: Unreachable, Err: err}
}

func malformed(status int, err error) *AuthError {
	return &AuthError{Kind: MalformedResponse, Status: status, Err: err}
}
