package atlasapi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an API failure for the caller. UI layers branch on
// the kind, not on status codes.
type ErrorKind string

const (
	// KindValidationRejected: the backend refused the payload; the user
	// can correct the input and resubmit.
	KindValidationRejected ErrorKind = "VALIDATION_REJECTED"
	// KindUnauthorized: the session is invalid even after one silent
	// refresh attempt; the caller should force re-login.
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	// KindUnreachable: network-level failure; transient, retry is the
	// caller's decision.
	KindUnreachable ErrorKind = "UNREACHABLE"
	// KindServerError: backend 5xx; not retried.
	KindServerError ErrorKind = "SERVER_ERROR"
	// KindNotFound: resource absent; treated as "no data yet", not fatal.
	KindNotFound ErrorKind = "NOT_FOUND"
)

type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Msg        string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Kind extracts the ErrorKind from err, unwrapping as needed. Errors that
// did not originate from the API surface report KindUnreachable so callers
// always have a branch to take.
func Kind(err error) ErrorKind {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnreachable
}
