package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrAuthentication = errors.New("authentication required")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidInput   = errors.New("invalid input")
)

// AuthenticationError means the caller has no usable token: it is missing
// or cannot be decoded. It matches ErrAuthentication with errors.Is.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication: %s: %v", e.Reason, e.Err)
	}
	return "authentication: " + e.Reason
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthentication}
	}
	return []error{ErrAuthentication, e.Err}
}

// PartialFetchError records one realm whose fetch failed during aggregation.
// It is logged and counted, never returned to the caller of the aggregate.
type PartialFetchError struct {
	Realm string
	Err   error
}

func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("realm %s: %v", e.Realm, e.Err)
}

func (e *PartialFetchError) Unwrap() error { return e.Err }

// Error is a non-2xx answer from the upstream API.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Is maps well-known status codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
