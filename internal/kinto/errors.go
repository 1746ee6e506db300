package kinto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind categorizes remote failures.
type ErrorKind string

const (
	// KindServer indicates a 5xx response or a transport failure.
	KindServer ErrorKind = "SERVER_ERROR"

	// KindClient indicates a 4xx response.
	KindClient ErrorKind = "CLIENT_ERROR"

	// KindContent indicates a response body that could not be parsed, or
	// records missing id or last_modified.
	KindContent ErrorKind = "CONTENT_ERROR"

	// KindUnknownCollection indicates the monitor listing has no entry for
	// the requested bucket/collection.
	KindUnknownCollection ErrorKind = "UNKNOWN_COLLECTION"
)

// ErrorResponse is the body Kinto sends with 4xx and 5xx statuses.
type ErrorResponse struct {
	Code    int             `json:"code"`
	Errno   int             `json:"errno"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Info    string          `json:"info,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Error is returned by every Client method.
type Error struct {
	Kind ErrorKind

	// Name is a human-readable description.
	Name string

	// Response is the decoded error body, when the server sent one.
	Response *ErrorResponse

	// RetryAfter is the Retry-After header in seconds (KindServer only).
	RetryAfter *uint64

	// Bucket and Collection identify the target (KindUnknownCollection only).
	Bucket     string
	Collection string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newUnknownCollection(bid, cid string) *Error {
	return &Error{
		Kind:       KindUnknownCollection,
		Name:       fmt.Sprintf("unknown collection %s/%s", bid, cid),
		Bucket:     bid,
		Collection: cid,
	}
}

func newContentError(name string, err error) *Error {
	return &Error{Kind: KindContent, Name: name, Err: err}
}

// IsUnknownCollection reports whether err is a KindUnknownCollection error.
// Uses errors.As to handle wrapped errors.
func IsUnknownCollection(err error) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == KindUnknownCollection
	}
	return false
}

// IsServerError reports whether err is a KindServer error.
func IsServerError(err error) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == KindServer
	}
	return false
}
