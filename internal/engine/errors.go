package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/settingsync/internal/kinto"
	"github.com/roach88/settingsync/internal/signatures"
	"github.com/roach88/settingsync/internal/store"
)

// Error is the only error type returned by Client.
//
// Every subsystem failure is mapped to exactly one Kind:
//   - KindVerification: a signature, certificate or content-integrity check failed
//   - KindStorage: the storage backend could not read or write, or the
//     persisted representation could not be encoded
//   - KindAPI: the remote server was unreachable, answered with an error,
//     returned unparsable content, or does not know the collection
//
// The original subsystem error is kept in Err for errors.As/errors.Is.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Name is a human-readable description.
	Name string

	// Response is the server's error body (KindAPI only, when available).
	Response *kinto.ErrorResponse

	// Err is the underlying subsystem error.
	Err error
}

// ErrorKind categorizes client errors.
type ErrorKind string

const (
	// KindVerification indicates the data's authenticity could not be established.
	KindVerification ErrorKind = "VERIFICATION_ERROR"

	// KindStorage indicates a storage or encoding failure.
	KindStorage ErrorKind = "STORAGE_ERROR"

	// KindAPI indicates a remote server failure.
	KindAPI ErrorKind = "API_ERROR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

// Unwrap returns the underlying subsystem error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsVerificationError returns true if the error is a verification error.
// Uses errors.As to handle wrapped errors.
func IsVerificationError(err error) bool {
	return hasKind(err, KindVerification)
}

// IsStorageError returns true if the error is a storage error.
func IsStorageError(err error) bool {
	return hasKind(err, KindStorage)
}

// IsAPIError returns true if the error is a remote API error.
func IsAPIError(err error) bool {
	return hasKind(err, KindAPI)
}

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// fromRemote maps a Remote failure to KindAPI.
// Unknown collections are named after the bucket and collection.
func fromRemote(err error) *Error {
	var ke *kinto.Error
	if errors.As(err, &ke) {
		if ke.Kind == kinto.KindUnknownCollection {
			return &Error{
				Kind: KindAPI,
				Name: fmt.Sprintf("Unknown collection %s/%s", ke.Bucket, ke.Collection),
				Err:  err,
			}
		}
		return &Error{Kind: KindAPI, Name: ke.Name, Response: ke.Response, Err: err}
	}
	return &Error{Kind: KindAPI, Name: err.Error(), Err: err}
}

// fromVerifier maps a Verifier failure to KindVerification.
func fromVerifier(err error) *Error {
	var se *signatures.SignatureError
	if errors.As(err, &se) {
		return &Error{Kind: KindVerification, Name: se.Name, Err: err}
	}
	return &Error{Kind: KindVerification, Name: err.Error(), Err: err}
}

// fromStorage maps a Storage failure to KindStorage.
func fromStorage(err error) *Error {
	var se *store.StorageError
	if errors.As(err, &se) {
		return &Error{Kind: KindStorage, Name: se.Name, Err: err}
	}
	return &Error{Kind: KindStorage, Name: err.Error(), Err: err}
}

// fromCodec maps an encoding failure of the persisted representation to
// KindStorage.
func fromCodec(err error) *Error {
	return &Error{
		Kind: KindStorage,
		Name: fmt.Sprintf("Could not de/serialize data: %v", err),
		Err:  err,
	}
}
