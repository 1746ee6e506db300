package testutil

import (
	"context"
	"sync"

	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/signatures"
)

// InvalidSignatureName is the error name reported by FailingVerifier.
const InvalidSignatureName = "invalid signature error from tests"

// FailingVerifier rejects every collection with an invalid signature error.
type FailingVerifier struct{}

// Verify always fails.
func (FailingVerifier) Verify(context.Context, *ir.Collection) error {
	return signatures.NewInvalidSignatureError(InvalidSignatureName)
}

// RecordingVerifier accepts or rejects collections through Fn and records
// every collection it was asked to verify.
//
// A nil Fn accepts everything.
//
// Thread-safety: safe for concurrent use.
type RecordingVerifier struct {
	Fn func(*ir.Collection) error

	mu   sync.Mutex
	seen []*ir.Collection
}

// Verify records c and delegates to Fn.
func (v *RecordingVerifier) Verify(_ context.Context, c *ir.Collection) error {
	v.mu.Lock()
	v.seen = append(v.seen, c)
	fn := v.Fn
	v.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(c)
}

// Calls returns how many times Verify was called.
func (v *RecordingVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

// Seen returns the verified collections in call order.
func (v *RecordingVerifier) Seen() []*ir.Collection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*ir.Collection(nil), v.seen...)
}
