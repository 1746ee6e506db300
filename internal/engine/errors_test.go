package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/settingsync/internal/kinto"
	"github.com/roach88/settingsync/internal/signatures"
	"github.com/roach88/settingsync/internal/store"
)

func TestError_Format(t *testing.T) {
	err := &Error{Kind: KindStorage, Name: "disk full"}
	assert.Equal(t, "STORAGE_ERROR: disk full", err.Error())
}

func TestFromRemote(t *testing.T) {
	resp := &kinto.ErrorResponse{Code: 500, Errno: 999, Message: "oops"}

	tests := []struct {
		name     string
		err      error
		wantName string
		wantResp *kinto.ErrorResponse
	}{
		{
			name:     "server error",
			err:      &kinto.Error{Kind: kinto.KindServer, Name: "server error 500", Response: resp},
			wantName: "server error 500",
			wantResp: resp,
		},
		{
			name:     "client error",
			err:      &kinto.Error{Kind: kinto.KindClient, Name: "client error 404"},
			wantName: "client error 404",
		},
		{
			name:     "content error",
			err:      &kinto.Error{Kind: kinto.KindContent, Name: "bad json"},
			wantName: "bad json",
		},
		{
			name:     "unknown collection",
			err:      &kinto.Error{Kind: kinto.KindUnknownCollection, Bucket: "main", Collection: "nope"},
			wantName: "Unknown collection main/nope",
		},
		{
			name:     "foreign error",
			err:      errors.New("connection reset"),
			wantName: "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := fromRemote(tt.err)
			assert.Equal(t, KindAPI, e.Kind)
			assert.Equal(t, tt.wantName, e.Name)
			assert.Equal(t, tt.wantResp, e.Response)
			assert.ErrorIs(t, e, tt.err)
			assert.True(t, IsAPIError(e))
			assert.False(t, IsStorageError(e))
			assert.False(t, IsVerificationError(e))
		})
	}
}

func TestFromVerifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"certificate", signatures.NewCertificateError("bad chain", errors.New("x509"))},
		{"verification", signatures.NewVerificationError("x5u field not present in signature")},
		{"invalid signature", signatures.NewInvalidSignatureError("mismatch")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se *signatures.SignatureError
			require.ErrorAs(t, tt.err, &se)

			e := fromVerifier(tt.err)
			assert.Equal(t, KindVerification, e.Kind)
			assert.Equal(t, se.Name, e.Name)
			assert.True(t, IsVerificationError(e))
		})
	}

	e := fromVerifier(errors.New("custom verifier"))
	assert.Equal(t, "custom verifier", e.Name)
}

func TestFromStorage(t *testing.T) {
	read := &store.StorageError{Kind: store.KindRead, Name: "cannot read"}
	write := &store.StorageError{Kind: store.KindWrite, Name: "cannot write"}

	for _, se := range []*store.StorageError{read, write} {
		e := fromStorage(se)
		assert.Equal(t, KindStorage, e.Kind)
		assert.Equal(t, se.Name, e.Name)
		assert.True(t, IsStorageError(e))
	}
	assert.True(t, store.IsReadError(fromStorage(read)))
	assert.True(t, store.IsWriteError(fromStorage(write)))
}

func TestFromCodec(t *testing.T) {
	e := fromCodec(errors.New("unexpected EOF"))
	assert.Equal(t, KindStorage, e.Kind)
	assert.Equal(t, "Could not de/serialize data: unexpected EOF", e.Name)
}

func TestIsHelpers_Wrapped(t *testing.T) {
	err := fmt.Errorf("get cfr: %w", &Error{Kind: KindVerification, Name: "bad"})
	assert.True(t, IsVerificationError(err))
	assert.False(t, IsAPIError(err))
	assert.False(t, IsStorageError(errors.New("plain")))
}
