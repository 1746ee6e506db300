package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/signatures"
)

// SignerDNSName is the DNS name placed in every leaf certificate.
const SignerDNSName = "remote-settings.content-signature.mozilla.org"

// Signer holds a throwaway P-384 root and leaf for content-signature tests.
//
// The chain is valid from one hour before creation until 24 hours after
// unless NotBefore/NotAfter are overridden with NewSignerValidFor.
type Signer struct {
	Root    *x509.Certificate
	Leaf    *x509.Certificate
	leafKey *ecdsa.PrivateKey

	// ChainPEM is the leaf followed by the root, as served from x5u.
	ChainPEM []byte
}

// NewSigner generates a fresh root and leaf.
func NewSigner(t testing.TB) *Signer {
	t.Helper()
	now := time.Now()
	return NewSignerValidFor(t, now.Add(-time.Hour), now.Add(24*time.Hour))
}

// NewSignerValidFor generates a root and leaf valid in [notBefore, notAfter].
func NewSignerValidFor(t testing.TB, notBefore, notAfter time.Time) *Signer {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "settingsync test root", Organization: []string{"settingsync"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	root, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: SignerDNSName},
		DNSNames:     []string{SignerDNSName},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, root, &leafKey.PublicKey, rootKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	chain := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER})
	chain = append(chain, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootDER})...)

	return &Signer{
		Root:     root,
		Leaf:     leaf,
		leafKey:  leafKey,
		ChainPEM: chain,
	}
}

// RootHash returns the SHA-256 of the root certificate's DER encoding.
func (s *Signer) RootHash() []byte {
	sum := sha256.Sum256(s.Root.Raw)
	return sum[:]
}

// RootPool returns a pool containing only the root.
func (s *Signer) RootPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(s.Root)
	return pool
}

// Signature returns the base64url r||s signature over c's payload.
func (s *Signer) Signature(t testing.TB, c *ir.Collection) string {
	t.Helper()

	payload, err := signatures.SignedPayload(c)
	require.NoError(t, err)
	return s.SignPayload(t, payload)
}

// SignPayload returns the base64url r||s signature over raw payload bytes,
// as a remote signer that never re-encodes the data would produce it.
func (s *Signer) SignPayload(t testing.TB, payload []byte) string {
	t.Helper()

	digest := ir.DigestWithDomain(sha512.New384(), ir.DomainContentSignature, payload)

	r, sv, err := ecdsa.Sign(rand.Reader, s.leafKey, digest)
	require.NoError(t, err)

	sig := make([]byte, 96)
	r.FillBytes(sig[:48])
	sv.FillBytes(sig[48:])
	return base64.RawURLEncoding.EncodeToString(sig)
}

// SignedMetadata returns collection metadata carrying a signature over c
// and the given x5u location.
func (s *Signer) SignedMetadata(t testing.TB, c *ir.Collection, x5u string) ir.IRObject {
	t.Helper()
	return ir.IRObject{
		"signature": ir.IRObject{
			"x5u":       ir.IRString(x5u),
			"signature": ir.IRString(s.Signature(t, c)),
		},
	}
}
