package signatures

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/settingsync/internal/ir"
)

// maxChainSize bounds the certificate chain download.
const maxChainSize = 1 << 20

// p384SignatureSize is the length of a raw r||s P-384 signature.
const p384SignatureSize = 96

// ContentSignatureVerifier verifies Mozilla content signatures.
//
// The collection metadata must carry a signature object:
//
//	{"signature": {"x5u": "https://...chain.pem", "signature": "<base64url r||s>"}}
//
// Verification steps:
//  1. Fetch the PEM chain from x5u (leaf first)
//  2. Validate the chain against the configured roots or root hash
//  3. Verify the P-384 signature over the canonical payload
type ContentSignatureVerifier struct {
	httpClient *http.Client
	roots      *x509.CertPool
	rootHash   []byte
	dnsName    string
	now        func() time.Time
	logger     *slog.Logger
}

// ContentSignatureOption configures a ContentSignatureVerifier.
type ContentSignatureOption func(*ContentSignatureVerifier)

// WithHTTPClient sets the client used to download certificate chains.
func WithHTTPClient(c *http.Client) ContentSignatureOption {
	return func(v *ContentSignatureVerifier) {
		v.httpClient = c
	}
}

// WithRoots sets the trusted root pool.
func WithRoots(pool *x509.CertPool) ContentSignatureOption {
	return func(v *ContentSignatureVerifier) {
		v.roots = pool
	}
}

// WithRootHash pins the chain's root certificate by the SHA-256 of its DER
// encoding. Use ParseRootHash to decode the usual colon-separated form.
func WithRootHash(hash []byte) ContentSignatureOption {
	return func(v *ContentSignatureVerifier) {
		v.rootHash = bytes.Clone(hash)
	}
}

// WithDNSName requires the leaf certificate to be valid for name, e.g.
// "remote-settings.content-signature.mozilla.org".
func WithDNSName(name string) ContentSignatureOption {
	return func(v *ContentSignatureVerifier) {
		v.dnsName = name
	}
}

// WithClock sets the time used to check certificate validity.
func WithClock(now func() time.Time) ContentSignatureOption {
	return func(v *ContentSignatureVerifier) {
		v.now = now
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l *slog.Logger) ContentSignatureOption {
	return func(v *ContentSignatureVerifier) {
		v.logger = l
	}
}

// NewContentSignatureVerifier creates a verifier.
//
// Without WithRoots or WithRootHash the chain's last certificate is taken
// as its own anchor, so only chain consistency, validity windows and the
// signature itself are checked.
func NewContentSignatureVerifier(opts ...ContentSignatureOption) *ContentSignatureVerifier {
	v := &ContentSignatureVerifier{
		httpClient: http.DefaultClient,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ParseRootHash decodes a SHA-256 fingerprint written as hex, with or
// without colon separators ("97:E8:BA:..." or "97e8ba...").
func ParseRootHash(s string) ([]byte, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ":", "")
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("parse root hash: %w", err)
	}
	if len(b) != sha256.Size {
		return nil, fmt.Errorf("parse root hash: got %d bytes, want %d", len(b), sha256.Size)
	}
	return b, nil
}

// Verify implements Verifier.
func (v *ContentSignatureVerifier) Verify(ctx context.Context, c *ir.Collection) error {
	sigObj, _ := c.Metadata.Object("signature")

	x5u, ok := sigObj.String("x5u")
	if !ok || x5u == "" {
		return NewVerificationError("x5u field not present in signature")
	}
	encoded, ok := sigObj.String("signature")
	if !ok || encoded == "" {
		return NewVerificationError("signature field not present in signature")
	}

	v.logger.Debug("fetching certificate chain", "x5u", x5u, "bucket", c.Bid, "collection", c.Cid)
	chain, err := v.fetchChain(ctx, x5u)
	if err != nil {
		return err
	}
	if err := v.verifyChain(chain); err != nil {
		return err
	}

	pub, ok := chain[0].PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P384() {
		return NewCertificateError("leaf certificate does not carry a P-384 key", nil)
	}

	sig, err := decodeSignature(encoded)
	if err != nil {
		return NewVerificationError(err.Error())
	}

	payload, err := SignedPayload(c)
	if err != nil {
		return NewVerificationError(fmt.Sprintf("could not serialize collection: %v", err))
	}
	digest := ir.DigestWithDomain(sha512.New384(), ir.DomainContentSignature, payload)

	r := new(big.Int).SetBytes(sig[:p384SignatureSize/2])
	s := new(big.Int).SetBytes(sig[p384SignatureSize/2:])
	if !ecdsa.Verify(pub, digest, r, s) {
		return NewInvalidSignatureError(fmt.Sprintf("signature does not match content of %s/%s at %d", c.Bid, c.Cid, c.Timestamp))
	}
	return nil
}

// SignedPayload returns the canonical bytes covered by a content signature:
// the non-deleted records sorted by id and the collection timestamp as a
// decimal string. Strings keep their exact code points: the signer hashed
// them unnormalized.
func SignedPayload(c *ir.Collection) ([]byte, error) {
	sorted := ir.SortRecordsByID(c.Records)
	data := make(ir.IRArray, 0, len(sorted))
	for _, r := range sorted {
		if r.Deleted() {
			continue
		}
		data = append(data, r.Object())
	}
	return ir.MarshalCanonicalExact(ir.IRObject{
		"data":          data,
		"last_modified": ir.IRString(strconv.FormatUint(c.Timestamp, 10)),
	})
}

func (v *ContentSignatureVerifier) fetchChain(ctx context.Context, x5u string) ([]*x509.Certificate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x5u, nil)
	if err != nil {
		return nil, NewCertificateError(fmt.Sprintf("invalid x5u URL %q", x5u), err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, NewCertificateError(fmt.Sprintf("could not fetch certificate chain from %s", x5u), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewCertificateError(fmt.Sprintf("could not fetch certificate chain from %s: status %d", x5u, resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChainSize))
	if err != nil {
		return nil, NewCertificateError("could not read certificate chain", err)
	}

	var chain []*x509.Certificate
	for block, rest := pem.Decode(body); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, NewCertificateError("could not parse certificate chain", err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, NewCertificateError("certificate chain is empty", nil)
	}
	return chain, nil
}

func (v *ContentSignatureVerifier) verifyChain(chain []*x509.Certificate) error {
	leaf := chain[0]
	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}

	roots := v.roots
	if roots == nil {
		anchor := chain[len(chain)-1]
		if v.rootHash != nil {
			sum := sha256.Sum256(anchor.Raw)
			if !bytes.Equal(sum[:], v.rootHash) {
				return NewCertificateError(fmt.Sprintf("root certificate hash mismatch: got %X", sum[:]), nil)
			}
		}
		roots = x509.NewCertPool()
		roots.AddCert(anchor)
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   v.now(),
		DNSName:       v.dnsName,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := leaf.Verify(opts); err != nil {
		var invalid x509.CertificateInvalidError
		if errors.As(err, &invalid) && invalid.Reason == x509.Expired {
			return NewCertificateError("certificate expired or not yet valid", err)
		}
		return NewCertificateError("certificate chain is not trusted", err)
	}
	return nil
}

// decodeSignature accepts base64url with or without padding and falls back
// to standard base64.
func decodeSignature(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	sig, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		sig, err = base64.RawStdEncoding.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("could not decode signature: %v", err)
		}
	}
	if len(sig) != p384SignatureSize {
		return nil, fmt.Errorf("signature has %d bytes, want %d", len(sig), p384SignatureSize)
	}
	return sig, nil
}
