// Package signatures proves that a collection is authentic.
//
// A Verifier receives a borrowed *ir.Collection and either accepts it or
// returns a *SignatureError. Two implementations ship with the package:
//
//   - DummyVerifier accepts everything. It is the default when no verifier
//     is configured.
//   - ContentSignatureVerifier checks Mozilla content signatures: it fetches
//     the certificate chain named by metadata.signature.x5u, validates the
//     chain, and verifies the ECDSA P-384 signature over the canonical
//     collection payload.
//
// Verifiers never retain the collection after Verify returns.
package signatures
