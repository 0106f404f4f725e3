// Package model declares the plain data entities shared across the bridge
// engine, the orchestrator and the indexer: key material, fibers,
// snapshots, rejections, agents, contracts and markets. This package holds
// only data structures and their invariants (no network or storage code),
// mirroring the teacher's own common_structs.go discipline of separating
// shared types from the packages that operate on them.
package model

import "fmt"

// KeyPair is a secp256k1 private/public key plus its derived address.
// PrivateKey is a 32-byte scalar, PublicKey is the 64-byte uncompressed
// point (X||Y, no 0x04 prefix retained in storage — see internal/codec for
// wire encoding which re-adds it where a prefix is required).
type KeyPair struct {
	PrivateKey [32]byte
	PublicKey  [64]byte
	Address    string
}

// SignatureProof is a single (public-key id, signature) pair attached to a
// signed message. ID is the public key hex without the leading "04" prefix
// byte; Signature is DER-encoded and low-S normalized.
type SignatureProof struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
}

// Signed wraps a value with the set of proofs attesting to it. A submitted
// transaction must carry at least one proof.
type Signed[T any] struct {
	Value  T                `json:"value"`
	Proofs []SignatureProof `json:"proofs"`
}

// Valid reports whether the envelope carries at least one proof, the
// minimum structural invariant spec.md §3.1 requires before submission.
func (s Signed[T]) Valid() bool {
	return len(s.Proofs) > 0
}

func (k KeyPair) String() string {
	return fmt.Sprintf("KeyPair{address=%s}", k.Address)
}
