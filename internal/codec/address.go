package codec

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// addressPrefix distinguishes this chain's addresses on the wire, mirroring
// the teacher's fixed-prefix address convention (core/transaction_distribution.go
// derives Ethereum-style addresses from Keccak; this repo's address scheme
// is SHA-256 based, appropriate for a Constellation-style chain, per
// spec.md §3.1 "Address derivation is a fixed function of the public key").
const addressPrefix = "DAG"

// AddressFromPubKey derives an address from an uncompressed secp256k1
// public key (64 bytes, no 0x04 prefix), by SHA-256 hashing the point and
// taking a fixed-width prefix-tagged hex suffix.
func AddressFromPubKey(pub64 [64]byte) string {
	sum := sha256.Sum256(pub64[:])
	return addressPrefix + hex.EncodeToString(sum[:20])
}

// AddressFromPrivateKey derives the address for a given private key.
func AddressFromPrivateKey(priv *secp256k1.PrivateKey) string {
	ser := priv.PubKey().SerializeUncompressed()
	var pub64 [64]byte
	copy(pub64[:], ser[1:])
	return AddressFromPubKey(pub64)
}
