// Package token holds the fungible asset's core types: public keys,
// the mint record, and the per-mint fee schedule.
package token

import (
	"bytes"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLen is the byte length of a public key.
const PublicKeyLen = 32

// PublicKey is a 32-byte account identity.
type PublicKey [PublicKeyLen]byte

// PublicKeyFromBase58 parses a base58-encoded public key.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode public key: %w", err)
	}
	if len(decoded) != PublicKeyLen {
		return pk, fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLen, len(decoded))
	}
	copy(pk[:], decoded)
	return pk, nil
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLen {
		return pk, fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLen, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether all bytes are zero. The wire format uses the
// all-zero key to mean "no authority".
func (pk PublicKey) IsZero() bool {
	var zero PublicKey
	return pk == zero
}

// IsOnCurve reports whether the key is a valid ed25519 curve point.
// Program-derived addresses are intentionally off-curve; wallet
// addresses are on-curve.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// Less orders keys by raw byte comparison. Used wherever holder maps
// need a deterministic iteration order.
func (pk PublicKey) Less(other PublicKey) bool {
	return bytes.Compare(pk[:], other[:]) < 0
}
