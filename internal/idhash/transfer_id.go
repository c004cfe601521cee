package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTransferID computes a deterministic transfer_id using SHA256.
// Formula: SHA256(mint|source|destination|amount|timestamp)
// Returns hex-encoded hash (64 characters).
func ComputeTransferID(
	mint string,
	source string,
	destination string,
	amount uint64,
	timestamp int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		mint,
		source,
		destination,
		amount,
		timestamp,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
