package artifact

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// ContentHash returns the integrity digest of a blob: the first 16 hex
// characters of its SHA-256. It is a pure function of the bytes, used for
// dedup and tamper checks, not cryptographic security.
func ContentHash(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])[:HashLength]
}
