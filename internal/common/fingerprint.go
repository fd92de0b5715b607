package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint hashes the parts joined with "|" into a lowercase hex digest.
// Used for idempotency keys and anonymous impression viewers.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
