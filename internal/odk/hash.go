package odk

import (
	"crypto/sha256"
	"encoding/base64"
)

// IdentityHash is the idempotency key for multi-chunk submissions: a SHA-256
// digest of the complete raw document, base64 encoded. Byte-identical bodies
// are the same logical response; any difference, whitespace included, is not.
func IdentityHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return base64.StdEncoding.EncodeToString(sum[:])
}
