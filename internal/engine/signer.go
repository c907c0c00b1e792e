package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the signature header value for an outgoing request body:
// "sha256=" + lowercase hex of HMAC-SHA256 keyed by secret. The body must be
// the exact bytes sent on the wire — receivers verify against what they
// read, not a re-serialization.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
