package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSign(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		secret  string
	}{
		{
			name:    "basic payload",
			payload: []byte(`{"event":"issue.created","data":{"id":"123"}}`),
			secret:  "my-secret-key",
		},
		{
			name:    "empty payload",
			payload: []byte(`{}`),
			secret:  "secret",
		},
		{
			name:    "empty secret",
			payload: []byte(`{"test":true}`),
			secret:  "",
		},
		{
			name:    "unicode payload",
			payload: []byte(`{"name":"café","price":"€10"}`),
			secret:  "unicode-key-日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Sign(tt.payload, tt.secret)

			hexPart, ok := strings.CutPrefix(sig, "sha256=")
			if !ok {
				t.Fatalf("signature missing sha256= prefix: %s", sig)
			}

			// Verify it's a valid hex string
			decoded, err := hex.DecodeString(hexPart)
			if err != nil {
				t.Fatalf("signature is not valid hex: %v", err)
			}

			// HMAC-SHA256 should always produce 32 bytes (64 hex chars)
			if len(decoded) != 32 {
				t.Fatalf("expected 32 bytes, got %d", len(decoded))
			}

			// Verify against standard library
			mac := hmac.New(sha256.New, []byte(tt.secret))
			mac.Write(tt.payload)
			expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

			if sig != expected {
				t.Errorf("signature mismatch:\n  got:  %s\n  want: %s", sig, expected)
			}
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	payload := []byte(`{"event":"test"}`)
	secret := "test-secret"

	sig1 := Sign(payload, secret)
	sig2 := Sign(payload, secret)

	if sig1 != sig2 {
		t.Error("signing the same payload and secret twice should produce the same signature")
	}
}

func TestSign_DifferentSecrets(t *testing.T) {
	payload := []byte(`{"event":"test"}`)

	sig1 := Sign(payload, "secret-1")
	sig2 := Sign(payload, "secret-2")

	if sig1 == sig2 {
		t.Error("different secrets should produce different signatures")
	}
}

func TestSign_DifferentPayloads(t *testing.T) {
	secret := "my-secret"

	sig1 := Sign([]byte(`{"a":1}`), secret)
	sig2 := Sign([]byte(`{"a":2}`), secret)

	if sig1 == sig2 {
		t.Error("different payloads should produce different signatures")
	}
}
