package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Opaque token sizes in bytes before encoding.
const (
	// TokenSize128 is used for short-lived artifacts such as authorization codes.
	TokenSize128 = 16
	// TokenSize256 is used for long-lived artifacts such as refresh tokens.
	TokenSize256 = 32
)

// GenerateToken returns a random opaque token of the given byte length,
// encoded base64url without padding. The plaintext token is handed to the
// caller exactly once; persistent storage must keep only its fingerprint.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns the base64url SHA-256 digest of a token. Codes and
// refresh tokens are stored and looked up by fingerprint only, so a database
// leak never yields redeemable credentials.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
