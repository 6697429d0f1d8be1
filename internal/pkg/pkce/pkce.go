// Package pkce generates the PKCE and CSRF material for the OAuth
// authorization-code flow.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateCodeVerifier returns a high-entropy code verifier: 32 random bytes,
// base64url-encoded without padding (43 characters, per RFC 7636).
func GenerateCodeVerifier() (string, error) {
	return randomURLSafe(32)
}

// GenerateCodeChallenge derives the S256 code challenge for a verifier.
func GenerateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns a random CSRF state token.
func GenerateState() (string, error) {
	return randomURLSafe(32)
}

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("pkce: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
