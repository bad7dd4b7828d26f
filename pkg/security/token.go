package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const minCartTokenBytes = 16

// NewCartToken generates an opaque, unguessable owner token for an anonymous
// cart. The token is the only handle a client has on its cart, so it must be
// surfaced back to the caller whenever one is generated.
func NewCartToken(numBytes int) (string, error) {
	if numBytes < minCartTokenBytes {
		numBytes = minCartTokenBytes
	}
	raw := make([]byte, numBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate cart token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
