// Package cryptoutil provides the small set of cryptographic primitives the
// gateway needs: random identifiers, the socket-key digest, and a clock.
package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateUUID returns a uniformly random 128-bit identifier in canonical
// hyphenated hex form.
func GenerateUUID() string {
	return uuid.New().String()
}

// Digest computes the deterministic SHA-256 hex digest of
// identifier + "." + secret. The "." separator is mandatory: without it,
// digest("ab", "c") and digest("a", "bc") would collide.
func Digest(identifier, secret string) string {
	sum := sha256.Sum256([]byte(identifier + "." + secret))
	return hex.EncodeToString(sum[:])
}

// Now returns the current Unix time in seconds, panicking if the system
// clock reports a time before the epoch.
func Now() int64 {
	now := time.Now().Unix()
	if now < 0 {
		panic(fmt.Sprintf("cryptoutil: system clock returned a negative unix time: %d", now))
	}
	return now
}
