package cryptoutil

import (
	"golang.org/x/crypto/bcrypt"
)

// HashAdminToken bcrypt-hashes the admin token configured for the debug
// introspection endpoint. Unlike the socket-key digest, which must be fast
// and deterministic for millions of per-request lookups, the admin token is
// checked rarely and benefits from bcrypt's deliberate slowness.
func HashAdminToken(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyAdminToken checks a presented token against the configured hash.
func VerifyAdminToken(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
