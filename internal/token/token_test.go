package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret-at-all"))
	require.NoError(t, err)
	return raw
}

func TestParseExtractsPayloadWithoutVerifyingSignature(t *testing.T) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "permission-service",
		"sub": "user-42",
		"aud": "gateway",
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": "abc-123",
	}
	raw := signedToken(t, claims)

	jw, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "permission-service", jw.Payload.Issuer)
	assert.Equal(t, "user-42", jw.Payload.Subject)
	assert.Equal(t, []string{"gateway"}, jw.Payload.Audience)
	assert.Equal(t, "abc-123", jw.Payload.ID)
	assert.Equal(t, raw, jw.Raw)
	assert.False(t, jw.IsExpired(now.Unix()))
}

func TestParseRejectsWrongSegmentCount(t *testing.T) {
	_, err := Parse("only.two")
	assert.Error(t, err)

	_, err = Parse("a.b.c.d")
	assert.Error(t, err)
}

func TestParseRejectsNonJSONPayload(t *testing.T) {
	_, err := Parse("aGVsbG8.bm90anNvbg.c2ln")
	assert.Error(t, err)
}

func TestIsExpired(t *testing.T) {
	claims := jwt.MapClaims{"exp": 1000}
	raw := signedToken(t, claims)
	jw, err := Parse(raw)
	require.NoError(t, err)

	assert.True(t, jw.IsExpired(1001))
	assert.False(t, jw.IsExpired(999))
	assert.False(t, jw.IsExpired(1000)) // is_expired is exp < now, so exp == now is not yet expired
}
