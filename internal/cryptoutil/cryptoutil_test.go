package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDIsUnique(t *testing.T) {
	a := GenerateUUID()
	b := GenerateUUID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestDigestDependsOnBothInputs(t *testing.T) {
	base := Digest("uuid-1", "secret")

	assert.NotEqual(t, base, Digest("uuid-2", "secret"))
	assert.NotEqual(t, base, Digest("uuid-1", "secret2"))
	assert.Equal(t, base, Digest("uuid-1", "secret"))
}

func TestDigestSeparatorPreventsExtensionAmbiguity(t *testing.T) {
	// Without the "." separator, digest("ab","c") and digest("a","bc") would
	// both hash "abc". With it, they hash "ab.c" and "a.bc" respectively.
	assert.NotEqual(t, Digest("ab", "c"), Digest("a", "bc"))
}

func TestAdminTokenRoundTrip(t *testing.T) {
	hash, err := HashAdminToken("super-secret")
	require.NoError(t, err)

	assert.True(t, VerifyAdminToken("super-secret", hash))
	assert.False(t, VerifyAdminToken("wrong", hash))
}
