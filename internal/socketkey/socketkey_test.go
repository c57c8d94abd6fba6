package socketkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/authgateway/internal/registry"
	"github.com/streamspace/authgateway/internal/token"
)

func sessionWithPermissions(perms []string) *registry.Session {
	jwt := token.JWT{Payload: token.Payload{Expiry: 9999999999}, Raw: "raw"}
	return registry.NewSession(jwt, jwt, perms)
}

func TestIssueIsIdempotentForLiveSession(t *testing.T) {
	r := registry.New()
	s := sessionWithPermissions([]string{"reader"})
	r.Insert(s)

	key1, err := Issue(r, s, "K")
	require.NoError(t, err)

	key2, err := Issue(r, s, "K")
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
}

func TestIssueRejectsEmptyPermissions(t *testing.T) {
	r := registry.New()
	s := sessionWithPermissions(nil)
	r.Insert(s)

	_, err := Issue(r, s, "K")
	assert.Error(t, err)
}

func TestIssueKeyMatchesDigestFormula(t *testing.T) {
	r := registry.New()
	s := sessionWithPermissions([]string{"reader"})
	r.Insert(s)

	key, err := Issue(r, s, "K")
	require.NoError(t, err)

	uuid, hash, err := Validate(key, "K")
	require.NoError(t, err)
	assert.NotEmpty(t, uuid)
	assert.NotEmpty(t, hash)
}

func TestValidateRejectsTamperedKey(t *testing.T) {
	r := registry.New()
	s := sessionWithPermissions([]string{"reader"})
	r.Insert(s)
	key, err := Issue(r, s, "K")
	require.NoError(t, err)

	uuid, hash, _ := Decode(key)
	_, _, err = Validate(uuid+"x."+hash, "K")
	assert.Error(t, err)
}

func TestValidateRejectsMissingDot(t *testing.T) {
	_, _, err := Validate("nodothere", "K")
	assert.Error(t, err)
}
