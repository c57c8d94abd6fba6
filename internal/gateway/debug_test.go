package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestDebugSessionsRequiresAdminTokenWhenConfigured(t *testing.T) {
	h, _ := newTestHandler(t, "http://unused", "http://unused")
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-token"), bcrypt.DefaultCost)
	require.NoError(t, err)
	h.cfg.AdminTokenHash = string(hashed)

	server := newTestServer(t, h)
	defer server.Close()

	resp, err := http.Get(server.URL + "/debug/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/debug/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer correct-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDebugSessionsDisabledWithoutConfiguredHash(t *testing.T) {
	h, _ := newTestHandler(t, "http://unused", "http://unused")
	server := newTestServer(t, h)
	defer server.Close()

	resp, err := http.Get(server.URL + "/debug/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
