package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/authgateway/internal/cache"
	"github.com/streamspace/authgateway/internal/config"
	"github.com/streamspace/authgateway/internal/forwarder"
	"github.com/streamspace/authgateway/internal/permclient"
	"github.com/streamspace/authgateway/internal/registry"
	"github.com/streamspace/authgateway/internal/socketkey"
	"github.com/streamspace/authgateway/internal/token"
)

func mustParseForTest(t *testing.T, raw string) token.JWT {
	t.Helper()
	jw, err := token.Parse(raw)
	require.NoError(t, err)
	return jw
}

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": expiry.Unix(),
	}).SignedString([]byte("any-secret-at-all"))
	require.NoError(t, err)
	return raw
}

func newTestHandler(t *testing.T, permissionServerURL, sidecarURL string) (*Handler, *registry.SafeSessions) {
	t.Helper()
	cfg := &config.Config{
		PermissionURL:          permissionServerURL,
		SidecarURL:             sidecarURL,
		SocketEncryptionKey:    "test-socket-secret",
		AccessTokenCookieName:  "access_token",
		RefreshTokenCookieName: "refresh_token",
		Permissions: config.Ruleset{
			{Tag: "reader", Groups: []config.ConjunctiveGroup{{{Effect: "allow", Action: "read", Resource: "docs"}}}},
		},
	}

	noCache, err := cache.New(cache.Config{Enabled: false})
	require.NoError(t, err)

	reg := registry.New()
	permClient := permclient.New(cfg.PermissionURL, cfg.Permissions, noCache)
	sidecarParsed, err := url.Parse(sidecarURL)
	require.NoError(t, err)
	fwd := forwarder.New(sidecarParsed)

	return New(cfg, reg, permClient, fwd), reg
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	return httptest.NewServer(r)
}

func attachAuthCookies(req *http.Request, access, refresh string) {
	req.AddCookie(&http.Cookie{Name: "access_token", Value: access})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})
}

func TestDispatchMissingCookieReturnsUnauthorized(t *testing.T) {
	h, _ := newTestHandler(t, "http://unused", "http://unused")
	server := newTestServer(t, h)
	defer server.Close()

	resp, err := http.Get(server.URL + "/anything")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDispatchForwardsOnNewSession(t *testing.T) {
	permissionServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"permissions": []map[string]string{{"effect": "allow", "action": "read", "resource": "docs"}},
			},
		})
	}))
	defer permissionServer.Close()

	var receivedQuery string
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.RawQuery
		w.Write([]byte("ok"))
	}))
	defer sidecar.Close()

	h, reg := newTestHandler(t, permissionServer.URL, sidecar.URL)
	server := newTestServer(t, h)
	defer server.Close()

	now := time.Now()
	access := signedToken(t, now.Add(time.Hour))
	refresh := signedToken(t, now.Add(24*time.Hour))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/items", nil)
	require.NoError(t, err)
	attachAuthCookies(req, access, refresh)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "permissions=reader", receivedQuery)
	assert.Equal(t, 1, reg.Len())
}

func TestDispatchExpiredRefreshTokenReturnsUnauthorized(t *testing.T) {
	h, _ := newTestHandler(t, "http://unused", "http://unused")
	server := newTestServer(t, h)
	defer server.Close()

	now := time.Now()
	access := signedToken(t, now.Add(time.Hour))
	refresh := signedToken(t, now.Add(-time.Hour))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/anything", nil)
	require.NoError(t, err)
	attachAuthCookies(req, access, refresh)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDispatchExpiredAccessTokenWithNoExistingSessionReturnsUnauthorized(t *testing.T) {
	permissionServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"permissions": []map[string]string{{"effect": "allow", "action": "read", "resource": "docs"}},
			},
		})
	}))
	defer permissionServer.Close()

	h, reg := newTestHandler(t, permissionServer.URL, "http://unused")
	server := newTestServer(t, h)
	defer server.Close()

	now := time.Now()
	access := signedToken(t, now.Add(-time.Minute))
	refresh := signedToken(t, now.Add(24*time.Hour))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/anything", nil)
	require.NoError(t, err)
	attachAuthCookies(req, access, refresh)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, reg.Len())
}

func TestDispatchGetWebsocketKeyIssuesKey(t *testing.T) {
	permissionServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"permissions": []map[string]string{{"effect": "allow", "action": "read", "resource": "docs"}},
			},
		})
	}))
	defer permissionServer.Close()

	h, _ := newTestHandler(t, permissionServer.URL, "http://unused")
	server := newTestServer(t, h)
	defer server.Close()

	now := time.Now()
	access := signedToken(t, now.Add(time.Hour))
	refresh := signedToken(t, now.Add(24*time.Hour))

	req, err := http.NewRequest(http.MethodGet, server.URL+pathGetWebsocketKey, nil)
	require.NoError(t, err)
	attachAuthCookies(req, access, refresh)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	key, ok := body["websocket_key"]
	require.True(t, ok)

	_, _, err = socketkey.Validate(key, "test-socket-secret")
	assert.NoError(t, err)
}

func TestDispatchUpgradesToTunnelOnValidSocketKey(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Upgrader{}.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		mt, data, err := conn.ReadMessage()
		require.NoError(t, err)
		_ = conn.WriteMessage(mt, append([]byte("echo:"), data...))
	}))
	defer sidecar.Close()

	h, reg := newTestHandler(t, "http://unused", sidecar.URL)
	server := newTestServer(t, h)
	defer server.Close()

	now := time.Now()
	access := signedToken(t, now.Add(time.Hour))
	refresh := signedToken(t, now.Add(24*time.Hour))

	sess := registry.NewSession(
		mustParseForTest(t, refresh),
		mustParseForTest(t, access),
		[]string{"reader"},
	)
	reg.Insert(sess)
	key, err := socketkey.Issue(reg, sess, "test-socket-secret")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/tunnel?websocket_key=" + key
	header := http.Header{}
	header.Add("Cookie", "access_token="+access+"; refresh_token="+refresh)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", string(data))
}
