// Package gateway implements the Request Router (§4.F): the single dispatch
// point every inbound request passes through, resolving the caller's session
// and handing off to the socket-key issuer, the WebSocket tunnel, or the
// generic forwarder.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/streamspace/authgateway/internal/apperr"
	"github.com/streamspace/authgateway/internal/cache"
	"github.com/streamspace/authgateway/internal/config"
	"github.com/streamspace/authgateway/internal/cookie"
	"github.com/streamspace/authgateway/internal/cryptoutil"
	"github.com/streamspace/authgateway/internal/forwarder"
	"github.com/streamspace/authgateway/internal/logging"
	"github.com/streamspace/authgateway/internal/metrics"
	"github.com/streamspace/authgateway/internal/middleware"
	"github.com/streamspace/authgateway/internal/permclient"
	"github.com/streamspace/authgateway/internal/registry"
	"github.com/streamspace/authgateway/internal/socketkey"
	"github.com/streamspace/authgateway/internal/token"
	"github.com/streamspace/authgateway/internal/tunnel"
)

const (
	pathGetWebsocketKey = "/get_websocket_key"
	pathSocketKeepAlive = "/socket_keep_alive"

	minFetchTimeout = time.Second
	maxFetchTimeout = 10 * time.Second
)

// Handler wires the registry and the downstream clients into the single
// dispatch path described by §4.F.
type Handler struct {
	cfg        *config.Config
	registry   *registry.SafeSessions
	permClient *permclient.Client
	forwarder  *forwarder.Forwarder
	sidecarWS  string
	metrics    *metrics.Collector
	mirror     *cache.Cache
}

// SetMetrics attaches a Prometheus collector. A Handler with no collector
// attached reports nothing; every metrics call in this package is a
// nil-receiver no-op.
func (h *Handler) SetMetrics(c *metrics.Collector) {
	h.metrics = c
}

// SetMirror attaches the Redis session mirror. A Handler with none attached
// (or one built with Config.Enabled false) simply never writes one.
func (h *Handler) SetMirror(m *cache.Cache) {
	h.mirror = m
}

// New builds the request router.
func New(cfg *config.Config, reg *registry.SafeSessions, permClient *permclient.Client, fwd *forwarder.Forwarder) *Handler {
	return &Handler{
		cfg:        cfg,
		registry:   reg,
		permClient: permClient,
		forwarder:  fwd,
		sidecarWS:  toWebSocketURL(cfg.SidecarURL),
	}
}

// Register installs the catch-all dispatch handler for every request the
// engine receives, plus the one concrete route the gateway answers itself:
// the admin debug endpoint. Every other path and method is a candidate for
// forwarding to the sidecar.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/debug/sessions", middleware.Gzip(middleware.DefaultCompression), h.debugSessions)
	r.NoRoute(h.Dispatch)
}

// Dispatch implements §4.F's per-request algorithm: extract and decode
// cookies, resolve the session, then hand off to the tunnel, the socket-key
// issuer, or the generic forwarder.
func (h *Handler) Dispatch(c *gin.Context) {
	log := logging.Gateway()

	accessRaw, err := cookie.Get(c.Request, h.cfg.AccessTokenCookieName)
	if err != nil {
		apperr.AbortWithError(c, err.(*apperr.GatewayError))
		return
	}
	refreshRaw, err := cookie.Get(c.Request, h.cfg.RefreshTokenCookieName)
	if err != nil {
		apperr.AbortWithError(c, err.(*apperr.GatewayError))
		return
	}

	accessJWT, err := token.Parse(accessRaw)
	if err != nil {
		apperr.AbortWithError(c, err.(*apperr.GatewayError))
		return
	}
	refreshJWT, err := token.Parse(refreshRaw)
	if err != nil {
		apperr.AbortWithError(c, err.(*apperr.GatewayError))
		return
	}

	now := cryptoutil.Now()
	if refreshJWT.IsExpired(now) {
		apperr.AbortWithError(c, apperr.TokenExpired())
		return
	}

	session, err := h.resolveSession(c, refreshJWT, accessJWT, now)
	if err != nil {
		apperr.AbortWithError(c, err.(*apperr.GatewayError))
		return
	}

	switch {
	case websocket.IsWebSocketUpgrade(c.Request):
		h.dispatchTunnel(c)
	case c.Request.Method == http.MethodGet && (c.Request.URL.Path == pathGetWebsocketKey || c.Request.URL.Path == pathSocketKeepAlive):
		h.dispatchSocketKey(c, session)
	default:
		h.dispatchForward(c, session, log)
	}
}

// resolveSession implements §4.F.2: reuse a live session whose access_jwt
// has not expired, refresh one whose access_jwt has, or fetch permissions
// and insert a new one.
func (h *Handler) resolveSession(c *gin.Context, refreshJWT, accessJWT token.JWT, now int64) (*registry.Session, error) {
	existing, ok := h.registry.Get(refreshJWT.Raw)
	if ok && !existing.AccessJWT().IsExpired(now) {
		return existing, nil
	}

	if accessJWT.IsExpired(now) {
		return nil, apperr.TokenExpired()
	}

	fetchStart := time.Now()
	tags, err := h.permClient.FetchTags(c.Request.Context(), permclient.CookieCredentials{
		AccessCookieName:  h.cfg.AccessTokenCookieName,
		AccessToken:       accessJWT.Raw,
		RefreshCookieName: h.cfg.RefreshTokenCookieName,
		RefreshToken:      refreshJWT.Raw,
	}, fetchTimeout(accessJWT, now))
	if err != nil {
		h.metrics.ObservePermissionFetch(time.Since(fetchStart), "error")
		return nil, err
	}
	h.metrics.ObservePermissionFetch(time.Since(fetchStart), "ok")

	fresh := registry.NewSession(refreshJWT, accessJWT, tags)

	var session *registry.Session
	if ok {
		session = h.registry.Update(fresh)
	} else {
		session = h.registry.Insert(fresh)
	}
	h.registry.ArmExpiryTimer(session)
	h.mirrorSession(refreshJWT, now)
	return session, nil
}

// mirrorSession writes a best-effort existence marker for the session into
// the Redis mirror, TTLed to the refresh token's own remaining lifetime.
// Failures are logged and otherwise ignored: the in-memory registry remains
// authoritative (§4.E), so a missed mirror write degrades observability, not
// correctness.
func (h *Handler) mirrorSession(refreshJWT token.JWT, now int64) {
	if h.mirror == nil || !h.mirror.Enabled() {
		return
	}
	ttl := time.Duration(refreshJWT.Payload.Expiry-now) * time.Second
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.mirror.Set(ctx, cache.SessionMirrorKey(refreshJWT.Raw), true, ttl); err != nil {
		logging.Registry().Warn().Err(err).Msg("failed to write session mirror entry")
	}
}

func (h *Handler) dispatchTunnel(c *gin.Context) {
	key := c.Request.URL.Query().Get("websocket_key")
	_, hash, err := socketkey.Validate(key, h.cfg.SocketEncryptionKey)
	if err != nil {
		_ = tunnel.RejectWithError(c.Writer, c.Request, err.Error())
		return
	}

	session, ok := h.registry.GetBySocketKey(hash)
	if !ok {
		_ = tunnel.RejectWithError(c.Writer, c.Request, "socket key does not match a live session")
		return
	}

	h.metrics.TunnelOpened()
	defer h.metrics.TunnelClosed()

	if err := tunnel.Serve(c.Writer, c.Request, h.sidecarWS, session); err != nil {
		logging.Gateway().Warn().Err(err).Msg("tunnel ended with error")
	}
}

func (h *Handler) dispatchSocketKey(c *gin.Context, session *registry.Session) {
	key, err := socketkey.Issue(h.registry, session, h.cfg.SocketEncryptionKey)
	if err != nil {
		apperr.AbortWithError(c, err.(*apperr.GatewayError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"websocket_key": key})
}

func (h *Handler) dispatchForward(c *gin.Context, session *registry.Session, log *zerolog.Logger) {
	if err := h.forwarder.Forward(c.Writer, c.Request, session.Permissions()); err != nil {
		gatewayErr := err.(*apperr.GatewayError)
		log.Warn().Err(gatewayErr).Msg("forwarding failed")
		apperr.AbortWithError(c, gatewayErr)
	}
}

// fetchTimeout derives a sanity-bound deadline for the permission-service
// call from the access token's remaining lifetime, per §5's "transport-level
// deadline derived from the access-token remaining lifetime".
func fetchTimeout(accessJWT token.JWT, now int64) time.Duration {
	remaining := time.Duration(accessJWT.Payload.Expiry-now) * time.Second
	if remaining < minFetchTimeout {
		return minFetchTimeout
	}
	if remaining > maxFetchTimeout {
		return maxFetchTimeout
	}
	return remaining
}

// toWebSocketURL rewrites an http(s) sidecar URL to its ws(s) equivalent. A
// URL already using a ws(s) scheme, or one with no scheme at all, passes
// through with only the http(s)->ws(s) substitution applied.
func toWebSocketURL(sidecarURL string) string {
	switch {
	case strings.HasPrefix(sidecarURL, "https://"):
		return "wss://" + strings.TrimPrefix(sidecarURL, "https://")
	case strings.HasPrefix(sidecarURL, "http://"):
		return "ws://" + strings.TrimPrefix(sidecarURL, "http://")
	default:
		return sidecarURL
	}
}
