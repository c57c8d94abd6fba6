// Package permclient implements the gateway's Permission Client: fetching a
// session's authorization tags from the external permission service and
// evaluating them against the configured ruleset.
package permclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/streamspace/authgateway/internal/apperr"
	"github.com/streamspace/authgateway/internal/cache"
	"github.com/streamspace/authgateway/internal/config"
	"github.com/streamspace/authgateway/internal/logging"
)

// permissionResponse is the wire shape returned by the permission service:
// {"user":{"permissions":[{effect,action,resource}, ...]}}.
type permissionResponse struct {
	User struct {
		Permissions []config.Permission `json:"permissions"`
	} `json:"user"`
}

// Client fetches and evaluates permissions for a session.
type Client struct {
	httpClient    *http.Client
	permissionURL string
	ruleset       config.Ruleset
	cache         *cache.Cache
	cacheTTL      time.Duration
}

// New builds a permission client. cache may be a disabled *cache.Cache
// (caching becomes a no-op) but must not be nil.
func New(permissionURL string, ruleset config.Ruleset, c *cache.Cache) *Client {
	return &Client{
		httpClient:    &http.Client{},
		permissionURL: permissionURL,
		ruleset:       ruleset,
		cache:         c,
		cacheTTL:      5 * time.Second,
	}
}

// CookieCredentials are the raw cookie name/value pairs forwarded to the
// permission service to authenticate the fetch.
type CookieCredentials struct {
	AccessCookieName   string
	AccessToken        string
	RefreshCookieName  string
	RefreshToken       string
}

// FetchTags calls the permission service with the session's cookies and
// evaluates the response against the configured ruleset, returning the
// granted tag names in ruleset order. timeout bounds the outbound call; per
// §5 of the contract, callers derive it from the access token's remaining
// lifetime.
func (c *Client) FetchTags(ctx context.Context, creds CookieCredentials, timeout time.Duration) ([]string, error) {
	log := logging.Permissions()

	if cached, ok := c.lookupCache(ctx, creds.AccessToken); ok {
		return c.ruleset.GrantedTags(cached), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.permissionURL, nil)
	if err != nil {
		return nil, apperr.PermissionServiceUnavailable(err)
	}
	req.Header.Set("Cookie", fmt.Sprintf("%s=%s; %s=%s",
		creds.AccessCookieName, creds.AccessToken,
		creds.RefreshCookieName, creds.RefreshToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.PermissionServiceUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.PermissionServiceUnavailable(fmt.Errorf("permission service returned status %d", resp.StatusCode))
	}

	var parsed permissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.PermissionServiceMalformed(err)
	}

	c.storeCache(ctx, creds.AccessToken, parsed.User.Permissions)

	log.Debug().Int("fetched", len(parsed.User.Permissions)).Msg("fetched permissions")
	return c.ruleset.GrantedTags(parsed.User.Permissions), nil
}

func (c *Client) lookupCache(ctx context.Context, accessToken string) ([]config.Permission, bool) {
	if c.cache == nil || !c.cache.Enabled() {
		return nil, false
	}
	var perms []config.Permission
	if err := c.cache.Get(ctx, cache.PermissionsFetchKey(accessToken), &perms); err != nil {
		return nil, false
	}
	return perms, true
}

func (c *Client) storeCache(ctx context.Context, accessToken string, perms []config.Permission) {
	if c.cache == nil || !c.cache.Enabled() {
		return
	}
	_ = c.cache.Set(ctx, cache.PermissionsFetchKey(accessToken), perms, c.cacheTTL)
}
