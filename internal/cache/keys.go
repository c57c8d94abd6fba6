package cache

import "fmt"

// Key prefixes for the gateway's two Redis uses.
const (
	PrefixSessionMirror = "session_mirror"
	PrefixPermissions   = "permissions_fetch"
)

// SessionMirrorKey is the key under which a session's existence/expiry is
// mirrored, keyed by refresh-token text.
func SessionMirrorKey(refreshToken string) string {
	return fmt.Sprintf("%s:%s", PrefixSessionMirror, refreshToken)
}

// PermissionsFetchKey caches a permission-service response, keyed by the
// access token text that was sent.
func PermissionsFetchKey(accessToken string) string {
	return fmt.Sprintf("%s:%s", PrefixPermissions, accessToken)
}
