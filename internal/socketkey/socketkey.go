// Package socketkey implements the Socket-Key Issuer (§4.G): minting the
// short-lived handle clients present to authorize a WebSocket upgrade
// without re-sending cookies.
package socketkey

import (
	"strings"

	"github.com/streamspace/authgateway/internal/apperr"
	"github.com/streamspace/authgateway/internal/cryptoutil"
	"github.com/streamspace/authgateway/internal/registry"
)

// Issue mints or reuses a session's socket key. If the session already has
// a socket slot, its existing (uuid, hash) pair is returned unchanged —
// /get_websocket_key and /socket_keep_alive are both idempotent reads of
// this path. Fails with Forbidden if the session's permission set is
// empty.
func Issue(r *registry.SafeSessions, session *registry.Session, socketSecret string) (string, error) {
	if len(session.Permissions()) == 0 {
		return "", apperr.Forbidden("session has no granted permissions")
	}

	uuid := cryptoutil.GenerateUUID()
	hash := cryptoutil.Digest(uuid, socketSecret)

	slot, _ := r.EnsureSocketSlot(session, uuid, hash)
	return Encode(slot.UUID, slot.Hash), nil
}

// Encode joins a uuid/hash pair into the wire form clients present in the
// websocket_key query parameter.
func Encode(uuid, hash string) string {
	return uuid + "." + hash
}

// Decode splits the wire form back into its uuid and hash halves.
func Decode(key string) (uuid, hash string, ok bool) {
	uuid, hash, found := strings.Cut(key, ".")
	if !found || uuid == "" || hash == "" {
		return "", "", false
	}
	return uuid, hash, true
}

// Validate checks that key decodes and that its hash half matches
// digest(uuid, socketSecret).
func Validate(key, socketSecret string) (uuid, hash string, err error) {
	uuid, hash, ok := Decode(key)
	if !ok {
		return "", "", apperr.InvalidSocketKey("socket key is missing or malformed")
	}
	if cryptoutil.Digest(uuid, socketSecret) != hash {
		return "", "", apperr.InvalidSocketKey("socket key hash does not match")
	}
	return uuid, hash, nil
}
