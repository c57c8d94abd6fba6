// Package registry implements the Session Registry: a concurrency-safe
// table mapping refresh-token identity to live sessions, with a secondary
// index by socket-key hash, and the expiry-driven eviction machinery that
// rendezvous with live WebSocket tunnels through a per-session signal
// channel.
package registry

import (
	"sync"

	"github.com/streamspace/authgateway/internal/token"
)

// SocketSlot is a session's handshake artifact: the uuid/hash pair handed
// to clients, and the broadcast signal used to notify live tunnels of
// invalidation.
type SocketSlot struct {
	UUID   string
	Hash   string
	Signal *Signal
}

// Session holds one authenticated principal's state. The refresh JWT is the
// registry's primary key and never changes for the life of the object;
// access_jwt, permissions and socket_slot are mutated under the session's
// own lock. Update-in-place preserves the pointer identity that tunnels and
// the registry's secondary index depend on.
type Session struct {
	mu sync.RWMutex

	refreshJWT token.JWT

	accessJWT   token.JWT
	permissions []string
	socketSlot  *SocketSlot
}

// NewSession constructs a session with no socket slot yet.
func NewSession(refreshJWT, accessJWT token.JWT, permissions []string) *Session {
	return &Session{
		refreshJWT:  refreshJWT,
		accessJWT:   accessJWT,
		permissions: permissions,
	}
}

// RefreshToken returns the raw refresh-token text — the registry's primary
// key for this session. Immutable, safe to read without the lock.
func (s *Session) RefreshToken() string {
	return s.refreshJWT.Raw
}

// RefreshJWT returns the immutable refresh JWT.
func (s *Session) RefreshJWT() token.JWT {
	return s.refreshJWT
}

// AccessJWT returns the current access JWT.
func (s *Session) AccessJWT() token.JWT {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessJWT
}

// Permissions returns a copy of the session's granted tag set, in the order
// established by the ruleset.
func (s *Session) Permissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.permissions))
	copy(out, s.permissions)
	return out
}

// SocketSlot returns the session's socket slot, if one has been issued.
func (s *Session) SocketSlot() (*SocketSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.socketSlot, s.socketSlot != nil
}

// updateInPlace rotates access_jwt and permissions without disturbing
// socket_slot — the stable rendezvous a live tunnel depends on.
func (s *Session) updateInPlace(accessJWT token.JWT, permissions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessJWT = accessJWT
	s.permissions = permissions
}

// ensureSocketSlot installs slot iff none is present yet, returning the slot
// now in effect and whether this call is the one that installed it. Callers
// holding the registry lock call this under it to keep secondary-index
// writes consistent (lock order: registry -> session).
func (s *Session) ensureSocketSlot(slot *SocketSlot) (*SocketSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socketSlot != nil {
		return s.socketSlot, false
	}
	s.socketSlot = slot
	return slot, true
}
