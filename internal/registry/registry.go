package registry

import (
	"sync"
	"time"

	"github.com/streamspace/authgateway/internal/cryptoutil"
	"github.com/streamspace/authgateway/internal/logging"
)

// SafeSessions is the shared session table. A single multi-reader/
// single-writer lock guards both indexes; holders must never perform I/O or
// block while it is held. Lock acquisition order is always registry then
// session, never the reverse.
type SafeSessions struct {
	mu          sync.RWMutex
	byRefresh   map[string]*Session
	bySocketKey map[string]*Session
}

// New builds an empty registry.
func New() *SafeSessions {
	return &SafeSessions{
		byRefresh:   make(map[string]*Session),
		bySocketKey: make(map[string]*Session),
	}
}

// Get returns the live session for a refresh-token identity, if any.
func (r *SafeSessions) Get(refreshToken string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byRefresh[refreshToken]
	return s, ok
}

// GetBySocketKey is the secondary index lookup used by the WebSocket
// upgrade path.
func (r *SafeSessions) GetBySocketKey(hash string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.bySocketKey[hash]
	return s, ok
}

// Insert installs session as the entry for its refresh-token key. Any prior
// entry under that key is replaced and its tunnel (if it had a socket slot)
// is evicted via its signal channel.
func (r *SafeSessions) Insert(session *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.byRefresh[session.RefreshToken()]; ok {
		r.evictLocked(prior)
	}
	r.byRefresh[session.RefreshToken()] = session
	return session
}

// Update rotates the access JWT and permission set of the live session
// matching newData's refresh-token key, preserving its socket slot and
// object identity so in-flight tunnels keep observing the same session.
// newData's own (necessarily absent) socket slot is discarded. If no live
// session exists for that key, Update falls back to Insert.
func (r *SafeSessions) Update(newData *Session) *Session {
	r.mu.RLock()
	existing, ok := r.byRefresh[newData.RefreshToken()]
	r.mu.RUnlock()

	if !ok {
		return r.Insert(newData)
	}

	existing.updateInPlace(newData.AccessJWT(), newData.Permissions())
	return existing
}

// Remove deletes session from both indexes.
func (r *SafeSessions) Remove(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(session)
}

// evictLocked publishes an invalidation for a session being superseded and
// removes it from both indexes. Caller holds r.mu.
func (r *SafeSessions) evictLocked(session *Session) {
	if slot, ok := session.SocketSlot(); ok {
		slot.Signal.Publish()
	}
	r.removeLocked(session)
}

func (r *SafeSessions) removeLocked(session *Session) {
	delete(r.byRefresh, session.RefreshToken())
	if slot, ok := session.SocketSlot(); ok {
		delete(r.bySocketKey, slot.Hash)
	}
}

// EnsureSocketSlot installs a socket slot on session using the provided
// uuid/hash unless one already exists, in which case the existing slot is
// returned unchanged (the idempotence /get_websocket_key and
// /socket_keep_alive both rely on). When a slot is newly installed, the
// session is registered in the socket-key secondary index.
func (r *SafeSessions) EnsureSocketSlot(session *Session, uuid, hash string) (*SocketSlot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, created := session.ensureSocketSlot(&SocketSlot{UUID: uuid, Hash: hash, Signal: NewSignal()})
	if created {
		r.bySocketKey[slot.Hash] = session
	}
	return slot, created
}

// ArmExpiryTimer schedules the background eviction task described in §4.E:
// sleep until the session's current access_jwt would expire, then recheck.
// If by then the session is still registered, its access_jwt is still
// expired (it may have been refreshed in the meantime, in which case this
// is a no-op — the refresh path arms its own timer), and it has a socket
// slot, publish an invalidation and remove the session. Sessions without a
// socket slot are left for the periodic sweep (sweep.go) — mirroring the
// reference implementation, which only evicts through this path when a
// tunnel exists to notify.
func (r *SafeSessions) ArmExpiryTimer(session *Session) {
	log := logging.Registry()
	access := session.AccessJWT()
	// IsExpired is exp < now, so the first second in which the token counts
	// as expired is exp+1; waking at exp itself would find it still valid.
	delay := access.Payload.Expiry + 1 - cryptoutil.Now()
	if delay < 0 {
		delay = 0
	}

	go func() {
		time.Sleep(time.Duration(delay) * time.Second)

		current, stillPresent := r.Get(session.RefreshToken())
		if !stillPresent || current != session {
			return
		}
		if !current.AccessJWT().IsExpired(cryptoutil.Now()) {
			return
		}
		slot, hasSlot := current.SocketSlot()
		if !hasSlot {
			return
		}
		slot.Signal.Publish()
		r.Remove(current)
		log.Info().Str("refresh_token_suffix", suffix(current.RefreshToken())).Msg("session evicted on expiry")
	}()
}

// Len reports the number of live sessions, for metrics.
func (r *SafeSessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRefresh)
}

func suffix(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[len(s)-8:]
}
