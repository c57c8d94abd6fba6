package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/authgateway/internal/token"
)

func jwtExpiringAt(raw string, exp int64) token.JWT {
	return token.JWT{Payload: token.Payload{Expiry: exp}, Raw: raw}
}

func TestInsertAndGet(t *testing.T) {
	r := New()
	s := NewSession(jwtExpiringAt("refresh-1", 9999999999), jwtExpiringAt("access-1", 9999999999), []string{"reader"})

	r.Insert(s)

	got, ok := r.Get("refresh-1")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestInsertReplacesPriorAndEvictsItsTunnel(t *testing.T) {
	r := New()
	prior := NewSession(jwtExpiringAt("refresh-1", 9999999999), jwtExpiringAt("access-old", 9999999999), []string{"reader"})
	r.Insert(prior)
	_, _ = r.EnsureSocketSlot(prior, "uuid-1", "hash-1")

	id, ch := prior.socketSlot.Signal.Subscribe()
	defer prior.socketSlot.Signal.Unsubscribe(id)

	next := NewSession(jwtExpiringAt("refresh-1", 9999999999), jwtExpiringAt("access-new", 9999999999), []string{"reader", "writer"})
	r.Insert(next)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected invalidation signal on replaced session")
	}

	got, ok := r.Get("refresh-1")
	require.True(t, ok)
	assert.Same(t, next, got)

	_, stillIndexed := r.GetBySocketKey("hash-1")
	assert.False(t, stillIndexed)
}

func TestUpdatePreservesSocketSlotAndIdentity(t *testing.T) {
	r := New()
	s := NewSession(jwtExpiringAt("refresh-1", 100), jwtExpiringAt("access-old", 100), []string{"reader"})
	r.Insert(s)
	slot, _ := r.EnsureSocketSlot(s, "uuid-1", "hash-1")

	transient := NewSession(jwtExpiringAt("refresh-1", 100), jwtExpiringAt("access-new", 200), []string{"reader", "writer"})
	updated := r.Update(transient)

	assert.Same(t, s, updated, "update must mutate in place, preserving the pointer tunnels hold")
	gotSlot, ok := updated.SocketSlot()
	require.True(t, ok)
	assert.Same(t, slot, gotSlot)
	assert.Equal(t, []string{"reader", "writer"}, updated.Permissions())
	assert.Equal(t, int64(200), updated.AccessJWT().Payload.Expiry)
}

func TestEnsureSocketSlotIsIdempotent(t *testing.T) {
	r := New()
	s := NewSession(jwtExpiringAt("refresh-1", 9999999999), jwtExpiringAt("access-1", 9999999999), []string{"reader"})
	r.Insert(s)

	slot1, created1 := r.EnsureSocketSlot(s, "uuid-1", "hash-1")
	slot2, created2 := r.EnsureSocketSlot(s, "uuid-2", "hash-2")

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Same(t, slot1, slot2)
	assert.Equal(t, "uuid-1", slot2.UUID)
}

func TestArmExpiryTimerEvictsOnlyWhenSocketSlotExists(t *testing.T) {
	r := New()
	now := time.Now().Unix()

	withSlot := NewSession(jwtExpiringAt("refresh-a", now), jwtExpiringAt("access-a", now), []string{"reader"})
	r.Insert(withSlot)
	r.EnsureSocketSlot(withSlot, "uuid-a", "hash-a")

	withoutSlot := NewSession(jwtExpiringAt("refresh-b", now), jwtExpiringAt("access-b", now), []string{"reader"})
	r.Insert(withoutSlot)

	r.ArmExpiryTimer(withSlot)
	r.ArmExpiryTimer(withoutSlot)

	require.Eventually(t, func() bool {
		_, ok := r.Get("refresh-a")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	_, stillThere := r.Get("refresh-b")
	assert.True(t, stillThere, "sessions without a socket slot are left for the sweep, not the per-session timer")
}

func TestRemove(t *testing.T) {
	r := New()
	s := NewSession(jwtExpiringAt("refresh-1", 9999999999), jwtExpiringAt("access-1", 9999999999), []string{"reader"})
	r.Insert(s)
	r.EnsureSocketSlot(s, "uuid-1", "hash-1")

	r.Remove(s)

	_, ok := r.Get("refresh-1")
	assert.False(t, ok)
	_, ok = r.GetBySocketKey("hash-1")
	assert.False(t, ok)
}
