package registry

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/streamspace/authgateway/internal/cache"
	"github.com/streamspace/authgateway/internal/cryptoutil"
	"github.com/streamspace/authgateway/internal/logging"
)

// Sweeper periodically scans the registry for sessions whose per-session
// expiry timer never fired an eviction — chiefly sessions with no socket
// slot, which ArmExpiryTimer deliberately leaves alone (see its doc
// comment), and any session whose timer goroutine was lost to a process
// restart mid-flight. It is belt-and-suspenders: the per-session timer and
// the tunnel's own per-frame expiry check remain the fast, authoritative
// paths.
type Sweeper struct {
	registry *SafeSessions
	mirror   *cache.Cache
	cron     *cron.Cron
}

// NewSweeper builds a sweeper that runs every interval. mirror may be a
// disabled cache; when enabled, evicted sessions also have their mirror
// entry cleared.
func NewSweeper(registry *SafeSessions, mirror *cache.Cache, interval time.Duration) *Sweeper {
	c := cron.New()
	s := &Sweeper{registry: registry, mirror: mirror, cron: c}
	spec := "@every " + interval.String()
	_, _ = c.AddFunc(spec, s.run)
	return s
}

// Start begins the cron schedule. Stop via Sweeper.Stop.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight run to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	log := logging.Registry()
	now := cryptoutil.Now()
	var evictedRefreshTokens []string

	s.registry.mu.Lock()
	for key, session := range s.registry.byRefresh {
		if !session.AccessJWT().IsExpired(now) {
			continue
		}
		s.registry.evictLocked(session)
		evictedRefreshTokens = append(evictedRefreshTokens, key)
	}
	s.registry.mu.Unlock()

	if len(evictedRefreshTokens) == 0 {
		return
	}
	log.Info().Int("evicted", len(evictedRefreshTokens)).Msg("sweep evicted expired sessions")

	if s.mirror == nil || !s.mirror.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	keys := make([]string, len(evictedRefreshTokens))
	for i, rt := range evictedRefreshTokens {
		keys[i] = cache.SessionMirrorKey(rt)
	}
	if err := s.mirror.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Msg("failed to clear session mirror entries after sweep")
	}
}
