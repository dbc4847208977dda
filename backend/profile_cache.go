package backend

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/posport-gateway/events"
	"github.com/jrsteele09/posport-gateway/users"
)

// DefaultProfileTTL bounds how long a cached profile is served without a session event.
const DefaultProfileTTL = time.Minute

type profileFetcher interface {
	Me(ctx context.Context, accessToken string) (*users.Profile, error)
}

type cachedProfile struct {
	profile   users.Profile
	fetchedAt time.Time
}

// ProfileCache caches GET /auth/me per browser session. Entries are dropped whenever
// the session record changes or is cleared, so a logout never serves the previous
// user's profile.
type ProfileCache struct {
	fetcher profileFetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedProfile

	unsubscribe []func()
}

func NewProfileCache(fetcher profileFetcher, bus *events.Bus, ttl time.Duration) *ProfileCache {
	c := &ProfileCache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedProfile),
	}
	if bus != nil {
		invalidate := func(e events.Event) { c.Invalidate(e.SessionID) }
		c.unsubscribe = append(c.unsubscribe,
			bus.Subscribe(events.TopicSessionChanged, invalidate),
			bus.Subscribe(events.TopicSessionCleared, invalidate),
		)
	}
	return c
}

// Me returns the profile for sessionID, fetching it with accessToken on a miss.
// Failed fetches are not cached and a stale entry is dropped before refetching.
func (c *ProfileCache) Me(ctx context.Context, sessionID, accessToken string) (*users.Profile, error) {
	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if ok {
		if !c.stale(entry, c.now()) {
			p := entry.profile
			return &p, nil
		}
		c.Invalidate(sessionID)
	}

	profile, err := c.fetcher.Me(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[sessionID] = cachedProfile{profile: *profile, fetchedAt: c.now()}
	c.mu.Unlock()
	return profile, nil
}

func (c *ProfileCache) Invalidate(sessionID string) {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
}

// DeleteExpired drops entries older than the TTL and returns how many were removed.
func (c *ProfileCache) DeleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for sid, entry := range c.entries {
		if c.stale(entry, now) {
			delete(c.entries, sid)
			removed++
		}
	}
	return removed
}

func (c *ProfileCache) stale(entry cachedProfile, now time.Time) bool {
	return now.Sub(entry.fetchedAt) >= c.ttl
}

func (c *ProfileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close detaches the cache from the event bus.
func (c *ProfileCache) Close() {
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil
}
