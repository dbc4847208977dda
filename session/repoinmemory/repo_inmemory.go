package repoinmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/jrsteele09/posport-gateway/session"
)

var _ session.Repo = (*InMemoryRepo)(nil)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type entry struct {
	record    []byte
	expiresAt time.Time // zero: no expiry
}

// InMemoryRepo is a thread-safe in-memory implementation of session.Repo.
// Records do not survive a restart of the process.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]entry
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]entry),
	}
}

func (r *InMemoryRepo) Get(_ context.Context, sessionID string) ([]byte, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok || e.expired(NowTimeFunc()) {
		return nil, errors.ErrSessionNotFound
	}

	// Return a copy to prevent external modifications
	return append([]byte(nil), e.record...), nil
}

func (r *InMemoryRepo) Upsert(_ context.Context, sessionID string, record []byte, ttl time.Duration) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	e := entry{record: append([]byte(nil), record...)}
	if ttl > 0 {
		e.expiresAt = NowTimeFunc().Add(ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = e
	return nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// DeleteExpired drops records past their TTL and returns how many were removed.
func (r *InMemoryRepo) DeleteExpired() int {
	now := NowTimeFunc()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if e.expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored records, expired ones included.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
