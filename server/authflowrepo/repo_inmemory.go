package authflowrepo

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/posport-gateway/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]AuthFlowState
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]AuthFlowState),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return fmt.Errorf("[AuthFlowRepo Upsert] %w: state cannot be empty", errors.ErrInvalidRequest)
	}
	if authState == nil {
		return fmt.Errorf("[AuthFlowRepo Upsert] %w: authState cannot be nil", errors.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state] = *authState
	return nil
}

// Get retrieves a copy of the auth flow state for the state parameter
func (r *InMemoryRepo) Get(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, fmt.Errorf("[AuthFlowRepo Get] %w: state cannot be empty", errors.ErrInvalidState)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, fmt.Errorf("[AuthFlowRepo Get] %w: state not found", errors.ErrInvalidState)
	}
	return &authState, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return fmt.Errorf("[AuthFlowRepo Delete] %w: state cannot be empty", errors.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

// DeleteCreatedBefore drops abandoned flows and returns how many were removed.
func (r *InMemoryRepo) DeleteCreatedBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for state, authState := range r.states {
		if authState.CreatedAt.Before(cutoff) {
			delete(r.states, state)
			removed++
		}
	}
	return removed
}
