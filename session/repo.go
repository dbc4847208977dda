package session

import (
	"context"
	"time"
)

// Repo persists sealed session records keyed by session ID.
type Repo interface {
	// Get returns errors.ErrSessionNotFound when no record exists
	Get(ctx context.Context, sessionID string) ([]byte, error)

	// Upsert replaces the record; a zero ttl keeps it until deleted
	Upsert(ctx context.Context, sessionID string, record []byte, ttl time.Duration) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, sessionID string) error
}
