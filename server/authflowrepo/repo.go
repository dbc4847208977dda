package authflowrepo

import "time"

// AuthFlowState is what the gateway remembers between redirecting a browser to Google
// and receiving the callback. It is keyed by the OAuth state parameter.
type AuthFlowState struct {
	// SessionID binds the flow to the browser session that started it
	SessionID    string
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

// Expired reports whether the flow was started more than ttl before now.
func (a *AuthFlowState) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(a.CreatedAt) > ttl
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
	DeleteCreatedBefore(cutoff time.Time) int
}
