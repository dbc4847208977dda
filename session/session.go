package session

import (
	"time"

	"github.com/jrsteele09/posport-gateway/users"
)

// Tokens is the credential bundle issued by the backend at login.
// ExpiresAt is derived from IssuedAt and the configured TTL, not from the backend's own expiry.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the bundle is past its expiry at the given instant.
func (t *Tokens) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// State is the session record of one browser. It is persisted as a single unit so the
// credentials and the logged-in flag can never be written separately.
//
// LoggedIn implies User and Tokens are both set.
type State struct {
	LoggedIn bool           `json:"isLoggedIn"`
	User     *users.Profile `json:"user"`
	Tokens   *Tokens        `json:"tokens"`
}

// InitialState is the logged-out state.
func InitialState() State {
	return State{}
}

// IsEmpty is true when there is nothing worth persisting.
func (s State) IsEmpty() bool {
	return !s.LoggedIn && s.User == nil && s.Tokens == nil
}

// valid checks a rehydrated record. A restored user must carry an identifier and a
// logged-in record must hold both halves of the credential state.
func (s State) valid() bool {
	if s.User != nil && s.User.ID == "" {
		return false
	}
	if s.LoggedIn && (s.User == nil || s.Tokens == nil) {
		return false
	}
	return true
}
