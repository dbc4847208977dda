package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/posport-gateway/events"
	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/jrsteele09/posport-gateway/users"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store owns the credential and session state of every browser session.
// Each session is one record with one write path: the token operations
// (SetTokens, AccessToken, ClearTokens, ...) and the session operations
// (Login, Logout, UpdateUser, ...) read and write the same record.
//
// Storage faults never reach callers of the read operations: they are logged
// and the session is treated as absent.
type Store struct {
	repo      Repo
	sealer    *Sealer
	tokenTTL  time.Duration
	recordTTL time.Duration
	publisher events.Publisher
}

// NewStore creates a store over repo. sealer and publisher may be nil.
func NewStore(repo Repo, sealer *Sealer, cfg config.SessionConfig, publisher events.Publisher) *Store {
	return &Store{
		repo:      repo,
		sealer:    sealer,
		tokenTTL:  cfg.GetTokenTTL(),
		recordTTL: cfg.GetSessionMaxAge(),
		publisher: publisher,
	}
}

// IssueTokens builds a bundle issued now and expiring after the configured TTL.
func (s *Store) IssueTokens(access, refresh string) *Tokens {
	now := NowTimeFunc()
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.tokenTTL),
	}
}

// IsExpired is true for a missing bundle or one past its expiry.
func (s *Store) IsExpired(t *Tokens) bool {
	return t == nil || t.Expired(NowTimeFunc())
}

// SetTokens stores a fresh bundle for access/refresh, replacing any previous one in a single write.
// When the current record cannot be read nothing is written.
func (s *Store) SetTokens(ctx context.Context, sessionID, access, refresh string) {
	if err := s.SetTokenBundle(ctx, sessionID, s.IssueTokens(access, refresh)); err != nil {
		log.Err(err).Str("session", shortID(sessionID)).Msg("failed to store tokens")
	}
}

// AccessToken returns the stored access token unless it has expired. It never modifies the record.
func (s *Store) AccessToken(ctx context.Context, sessionID string) (string, bool) {
	st := s.peek(ctx, sessionID)
	if s.IsExpired(st.Tokens) {
		return "", false
	}
	return st.Tokens.AccessToken, true
}

// RefreshToken returns the stored refresh token. No expiry applies to it.
func (s *Store) RefreshToken(ctx context.Context, sessionID string) (string, bool) {
	st := s.peek(ctx, sessionID)
	if st.Tokens == nil || st.Tokens.RefreshToken == "" {
		return "", false
	}
	return st.Tokens.RefreshToken, true
}

// ClearIfExpired removes the whole record when its token bundle has expired and
// reports whether it did so.
func (s *Store) ClearIfExpired(ctx context.Context, sessionID string) bool {
	st := s.peek(ctx, sessionID)
	if st.Tokens == nil || !s.IsExpired(st.Tokens) {
		return false
	}
	s.ClearTokens(ctx, sessionID)
	return true
}

// ClearTokens removes the token bundle and the user profile together. It is idempotent.
func (s *Store) ClearTokens(ctx context.Context, sessionID string) {
	if err := s.clear(ctx, sessionID); err != nil {
		log.Err(err).Str("session", shortID(sessionID)).Msg("failed to clear session")
	}
}

// SetUserData stores the profile regardless of the state of the tokens.
func (s *Store) SetUserData(ctx context.Context, sessionID string, profile users.Profile) {
	if err := s.SetUser(ctx, sessionID, &profile); err != nil {
		log.Err(err).Str("session", shortID(sessionID)).Msg("failed to store user data")
	}
}

// UserData returns the stored profile or nil.
func (s *Store) UserData(ctx context.Context, sessionID string) *users.Profile {
	return s.peek(ctx, sessionID).User
}

// State rehydrates the session record. A record that fails validation (a user without
// an identifier, or a logged-in record missing user or tokens) or cannot be read is
// removed and the logged-out state returned.
func (s *Store) State(ctx context.Context, sessionID string) State {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		log.Err(err).Str("session", shortID(sessionID)).Msg("failed to restore session, treating as logged out")
		s.ClearTokens(ctx, sessionID)
		return InitialState()
	}
	if !st.valid() {
		log.Warn().Str("session", shortID(sessionID)).Msg("discarding invalid session record")
		s.ClearTokens(ctx, sessionID)
		return InitialState()
	}
	return st
}

// Login marks the session as logged in with user and tokens stored as given.
func (s *Store) Login(ctx context.Context, sessionID string, user *users.Profile, tokens *Tokens) error {
	if user == nil || tokens == nil {
		return errors.ErrIncompleteLogin
	}
	return s.save(ctx, sessionID, State{LoggedIn: true, User: user, Tokens: tokens})
}

// Logout resets the session to its initial state.
func (s *Store) Logout(ctx context.Context, sessionID string) error {
	return s.clear(ctx, sessionID)
}

// SetUser replaces the profile without validating it against the current state.
// A record that cannot be read is left untouched and the read error returned.
func (s *Store) SetUser(ctx context.Context, sessionID string, user *users.Profile) error {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	st.User = user
	return s.save(ctx, sessionID, st)
}

// SetTokenBundle replaces the token bundle as given.
// A record that cannot be read is left untouched and the read error returned.
func (s *Store) SetTokenBundle(ctx context.Context, sessionID string, tokens *Tokens) error {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	st.Tokens = tokens
	return s.save(ctx, sessionID, st)
}

// UpdateUser merges update into the current user. Without a current user it does nothing.
func (s *Store) UpdateUser(ctx context.Context, sessionID string, update users.ProfileUpdate) error {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if st.User == nil {
		return nil
	}
	merged := st.User.Apply(update)
	st.User = &merged
	return s.save(ctx, sessionID, st)
}

// peek reads the record without validating or repairing it.
func (s *Store) peek(ctx context.Context, sessionID string) State {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		log.Err(err).Str("session", shortID(sessionID)).Msg("failed to read session")
		return InitialState()
	}
	return st
}

func (s *Store) load(ctx context.Context, sessionID string) (State, error) {
	if sessionID == "" {
		return InitialState(), nil
	}
	record, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return InitialState(), nil
	}
	if err != nil {
		return InitialState(), fmt.Errorf("[Store load] %w", err)
	}
	if s.sealer != nil {
		if record, err = s.sealer.Open(record); err != nil {
			return InitialState(), fmt.Errorf("[Store load] %w: %w", errors.ErrCorruptSession, err)
		}
	}
	var st State
	if err := json.Unmarshal(record, &st); err != nil {
		return InitialState(), fmt.Errorf("[Store load] %w: %w", errors.ErrCorruptSession, err)
	}
	return st, nil
}

func (s *Store) save(ctx context.Context, sessionID string, st State) error {
	if sessionID == "" {
		return fmt.Errorf("[Store save] %w: empty session id", errors.ErrInvalidRequest)
	}
	if st.IsEmpty() {
		return s.clear(ctx, sessionID)
	}
	record, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("[Store save] failed to encode session: %w", err)
	}
	if s.sealer != nil {
		if record, err = s.sealer.Seal(record); err != nil {
			return fmt.Errorf("[Store save] %w", err)
		}
	}
	if err := s.repo.Upsert(ctx, sessionID, record, s.recordTTL); err != nil {
		return fmt.Errorf("[Store save] %w", err)
	}
	s.publish(events.TopicSessionChanged, sessionID)
	return nil
}

func (s *Store) clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("[Store clear] %w", err)
	}
	s.publish(events.TopicSessionCleared, sessionID)
	return nil
}

func (s *Store) publish(topic events.Topic, sessionID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.Event{Topic: topic, SessionID: sessionID, At: NowTimeFunc()})
}

// shortID keeps session identifiers out of logs in full.
func shortID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[:8]
}
