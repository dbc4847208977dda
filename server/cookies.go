package server

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the browser session identifier
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeySessionState stores the session state the route guard evaluated
	ContextKeySessionState ContextKey = "session_state"

	sessionCookieIssuer = "posport-gateway"
	cookieKeyInfo       = "posport-session-cookie-v1"
)

// sessionCookies issues and verifies the signed cookie that carries the session ID.
// The cookie holds nothing but the identifier; the session record stays server-side.
type sessionCookies struct {
	name   string
	key    []byte
	maxAge time.Duration
}

func newSessionCookies(cfg config.SessionConfig) (*sessionCookies, error) {
	secret := cfg.GetSessionSecret()
	if secret == "" {
		return nil, fmt.Errorf("%w: session secret is empty", errors.ErrInvalidRequest)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive cookie key: %w", err)
	}
	return &sessionCookies{
		name:   cfg.GetSessionCookieName(),
		key:    key,
		maxAge: cfg.GetSessionMaxAge(),
	}, nil
}

func (c *sessionCookies) sign(sessionID string) (string, error) {
	now := NowTimeFunc()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    sessionCookieIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// parse returns the session ID of a signed cookie value.
func (c *sessionCookies) parse(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionCookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInvalidCookie, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: no session id", errors.ErrInvalidCookie)
	}
	return claims.ID, nil
}

func (c *sessionCookies) read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", err
	}
	return c.parse(cookie.Value)
}

func (c *sessionCookies) write(w http.ResponseWriter, r *http.Request, sessionID string) error {
	value, err := c.sign(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.maxAge.Seconds()),
	})
	return nil
}

func (c *sessionCookies) clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// SessionMiddleware resolves the browser session from its signed cookie and starts a new
// session when the cookie is missing, expired or tampered with.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := s.cookies.read(r)
		if err != nil {
			if !errors.Is(err, http.ErrNoCookie) {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("rejecting session cookie")
			}
			sessionID = uuid.NewString()
			if err := s.cookies.write(w, r, sessionID); err != nil {
				log.Err(err).Msg("failed to issue session cookie")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySessionID, sessionID)))
	}
}

// sessionID returns the session resolved by SessionMiddleware.
func sessionID(r *http.Request) string {
	sid, _ := r.Context().Value(ContextKeySessionID).(string)
	return sid
}

// rotateSession moves the browser to a fresh session ID and discards the old record, so an
// identifier seen before login is never the one that carries credentials.
func (s *Server) rotateSession(w http.ResponseWriter, r *http.Request) (string, error) {
	previous := sessionID(r)
	next := uuid.NewString()
	if err := s.cookies.write(w, r, next); err != nil {
		return "", err
	}
	if previous != "" {
		if err := s.store.Logout(r.Context(), previous); err != nil {
			log.Err(err).Msg("failed to discard pre-login session")
		}
	}
	return next, nil
}
