package backend

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/jrsteele09/posport-gateway/users"
)

// envelope is the {data: ...} wrapper every backend response uses.
type envelope[T any] struct {
	Data T `json:"data"`
}

type tokenValue struct {
	Token   string          `json:"token"`
	Expires json.RawMessage `json:"expires,omitempty"` // reported by the backend, not used for session expiry
}

type loginData struct {
	User   *users.Profile `json:"user"`
	Tokens struct {
		Access  tokenValue `json:"access"`
		Refresh tokenValue `json:"refresh"`
	} `json:"tokens"`
	TempToken string `json:"tempToken,omitempty"`
}

// LoginResult is the outcome of an email or Google login.
type LoginResult struct {
	User         *users.Profile
	AccessToken  string
	RefreshToken string
	// TempToken is set instead of the fields above when a Google account still has to finish signup
	TempToken string
}

// SignupPending reports whether the login only produced a temporary signup token.
func (r *LoginResult) SignupPending() bool {
	return r.TempToken != ""
}

type emailLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

// Unwrap lets callers test 401/403 responses with errors.Is(err, errors.ErrInvalidCredentials).
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.ErrInvalidCredentials
	case http.StatusNotFound:
		return errors.ErrNotFound
	default:
		return nil
	}
}

func (e *Error) retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}
