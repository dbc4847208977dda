package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/jrsteele09/posport-gateway/users"
	"github.com/rs/zerolog/log"
)

const (
	RouteEmailLogin  = "/auth/email/login"
	RouteGoogleLogin = "/auth/google/login"
	RouteLogout      = "/auth/logout"
	RouteMe          = "/auth/me"

	// DefaultReadAttempts is how often idempotent reads are tried. Writes are tried once.
	DefaultReadAttempts = 3
)

// Client talks to the POSPort REST backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	readAttempts int
	retryDelay   time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		readAttempts: DefaultReadAttempts,
		retryDelay:   200 * time.Millisecond,
	}
}

// WithRetryDelay sets the base delay between read attempts (attempt n waits n*delay).
func (c *Client) WithRetryDelay(d time.Duration) *Client {
	c.retryDelay = d
	return c
}

// EmailLogin exchanges credentials for a user and a token pair.
func (c *Client) EmailLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp envelope[loginData]
	if err := c.do(ctx, http.MethodPost, RouteEmailLogin, "", emailLoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("[Backend EmailLogin] %w", err)
	}
	return toLoginResult(resp.Data)
}

// GoogleLogin exchanges a verified Google ID token for a backend session. Accounts that
// have not finished signup get a temporary token instead.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error) {
	var resp envelope[loginData]
	if err := c.do(ctx, http.MethodPost, RouteGoogleLogin, "", googleLoginRequest{IDToken: idToken}, &resp); err != nil {
		return nil, fmt.Errorf("[Backend GoogleLogin] %w", err)
	}
	return toLoginResult(resp.Data)
}

// Logout ends the backend session. The bearer header is only sent when a token is known.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, RouteLogout, accessToken, nil, nil); err != nil {
		return fmt.Errorf("[Backend Logout] %w", err)
	}
	return nil
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context, accessToken string) (*users.Profile, error) {
	var resp envelope[*users.Profile]
	err := c.retryRead(ctx, func() error {
		return c.do(ctx, http.MethodGet, RouteMe, accessToken, nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("[Backend Me] %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("[Backend Me] %w: empty profile", errors.ErrInvalidRequest)
	}
	return resp.Data, nil
}

// UpdateMe patches the current user's profile and returns the stored result.
func (c *Client) UpdateMe(ctx context.Context, accessToken string, update users.ProfileUpdate) (*users.Profile, error) {
	var resp envelope[*users.Profile]
	if err := c.do(ctx, http.MethodPatch, RouteMe, accessToken, update, &resp); err != nil {
		return nil, fmt.Errorf("[Backend UpdateMe] %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("[Backend UpdateMe] %w: empty profile", errors.ErrInvalidRequest)
	}
	return resp.Data, nil
}

func toLoginResult(d loginData) (*LoginResult, error) {
	if d.TempToken != "" {
		return &LoginResult{TempToken: d.TempToken}, nil
	}
	if d.User == nil || d.Tokens.Access.Token == "" {
		return nil, fmt.Errorf("%w: login response without user or access token", errors.ErrInvalidRequest)
	}
	return &LoginResult{
		User:         d.User,
		AccessToken:  d.Tokens.Access.Token,
		RefreshToken: d.Tokens.Refresh.Token,
	}, nil
}

func (c *Client) retryRead(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.readAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var backendErr *Error
		if errors.As(err, &backendErr) && !backendErr.retryable() {
			return err
		}
		if attempt == c.readAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("backend read failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, route, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", route, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}
