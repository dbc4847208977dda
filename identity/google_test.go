package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/posport-gateway/identity"
	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID = "dashboard-client"
	testKeyID    = "test-key-1"
	testCode     = "auth-code-1"
)

// fakeIssuer is a minimal OIDC issuer: discovery, JWKS and a token endpoint.
type fakeIssuer struct {
	srv      *httptest.Server
	key      *rsa.PrivateKey
	idNonce  string
	audience string
	verifier string // last code_verifier received
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key, audience: testClientID}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                f.srv.URL,
			"authorization_endpoint":                f.srv.URL + "/authorize",
			"token_endpoint":                        f.srv.URL + "/token",
			"jwks_uri":                              f.srv.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKeyID,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != testCode {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		f.verifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "google-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     f.signIDToken(t),
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) signIDToken(t *testing.T) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   f.srv.URL,
		"aud":   f.audience,
		"sub":   "google-user-1",
		"email": "jane@example.com",
		"nonce": f.idNonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func newProvider(t *testing.T, issuer string) *identity.GoogleProvider {
	t.Helper()
	t.Setenv("GOOGLE_ISSUER", issuer)
	t.Setenv("GOOGLE_CLIENT_ID", testClientID)
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("BASE_URL", "https://dash.example.com")
	return identity.NewGoogleProvider(config.OAuth{})
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	issuer := newFakeIssuer(t)
	p := newProvider(t, issuer.srv.URL)
	verifier := oauth2.GenerateVerifier()

	raw, err := p.AuthCodeURL(context.Background(), "state-1", "nonce-1", verifier)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, issuer.srv.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, "state-1", q.Get("state"))
	require.Equal(t, "nonce-1", q.Get("nonce"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	require.Equal(t, "https://dash.example.com/auth/google/callback", q.Get("redirect_uri"))
}

func TestGoogleProvider_Exchange(t *testing.T) {
	issuer := newFakeIssuer(t)
	p := newProvider(t, issuer.srv.URL)
	ctx := context.Background()

	t.Run("valid code and nonce", func(t *testing.T) {
		issuer.idNonce = "nonce-1"
		rawIDToken, err := p.Exchange(ctx, testCode, "verifier-1", "nonce-1")
		require.NoError(t, err)
		require.NotEmpty(t, rawIDToken)
		require.Equal(t, "verifier-1", issuer.verifier)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		issuer.idNonce = "someone-elses-nonce"
		_, err := p.Exchange(ctx, testCode, "verifier-1", "nonce-1")
		require.ErrorIs(t, err, errors.ErrInvalidNonce)
	})

	t.Run("wrong audience", func(t *testing.T) {
		issuer.idNonce = "nonce-1"
		issuer.audience = "another-client"
		t.Cleanup(func() { issuer.audience = testClientID })
		_, err := p.Exchange(ctx, testCode, "verifier-1", "nonce-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "verification failed")
	})

	t.Run("bad code", func(t *testing.T) {
		_, err := p.Exchange(ctx, "nope", "verifier-1", "nonce-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "token exchange failed")
	})
}

func TestGoogleProvider_Disabled(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	p := identity.NewGoogleProvider(config.OAuth{})

	require.False(t, p.Enabled())
	_, err := p.AuthCodeURL(context.Background(), "s", "n", "v")
	require.ErrorIs(t, err, errors.ErrInvalidRequest)
}
