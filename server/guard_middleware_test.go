package server_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/posport-gateway/internal/utils"
	"github.com/jrsteele09/posport-gateway/server"
	"github.com/jrsteele09/posport-gateway/session"
	"github.com/jrsteele09/posport-gateway/users"
	"github.com/stretchr/testify/require"
)

func TestRouteGuard_LoggedOut(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("private page redirects to the welcome page", func(t *testing.T) {
		requireRedirect(t, f.get("/reports"), "/helloScreen")
	})

	t.Run("welcome page renders", func(t *testing.T) {
		resp := f.get("/helloScreen")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		require.Contains(t, body, `action="/auth/login"`)
		require.Contains(t, body, `href="/auth/google"`)
	})

	t.Run("other public pages render", func(t *testing.T) {
		require.Equal(t, http.StatusOK, f.get("/login").StatusCode)
		require.Equal(t, http.StatusOK, f.get("/signup").StatusCode)
	})

	t.Run("company selection renders", func(t *testing.T) {
		require.Equal(t, http.StatusOK, f.get("/selectCompany").StatusCode)
	})

	t.Run("company selection sub pages need a temporary token", func(t *testing.T) {
		requireRedirect(t, f.get("/selectCompany/new"), "/helloScreen")
	})

	t.Run("htmx navigation gets HX-Redirect", func(t *testing.T) {
		resp := f.get("/reports", "HX-Request", "true")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Equal(t, "/helloScreen", resp.Header.Get("HX-Redirect"))
	})
}

func TestRouteGuard_PrefetchRendersNothing(t *testing.T) {
	f := setupTestFixture(t)
	f.login("manager@example.com")

	for _, header := range []string{"Sec-Purpose", "Purpose"} {
		resp := f.get("/reports", header, "prefetch")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Empty(t, resp.Header.Get("Location"))
		require.Empty(t, readBody(t, resp))
	}
}

func TestRouteGuard_LoggedIn(t *testing.T) {
	f := setupTestFixture(t)
	requireRedirect(t, f.login("manager@example.com"), "/")

	resp := f.get("/reports")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	require.Contains(t, body, "Max")
	require.Contains(t, body, `action="/auth/logout"`)
	require.NotContains(t, body, "POSPort admin")
}

func TestRouteGuard_OwnerWithoutCompany(t *testing.T) {
	f := setupTestFixture(t)
	requireRedirect(t, f.login("owner@example.com"), "/selectCompany")

	requireRedirect(t, f.get("/settings"), "/selectCompany")
	requireRedirect(t, f.get("/helloScreen"), "/selectCompany")
	require.Equal(t, http.StatusOK, f.get("/selectCompany").StatusCode)

	resp := f.sendJSON(http.MethodPost, server.RouteAPISessionCompany, map[string]string{"companyId": "c-9"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, http.StatusOK, f.get("/settings").StatusCode)
}

func TestRouteGuard_AdminWithoutCompany(t *testing.T) {
	f := setupTestFixture(t)
	requireRedirect(t, f.login("admin@example.com"), "/")

	require.Equal(t, http.StatusOK, f.get("/settings").StatusCode)
	require.Equal(t, http.StatusOK, f.get("/companies/42/locations").StatusCode)
	require.Contains(t, readBody(t, f.get("/settings")), `class="badge">POSPort admin`)
}

func TestRouteGuard_ExpiredTokensLogOut(t *testing.T) {
	f := setupTestFixture(t)
	f.login("manager@example.com")
	require.Equal(t, http.StatusOK, f.get("/reports").StatusCode)

	f.advance(61 * time.Minute)

	requireRedirect(t, f.get("/reports"), "/helloScreen")
	state := f.sessionState()
	require.Equal(t, false, state["isLoggedIn"])
	require.Nil(t, state["user"], "expiry clears the stored profile too")
	require.Nil(t, state["tokens"])
	require.Equal(t, 0, f.repo.Len())
}

func TestRouteGuard_ReconcilesStoredCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.get("/helloScreen") // issue a session cookie

	sid := currentSessionID(t, f)
	ctx := t.Context()
	f.store.SetTokens(ctx, sid, "access-manager@example.com", "refresh")
	f.store.SetUserData(ctx, sid, users.Profile{ID: "u-manager", Role: users.RoleLocationManager, CompanyID: utils.Ptr("c-1")})
	require.False(t, f.store.State(ctx, sid).LoggedIn)

	require.Equal(t, http.StatusOK, f.get("/reports").StatusCode)
	require.True(t, f.store.State(ctx, sid).LoggedIn)
}

func TestRouteGuard_InvalidRecordTreatedAsLoggedOut(t *testing.T) {
	f := setupTestFixture(t)
	f.get("/helloScreen")

	sid := currentSessionID(t, f)
	ctx := t.Context()
	tokens := f.store.IssueTokens("access", "refresh")
	require.NoError(t, f.store.SetTokenBundle(ctx, sid, tokens))
	require.NoError(t, f.store.SetUser(ctx, sid, &users.Profile{Role: users.RoleUser}))

	requireRedirect(t, f.get("/reports"), "/helloScreen")
	require.Equal(t, session.InitialState(), f.store.State(ctx, sid))
}

func TestRouteGuard_TamperedCookieStartsNewSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login("manager@example.com")
	original := f.cookieValue()

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        currentSessionID(t, f),
		Issuer:    "posport-gateway",
		ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
	}).SignedString([]byte("not-the-session-secret"))
	require.NoError(t, err)

	u, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	f.browser.Jar.SetCookies(u, []*http.Cookie{{Name: cookieName, Value: forged, Path: "/"}})

	requireRedirect(t, f.get("/reports"), "/helloScreen")
	require.NotEqual(t, original, f.cookieValue())
}

// currentSessionID reads the session ID out of the browser's signed cookie.
func currentSessionID(t *testing.T, f *testFixture) string {
	t.Helper()
	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(f.cookieValue(), claims)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)
	return claims.ID
}
