package guard_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/posport-gateway/guard"
	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/internal/utils"
	"github.com/jrsteele09/posport-gateway/session"
	"github.com/jrsteele09/posport-gateway/users"
	"github.com/stretchr/testify/require"
)

const (
	welcomePath = "/helloScreen"
	selectPath  = "/selectCompany"
)

func tokens(access string) *session.Tokens {
	now := time.Now()
	return &session.Tokens{AccessToken: access, RefreshToken: "refresh", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
}

func loggedIn(role users.RoleType, companyID *string) session.State {
	return session.State{
		LoggedIn: true,
		User:     &users.Profile{ID: "u-1", Role: role, CompanyID: companyID},
		Tokens:   tokens("access"),
	}
}

func TestGuard_Decide(t *testing.T) {
	g := guard.New(config.Routes{})

	tests := []struct {
		name  string
		input guard.Input
		want  guard.Decision
	}{
		{
			name:  "not hydrated renders nothing",
			input: guard.Input{Path: "/reports", State: loggedIn(users.RoleUser, nil)},
			want:  guard.Decision{Action: guard.ActionRenderNothing, Rule: guard.RuleHydrating},
		},
		{
			name:  "owner without company is sent to company selection",
			input: guard.Input{Path: "/settings", Hydrated: true, State: loggedIn(users.RoleCompanyOwner, nil), AccessToken: "access"},
			want:  guard.Decision{Action: guard.ActionRedirect, Location: selectPath, Rule: guard.RuleUnassignedOwner},
		},
		{
			name:  "owner without company on company selection renders",
			input: guard.Input{Path: selectPath, Hydrated: true, State: loggedIn(users.RoleCompanyOwner, nil), AccessToken: "access"},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RuleCompanySelection},
		},
		{
			name:  "owner without company cannot stay on a public page",
			input: guard.Input{Path: welcomePath, Hydrated: true, State: loggedIn(users.RoleCompanyOwner, nil), AccessToken: "access"},
			want:  guard.Decision{Action: guard.ActionRedirect, Location: selectPath, Rule: guard.RuleUnassignedOwner},
		},
		{
			name:  "owner with company renders",
			input: guard.Input{Path: "/settings", Hydrated: true, State: loggedIn(users.RoleCompanyOwner, utils.Ptr("c-1")), AccessToken: "access"},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RuleDefaultAllow},
		},
		{
			name:  "admin without company is not redirected",
			input: guard.Input{Path: "/settings", Hydrated: true, State: loggedIn(users.RolePosportAdmin, nil), AccessToken: "access"},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RuleDefaultAllow},
		},
		{
			name:  "admin without company on any path",
			input: guard.Input{Path: "/companies/42/locations", Hydrated: true, State: loggedIn(users.RolePosportAdmin, nil), AccessToken: "access"},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RuleDefaultAllow},
		},
		{
			name:  "company selection renders without a session",
			input: guard.Input{Path: selectPath, Hydrated: true},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RuleCompanySelection},
		},
		{
			name:  "temporary oauth token opens company selection sub pages",
			input: guard.Input{Path: selectPath + "/new", Hydrated: true, State: session.State{Tokens: tokens("temp_oauth_123")}, AccessToken: "temp_oauth_123"},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RuleTempOAuthToken},
		},
		{
			name:  "company selection sub pages are denied without a temporary token",
			input: guard.Input{Path: selectPath + "/new", Hydrated: true},
			want:  guard.Decision{Action: guard.ActionRedirect, Location: welcomePath, Rule: guard.RuleDefaultDeny},
		},
		{
			name:  "temporary oauth token does not open other pages",
			input: guard.Input{Path: "/reports", Hydrated: true, State: session.State{Tokens: tokens("temp_oauth_123")}, AccessToken: "temp_oauth_123"},
			want:  guard.Decision{Action: guard.ActionRedirect, Location: welcomePath, Rule: guard.RuleDefaultDeny},
		},
		{
			name:  "public path renders when logged out",
			input: guard.Input{Path: welcomePath, Hydrated: true},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RulePublicPath},
		},
		{
			name:  "public path with trailing slash",
			input: guard.Input{Path: "/login/", Hydrated: true},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RulePublicPath},
		},
		{
			name:  "logged out on a private path is sent to the welcome page",
			input: guard.Input{Path: "/reports", Hydrated: true},
			want:  guard.Decision{Action: guard.ActionRedirect, Location: welcomePath, Rule: guard.RuleDefaultDeny},
		},
		{
			name:  "logged in on a private path renders",
			input: guard.Input{Path: "/reports", Hydrated: true, State: loggedIn(users.RoleLocationManager, utils.Ptr("c-1")), AccessToken: "access"},
			want:  guard.Decision{Action: guard.ActionRender, Rule: guard.RuleDefaultAllow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, g.Decide(tt.input))
		})
	}
}

func TestGuard_Reconciliation(t *testing.T) {
	g := guard.New(config.Routes{})

	stored := session.State{
		User:   &users.Profile{ID: "u-1", Role: users.RoleLocationManager, CompanyID: utils.Ptr("c-1")},
		Tokens: tokens("access"),
	}

	t.Run("valid token and user restore the login", func(t *testing.T) {
		d := g.Decide(guard.Input{Path: "/reports", Hydrated: true, State: stored, AccessToken: "access"})
		require.Equal(t, guard.ActionRender, d.Action)
		require.Equal(t, guard.RuleDefaultAllow, d.Rule)
		require.True(t, d.Reconcile)
	})

	t.Run("reconciled owner without company is redirected", func(t *testing.T) {
		owner := stored
		owner.User = &users.Profile{ID: "u-2", Role: users.RoleCompanyOwner}
		d := g.Decide(guard.Input{Path: "/reports", Hydrated: true, State: owner, AccessToken: "access"})
		require.Equal(t, guard.ActionRedirect, d.Action)
		require.Equal(t, selectPath, d.Location)
		require.True(t, d.Reconcile)
	})

	t.Run("no valid token means no reconciliation", func(t *testing.T) {
		d := g.Decide(guard.Input{Path: "/reports", Hydrated: true, State: stored})
		require.Equal(t, guard.ActionRedirect, d.Action)
		require.Equal(t, welcomePath, d.Location)
		require.False(t, d.Reconcile)
	})

	t.Run("no stored user means no reconciliation", func(t *testing.T) {
		d := g.Decide(guard.Input{Path: "/reports", Hydrated: true, State: session.State{Tokens: tokens("access")}, AccessToken: "access"})
		require.Equal(t, guard.RuleDefaultDeny, d.Rule)
		require.False(t, d.Reconcile)
	})

	t.Run("already logged in needs no reconciliation", func(t *testing.T) {
		st := stored
		st.LoggedIn = true
		d := g.Decide(guard.Input{Path: "/reports", Hydrated: true, State: st, AccessToken: "access"})
		require.False(t, d.Reconcile)
	})
}

func TestGuard_Configuration(t *testing.T) {
	t.Setenv("PUBLIC_PATHS", "/login,/signup")
	t.Setenv("WELCOME_PATH", "/welcome/")
	t.Setenv("TEMP_OAUTH_TOKEN_PREFIX", "tmp-")

	g := guard.New(config.Routes{})

	require.Equal(t, "/welcome", g.WelcomePath())
	require.True(t, g.IsPublic("/welcome"), "welcome page is always public")
	require.True(t, g.IsPublic("signup"))
	require.False(t, g.IsPublic("/reports"))
	require.True(t, g.IsTempOAuthToken("tmp-abc"))
	require.False(t, g.IsTempOAuthToken("temp_oauth_abc"))
}

func TestAction_String(t *testing.T) {
	require.Equal(t, "render", guard.ActionRender.String())
	require.Equal(t, "render-nothing", guard.ActionRenderNothing.String())
	require.Equal(t, "redirect", guard.ActionRedirect.String())
}
