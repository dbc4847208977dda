// Package guard decides, for every dashboard navigation, whether the requested page
// may be rendered or the browser has to be sent elsewhere.
package guard

import (
	"strings"

	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/session"
)

type Action int

const (
	// ActionRender renders the requested page
	ActionRender Action = iota
	// ActionRenderNothing renders an empty response while the session is not known yet
	ActionRenderNothing
	// ActionRedirect sends the browser to Decision.Location with a full navigation
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionRenderNothing:
		return "render-nothing"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Rule names the check that produced a decision.
type Rule string

const (
	RuleHydrating        Rule = "hydrating"
	RuleUnassignedOwner  Rule = "unassigned-owner"
	RuleCompanySelection Rule = "company-selection"
	RuleTempOAuthToken   Rule = "temp-oauth-token"
	RulePublicPath       Rule = "public-path"
	RuleDefaultDeny      Rule = "default-deny"
	RuleDefaultAllow     Rule = "default-allow"
)

// Input is everything the guard looks at for one navigation.
type Input struct {
	Path string
	// Hydrated is false until the session record has been read for this navigation
	Hydrated bool
	State    session.State
	// AccessToken is the stored, unexpired access token or empty
	AccessToken string
}

type Decision struct {
	Action   Action
	Location string
	Rule     Rule
	// Reconcile asks the caller to log the session in from its stored user and tokens
	// before acting on the decision
	Reconcile bool
}

type Guard struct {
	welcomePath          string
	companySelectionPath string
	tempTokenPrefix      string
	publicPaths          map[string]struct{}
}

func New(cfg config.RouteConfig) *Guard {
	g := &Guard{
		welcomePath:          normalise(cfg.GetWelcomePath()),
		companySelectionPath: normalise(cfg.GetCompanySelectionPath()),
		tempTokenPrefix:      cfg.GetTempOAuthTokenPrefix(),
		publicPaths:          make(map[string]struct{}),
	}
	for _, p := range cfg.GetPublicPaths() {
		g.publicPaths[normalise(p)] = struct{}{}
	}
	// The welcome page is where denied navigations land, so it can never be denied itself.
	g.publicPaths[g.welcomePath] = struct{}{}
	return g
}

func (g *Guard) WelcomePath() string {
	return g.welcomePath
}

func (g *Guard) CompanySelectionPath() string {
	return g.companySelectionPath
}

// IsPublic reports whether path renders without a session.
func (g *Guard) IsPublic(path string) bool {
	_, ok := g.publicPaths[normalise(path)]
	return ok
}

// IsTempOAuthToken reports whether token was issued for an unfinished Google signup.
func (g *Guard) IsTempOAuthToken(token string) bool {
	return g.tempTokenPrefix != "" && strings.HasPrefix(token, g.tempTokenPrefix)
}

// Decide evaluates the rules in order; the first one that applies wins.
func (g *Guard) Decide(in Input) Decision {
	if !in.Hydrated {
		return Decision{Action: ActionRenderNothing, Rule: RuleHydrating}
	}

	path := normalise(in.Path)
	st := in.State
	reconcile := false

	if !st.LoggedIn && in.AccessToken != "" && st.User != nil && st.Tokens != nil {
		st.LoggedIn = true
		reconcile = true
	}

	decide := func(d Decision) Decision {
		d.Reconcile = reconcile
		return d
	}

	if st.LoggedIn && st.User != nil && st.User.NeedsCompanySelection() {
		if path != g.companySelectionPath {
			return decide(Decision{Action: ActionRedirect, Location: g.companySelectionPath, Rule: RuleUnassignedOwner})
		}
	}

	if path == g.companySelectionPath {
		return decide(Decision{Action: ActionRender, Rule: RuleCompanySelection})
	}

	if g.IsTempOAuthToken(in.AccessToken) && strings.HasPrefix(path, g.companySelectionPath+"/") {
		return decide(Decision{Action: ActionRender, Rule: RuleTempOAuthToken})
	}

	if g.IsPublic(path) {
		return decide(Decision{Action: ActionRender, Rule: RulePublicPath})
	}

	if !st.LoggedIn {
		return decide(Decision{Action: ActionRedirect, Location: g.welcomePath, Rule: RuleDefaultDeny})
	}

	return decide(Decision{Action: ActionRender, Rule: RuleDefaultAllow})
}

func normalise(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
