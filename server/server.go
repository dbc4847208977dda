package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/posport-gateway/backend"
	"github.com/jrsteele09/posport-gateway/guard"
	"github.com/jrsteele09/posport-gateway/internal/config"
	"github.com/jrsteele09/posport-gateway/server/authflowrepo"
	"github.com/jrsteele09/posport-gateway/session"
	"github.com/jrsteele09/posport-gateway/users"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Backend is the part of the POSPort REST API the gateway calls on behalf of the browser.
type Backend interface {
	EmailLogin(ctx context.Context, email, password string) (*backend.LoginResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*backend.LoginResult, error)
	Logout(ctx context.Context, accessToken string) error
	UpdateMe(ctx context.Context, accessToken string, update users.ProfileUpdate) (*users.Profile, error)
}

// ProfileSource serves the backend's view of the current user, possibly cached per session.
type ProfileSource interface {
	Me(ctx context.Context, sessionID, accessToken string) (*users.Profile, error)
}

// IdentityProvider runs the Google authorization code flow.
type IdentityProvider interface {
	Enabled() bool
	AuthCodeURL(ctx context.Context, state, nonce, codeVerifier string) (string, error)
	Exchange(ctx context.Context, code, codeVerifier, nonce string) (rawIDToken string, err error)
}

type Deps struct {
	Store     *session.Store
	Backend   Backend
	Profiles  ProfileSource
	Identity  IdentityProvider
	AuthFlows authflowrepo.Repo
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	store     *session.Store
	backend   Backend
	profiles  ProfileSource
	identity  IdentityProvider
	authFlows authflowrepo.Repo
	guard     *guard.Guard
	cookies   *sessionCookies
	pageTmpl  *template.Template
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Backend == nil {
		return nil, fmt.Errorf("[Server New] a session store and a backend are required")
	}
	if deps.AuthFlows == nil {
		deps.AuthFlows = authflowrepo.NewInMemoryRepo()
	}

	cookies, err := newSessionCookies(config)
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}

	pageTmpl, err := ParseTemplate("page.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse page template: %w", err)
	}

	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		store:     deps.Store,
		backend:   deps.Backend,
		profiles:  deps.Profiles,
		identity:  deps.Identity,
		authFlows: deps.AuthFlows,
		guard:     guard.New(config),
		cookies:   cookies,
		pageTmpl:  pageTmpl,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// PurgeAbandonedAuthFlows drops Google sign-ins that never came back from the consent screen.
func (s *Server) PurgeAbandonedAuthFlows() int {
	cutoff := NowTimeFunc().Add(-s.config.GetAuthFlowTimeout())
	return s.authFlows.DeleteCreatedBefore(cutoff)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
