package server

// Route path constants
// All gateway routes are defined here to ensure consistency and prevent typos
const (
	RouteHealth = "/healthz"

	// Auth Routes - Login & Logout
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// Auth Routes - Google sign-in
	RouteAuthGoogle         = "/auth/google"
	RouteAuthGoogleCallback = "/auth/google/callback"

	// Session API Routes
	RouteAPI               = "/api/"
	RouteAPISession        = "/api/session"
	RouteAPISessionUser    = "/api/session/user"
	RouteAPISessionCompany = "/api/session/company"
	RouteAPIMe             = "/api/me"

	// Pages rendered by the dashboard shell
	RouteLoginPage = "/login"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)
