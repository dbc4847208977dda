package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/posport-gateway/backend"
	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ReturnTo string `json:"returnTo"`
}

type loginResponse struct {
	Redirect string      `json:"redirect"`
	Session  sessionView `json:"session"`
}

// LoginHandler signs the browser in with email and password (POST /auth/login). It accepts
// a form post or a JSON body and answers with a redirect or JSON accordingly.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asJSON := isJSONRequest(r)
		req, err := readLoginRequest(w, r, asJSON)
		if err != nil || req.Email == "" || req.Password == "" {
			s.loginFailed(w, r, asJSON, http.StatusBadRequest, "Email and password are required")
			return
		}

		result, err := s.backend.EmailLogin(r.Context(), req.Email, req.Password)
		if err != nil {
			log.Err(err).Msg("email login failed")
			status, msg := loginErrorResponse(err)
			s.loginFailed(w, r, asJSON, status, msg)
			return
		}

		s.completeLogin(w, r, asJSON, result, safeReturnPath(req.ReturnTo))
	}
}

func readLoginRequest(w http.ResponseWriter, r *http.Request, asJSON bool) (loginRequest, error) {
	var req loginRequest
	if asJSON {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)
		req.Email = strings.TrimSpace(req.Email)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Email = strings.TrimSpace(r.PostFormValue("email"))
	req.Password = r.PostFormValue("password")
	req.ReturnTo = r.PostFormValue("returnTo")
	return req, nil
}

// completeLogin writes a successful backend login into a freshly rotated session and sends
// the browser on: company owners without a company go to company selection first.
func (s *Server) completeLogin(w http.ResponseWriter, r *http.Request, asJSON bool, result *backend.LoginResult, returnTo string) {
	ctx := r.Context()

	sid, err := s.rotateSession(w, r)
	if err != nil {
		log.Err(err).Msg("failed to rotate session at login")
		s.loginFailed(w, r, asJSON, http.StatusInternalServerError, "Login failed, please try again")
		return
	}

	tokens := s.store.IssueTokens(result.AccessToken, result.RefreshToken)
	if err := s.store.Login(ctx, sid, result.User, tokens); err != nil {
		log.Err(err).Msg("failed to store login")
		s.loginFailed(w, r, asJSON, http.StatusInternalServerError, "Login failed, please try again")
		return
	}
	log.Info().Str("user", result.User.ID).Str("role", string(result.User.Role)).Msg("user logged in")

	destination := returnTo
	switch {
	case result.User.NeedsCompanySelection():
		destination = s.guard.CompanySelectionPath()
	case destination == "":
		destination = "/"
	}

	if asJSON {
		writeJSON(w, http.StatusOK, loginResponse{Redirect: destination, Session: s.viewOf(s.store.State(ctx, sid))})
		return
	}
	redirectSuccess(w, r, destination)
}

func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, asJSON bool, status int, msg string) {
	if asJSON {
		writeJSONError(w, "login_failed", msg, status)
		return
	}
	redirectWithError(w, r, RouteLoginPage, msg)
}

func loginErrorResponse(err error) (int, string) {
	if errors.Is(err, errors.ErrInvalidCredentials) {
		var backendErr *backend.Error
		if errors.As(err, &backendErr) && backendErr.Message != "" {
			return http.StatusUnauthorized, backendErr.Message
		}
		return http.StatusUnauthorized, "Incorrect email or password"
	}
	return http.StatusBadGateway, "Login is unavailable right now, please try again"
}

// LogoutHandler ends the session (POST /auth/logout). The backend is told first, but the
// local session is cleared whether or not that call succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sid := sessionID(r)

		accessToken, _ := s.store.AccessToken(ctx, sid)
		if accessToken != "" {
			if err := s.backend.Logout(ctx, accessToken); err != nil {
				log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
			}
		}

		if err := s.store.Logout(ctx, sid); err != nil {
			log.Err(err).Msg("failed to clear session at logout")
		}
		s.cookies.clear(w, r)

		if isJSONRequest(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		redirectSuccess(w, r, s.guard.WelcomePath())
	}
}
