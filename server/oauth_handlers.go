package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/jrsteele09/posport-gateway/server/authflowrepo"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const googleLoginFailed = "Google sign-in failed, please try again"

// GoogleLoginHandler starts Google sign-in (GET /auth/google). The state, PKCE verifier and
// nonce are kept server-side and bound to the current browser session.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.identity == nil || !s.identity.Enabled() {
			redirectWithError(w, r, RouteLoginPage, "Google sign-in is not available")
			return
		}

		state := uuid.NewString()
		flow := &authflowrepo.AuthFlowState{
			SessionID:    sessionID(r),
			CodeVerifier: oauth2.GenerateVerifier(),
			Nonce:        uuid.NewString(),
			ReturnURL:    safeReturnPath(r.URL.Query().Get("returnTo")),
			CreatedAt:    NowTimeFunc(),
		}
		if err := s.authFlows.Upsert(state, flow); err != nil {
			log.Err(err).Msg("failed to store auth flow")
			redirectWithError(w, r, RouteLoginPage, googleLoginFailed)
			return
		}

		authURL, err := s.identity.AuthCodeURL(r.Context(), state, flow.Nonce, flow.CodeVerifier)
		if err != nil {
			log.Err(err).Msg("failed to build Google consent URL")
			_ = s.authFlows.Delete(state)
			redirectWithError(w, r, RouteLoginPage, googleLoginFailed)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// GoogleCallbackHandler finishes Google sign-in (GET /auth/google/callback): it checks the
// state, exchanges the code, and logs the verified ID token in with the backend. Accounts that
// still need to finish signup get a temporary token and are sent to company selection.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		if s.identity == nil {
			redirectWithError(w, r, RouteLoginPage, "Google sign-in is not available")
			return
		}
		if oauthErr := q.Get("error"); oauthErr != "" {
			log.Warn().Str("error", oauthErr).Str("description", q.Get("error_description")).Msg("Google sign-in was not completed")
			redirectWithError(w, r, RouteLoginPage, "Google sign-in was cancelled")
			return
		}

		flow, err := s.consumeAuthFlow(r, q.Get("state"))
		if err != nil {
			log.Warn().Err(err).Msg("rejecting Google callback")
			redirectWithError(w, r, RouteLoginPage, googleLoginFailed)
			return
		}

		rawIDToken, err := s.identity.Exchange(ctx, q.Get("code"), flow.CodeVerifier, flow.Nonce)
		if err != nil {
			log.Err(err).Msg("Google code exchange failed")
			redirectWithError(w, r, RouteLoginPage, googleLoginFailed)
			return
		}

		result, err := s.backend.GoogleLogin(ctx, rawIDToken)
		if err != nil {
			log.Err(err).Msg("backend Google login failed")
			_, msg := loginErrorResponse(err)
			redirectWithError(w, r, RouteLoginPage, msg)
			return
		}

		if result.SignupPending() {
			sid, err := s.rotateSession(w, r)
			if err != nil {
				log.Err(err).Msg("failed to rotate session for pending signup")
				redirectWithError(w, r, RouteLoginPage, googleLoginFailed)
				return
			}
			s.store.SetTokens(ctx, sid, result.TempToken, "")
			log.Info().Msg("Google account needs to finish signup")
			redirectSuccess(w, r, s.guard.CompanySelectionPath())
			return
		}

		s.completeLogin(w, r, false, result, flow.ReturnURL)
	}
}

// consumeAuthFlow looks up and deletes the flow for state. A flow is single use, must belong
// to the session presenting it and must not have outlived the configured timeout.
func (s *Server) consumeAuthFlow(r *http.Request, state string) (*authflowrepo.AuthFlowState, error) {
	flow, err := s.authFlows.Get(state)
	if err != nil {
		return nil, err
	}
	if err := s.authFlows.Delete(state); err != nil {
		log.Err(err).Msg("failed to delete auth flow")
	}

	if flow.SessionID != sessionID(r) {
		return nil, errors.Wrapf(errors.ErrInvalidState, "[Server consumeAuthFlow] flow belongs to another session")
	}
	if flow.Expired(NowTimeFunc(), s.config.GetAuthFlowTimeout()) {
		return nil, errors.Wrapf(errors.ErrInvalidState, "[Server consumeAuthFlow] flow expired")
	}
	return flow, nil
}
