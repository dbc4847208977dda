package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/posport-gateway/internal/errors"
	"github.com/jrsteele09/posport-gateway/internal/utils"
	"github.com/jrsteele09/posport-gateway/session"
	"github.com/jrsteele09/posport-gateway/users"
	"github.com/rs/zerolog/log"
)

// tokensView describes the stored bundle without exposing either token to the browser.
type tokensView struct {
	IssuedAt        time.Time `json:"issuedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	HasRefreshToken bool      `json:"hasRefreshToken"`
	Temporary       bool      `json:"temporary"`
}

type sessionView struct {
	IsLoggedIn bool           `json:"isLoggedIn"`
	User       *users.Profile `json:"user"`
	Tokens     *tokensView    `json:"tokens"`
}

// userUpdateRequest is the part of the profile the browser may change locally. Role and
// company only change through the backend.
type userUpdateRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

type companyRequest struct {
	CompanyID string `json:"companyId"`
}

type companyResponse struct {
	Redirect string      `json:"redirect"`
	Session  sessionView `json:"session"`
}

func (s *Server) viewOf(st session.State) sessionView {
	view := sessionView{IsLoggedIn: st.LoggedIn, User: st.User}
	if st.Tokens != nil {
		view.Tokens = &tokensView{
			IssuedAt:        st.Tokens.IssuedAt,
			ExpiresAt:       st.Tokens.ExpiresAt,
			HasRefreshToken: st.Tokens.RefreshToken != "",
			Temporary:       s.guard.IsTempOAuthToken(st.Tokens.AccessToken),
		}
	}
	return view
}

// currentState applies token expiry and returns the rehydrated session.
func (s *Server) currentState(r *http.Request) session.State {
	sid := sessionID(r)
	s.store.ClearIfExpired(r.Context(), sid)
	return s.store.State(r.Context(), sid)
}

// SessionStateHandler returns the session of the calling browser (GET /api/session).
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.viewOf(s.currentState(r)))
	}
}

// UpdateUserHandler merges a partial profile into the logged-in user (PATCH /api/session/user).
func (s *Server) UpdateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sid := sessionID(r)

		if !s.currentState(r).LoggedIn {
			writeJSONError(w, "unauthorized", "not logged in", http.StatusUnauthorized)
			return
		}

		var req userUpdateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "invalid JSON body", http.StatusBadRequest)
			return
		}

		update := users.ProfileUpdate{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}
		if err := s.store.UpdateUser(ctx, sid, update); err != nil {
			log.Err(err).Msg("failed to update session user")
			writeJSONError(w, "server_error", "failed to update user", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, s.viewOf(s.store.State(ctx, sid)))
	}
}

// SelectCompanyHandler attaches the user to a company (POST /api/session/company). The backend
// is updated first; the session follows with the profile it returns. It also serves accounts
// holding only a temporary signup token, whose session gains its user here.
func (s *Server) SelectCompanyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sid := sessionID(r)
		st := s.currentState(r)

		accessToken, ok := s.store.AccessToken(ctx, sid)
		if !ok {
			writeJSONError(w, "unauthorized", "no valid session", http.StatusUnauthorized)
			return
		}

		var req companyRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil || strings.TrimSpace(req.CompanyID) == "" {
			writeJSONError(w, "invalid_request", "companyId is required", http.StatusBadRequest)
			return
		}
		companyID := strings.TrimSpace(req.CompanyID)

		profile, err := s.backend.UpdateMe(ctx, accessToken, users.ProfileUpdate{CompanyID: utils.Ptr(companyID)})
		if err != nil {
			log.Err(err).Str("company", companyID).Msg("backend rejected company selection")
			if errors.Is(err, errors.ErrInvalidCredentials) {
				writeJSONError(w, "unauthorized", "session is no longer valid", http.StatusUnauthorized)
				return
			}
			writeJSONError(w, "backend_error", "company selection failed", http.StatusBadGateway)
			return
		}

		if st.User != nil {
			err = s.store.UpdateUser(ctx, sid, users.ProfileUpdate{CompanyID: profile.CompanyID})
		} else {
			err = s.store.SetUser(ctx, sid, profile)
		}
		if err != nil {
			log.Err(err).Msg("failed to store company selection")
			writeJSONError(w, "server_error", "failed to store company selection", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, companyResponse{Redirect: "/", Session: s.viewOf(s.store.State(ctx, sid))})
	}
}

// MeHandler returns the backend's current profile (GET /api/me). A token the backend no longer
// accepts logs the session out.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sid := sessionID(r)
		s.store.ClearIfExpired(ctx, sid)

		accessToken, ok := s.store.AccessToken(ctx, sid)
		if !ok || s.profiles == nil {
			writeJSONError(w, "unauthorized", "no valid session", http.StatusUnauthorized)
			return
		}

		profile, err := s.profiles.Me(ctx, sid, accessToken)
		if err != nil {
			if errors.Is(err, errors.ErrInvalidCredentials) {
				log.Info().Msg("backend rejected access token, logging session out")
				if err := s.store.Logout(ctx, sid); err != nil {
					log.Err(err).Msg("failed to clear rejected session")
				}
				writeJSONError(w, "unauthorized", "session is no longer valid", http.StatusUnauthorized)
				return
			}
			log.Err(err).Msg("failed to fetch profile")
			writeJSONError(w, "backend_error", "profile unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
