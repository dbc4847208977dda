package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/posport-gateway/guard"
	"github.com/jrsteele09/posport-gateway/session"
	"github.com/rs/zerolog/log"
)

// RouteGuardMiddleware decides, for every page navigation, whether the page may render.
// Denied navigations become full redirects; speculative navigations render nothing.
func (s *Server) RouteGuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, state := s.evaluateGuard(r)

		switch decision.Action {
		case guard.ActionRenderNothing:
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusNoContent)
			return
		case guard.ActionRedirect:
			log.Debug().Str("path", r.URL.Path).Str("rule", string(decision.Rule)).Str("location", decision.Location).Msg("route guard redirect")
			redirectSuccess(w, r, decision.Location)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySessionState, state)))
	}
}

// evaluateGuard reads the session and runs the guard. Any failure while doing so is logged
// and evaluated as a logged-out session.
func (s *Server) evaluateGuard(r *http.Request) (decision guard.Decision, state session.State) {
	ctx := r.Context()
	sid := sessionID(r)

	if isPrefetch(r) {
		return s.guard.Decide(guard.Input{Path: r.URL.Path}), session.InitialState()
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("session check failed, treating as logged out")
			s.store.ClearTokens(ctx, sid)
			state = session.InitialState()
			decision = s.guard.Decide(guard.Input{Path: r.URL.Path, Hydrated: true, State: state})
		}
	}()

	if s.store.ClearIfExpired(ctx, sid) {
		log.Info().Str("path", r.URL.Path).Msg("session tokens expired, logged out")
	}
	state = s.store.State(ctx, sid)
	accessToken, _ := s.store.AccessToken(ctx, sid)

	decision = s.guard.Decide(guard.Input{
		Path:        r.URL.Path,
		Hydrated:    true,
		State:       state,
		AccessToken: accessToken,
	})

	if decision.Reconcile {
		if err := s.store.Login(ctx, sid, state.User, state.Tokens); err != nil {
			log.Err(err).Msg("failed to restore login from stored credentials")
		} else {
			state.LoggedIn = true
		}
	}
	return decision, state
}

// guardedState returns the session state evaluated by RouteGuardMiddleware.
func guardedState(r *http.Request) session.State {
	st, _ := r.Context().Value(ContextKeySessionState).(session.State)
	return st
}
