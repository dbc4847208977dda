package server

import (
	"net/http"

	"github.com/jrsteele09/posport-gateway/users"
	"github.com/rs/zerolog/log"
)

// PageData is what the dashboard shell is rendered with.
type PageData struct {
	AppName     string
	Path        string
	LoggedIn    bool
	User        *users.Profile
	Error       string
	GoogleLogin bool
	LoginPage   bool
	WelcomePath string
}

// PageHandler renders the dashboard shell for a navigation the route guard let through.
func (s *Server) PageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := guardedState(r)
		data := PageData{
			AppName:     s.config.GetAppName(),
			Path:        r.URL.Path,
			LoggedIn:    st.LoggedIn,
			User:        st.User,
			Error:       r.URL.Query().Get("error"),
			GoogleLogin: s.identity != nil && s.identity.Enabled(),
			LoginPage:   r.URL.Path == RouteLoginPage || r.URL.Path == s.guard.WelcomePath(),
			WelcomePath: s.guard.WelcomePath(),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		if err := s.pageTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render page template")
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
	}
}

// HealthHandler reports that the process is serving.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
