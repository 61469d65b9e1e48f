package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/metrics"
	"github.com/devilmonastery/taskboard/internal/pkg/urlutil"
	"github.com/devilmonastery/taskboard/web/internal/session"
)

// AuthMiddleware guards pages that need a signed-in user
type AuthMiddleware struct {
	store *session.Store
	log   *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(store *session.Store, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		store: store,
		log:   logger.With(slog.String("component", "auth_middleware")),
	}
}

// RequireAuth makes sure the session is usable before the page runs.
// A missing token, a failed refresh or a rejected token send the visitor to
// the login page with the current path as the return target.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.store.Open(w, r)
		if err != nil {
			m.log.Error("failed to open session", slog.String("error", err.Error()))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		ctx := r.Context()

		profile, err := s.Tokens.Authenticate(ctx)
		switch {
		case errors.Is(err, client.ErrNoCredential):
			m.redirectToLogin(w, r, "no_token")
			return
		case errors.Is(err, client.ErrSessionExpired):
			m.redirectToLogin(w, r, "refresh_failed")
			return
		case err != nil:
			m.redirectToLogin(w, r, "invalid")
			return
		}
		s.Profile = profile

		next.ServeHTTP(w, r.WithContext(session.NewContext(ctx, s)))
	})
}

// RequireAdmin rejects signed-in users without the administrator role.
// It must run inside RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok || !s.Profile.IsAdministrator() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	m.log.Info("redirecting to login",
		slog.String("path", r.URL.Path),
		slog.String("reason", reason))
	metrics.LoginRedirects.WithLabelValues(reason).Inc()
	http.Redirect(w, r, urlutil.BuildLoginRedirectURL(r.URL.Path, r.URL.RawQuery), http.StatusSeeOther)
}
