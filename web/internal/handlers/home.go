package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/devilmonastery/taskboard/internal/client"
)

// Home lists the public tasks. A stored session is validated alongside the
// task fetch only to pick the navigation; a failed check keeps the page and
// shows the anonymous navigation.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}

	var (
		tasks   []client.Task
		profile *client.Profile
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		tasks, err = s.API.PublicTasks(ctx)
		return err
	})
	if s.Tokens.AccessToken() != "" {
		// Independent of the errgroup context so a failed task fetch does not
		// count as a rejected session
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(r.Context(), validateTimeout)
			defer cancel()
			if p, ok := s.Tokens.ValidateProfile(vctx); ok {
				profile = p
			}
			return nil
		})
	}
	err := g.Wait()
	s.Profile = profile

	data := h.newTemplateData(s, "home")
	data["Tasks"] = tasks
	if err != nil {
		h.log.Warn("failed to load public tasks", slog.String("error", err.Error()))
		data["Error"] = "Public tasks could not be loaded."
	}
	h.renderTemplate(w, http.StatusOK, "home.html", data)
}
