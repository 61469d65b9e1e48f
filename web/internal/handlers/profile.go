package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/devilmonastery/taskboard/internal/client"
)

// Profile shows the account with the user's tasks. Both are fetched
// concurrently; a 401 on either shares one token refresh.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	s := authedSession(r)

	var (
		profile *client.Profile
		tasks   []client.Task
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		profile, err = s.API.Profile(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.API.Tasks(ctx, "all")
		return err
	})
	if err := g.Wait(); err != nil {
		h.handleAPIError(w, r, s, err)
		return
	}
	s.Profile = profile

	data := h.newTemplateData(s, "profile")
	data["Profile"] = profile
	data["Tasks"] = tasks
	data["ExpiresAt"] = s.Tokens.ExpiresAt()
	data["Timezone"] = s.Timezone()
	h.renderTemplate(w, http.StatusOK, "profile.html", data)
}
