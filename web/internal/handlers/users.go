package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/taskboard/internal/client"
)

// Users lists every account for administrators
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	s := authedSession(r)

	users, err := s.API.Users(r.Context())
	if err != nil {
		h.handleAPIError(w, r, s, err)
		return
	}

	data := h.newTemplateData(s, "users")
	data["Users"] = users
	h.renderTemplate(w, http.StatusOK, "users.html", data)
}

// ChangeRole promotes or demotes a user by one step
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	s := authedSession(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var change func(context.Context, int64) (*client.RoleChangeResponse, error)
	switch mux.Vars(r)["action"] {
	case "promote":
		change = s.API.PromoteUser
	case "demote":
		change = s.API.DemoteUser
	default:
		http.NotFound(w, r)
		return
	}

	resp, err := change(r.Context(), id)
	if err != nil {
		h.handleAPIError(w, r, s, err)
		return
	}
	if resp.Message != "" {
		s.AddFlash(resp.Message)
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}
