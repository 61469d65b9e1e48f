package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/urlutil"
	"github.com/devilmonastery/taskboard/web/internal/render"
	"github.com/devilmonastery/taskboard/web/internal/session"
)

// validateTimeout bounds the background session check on public pages
const validateTimeout = 5 * time.Second

// Handler holds dependencies for all web handlers
type Handler struct {
	store     *session.Store
	templates *render.TemplateSet
	log       *slog.Logger
}

// New creates a new handler with dependencies
func New(store *session.Store, templates *render.TemplateSet, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		templates: templates,
		log:       logger.With(slog.String("component", "web_handler")),
	}
}

// openSession opens the browser session for pages outside RequireAuth
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.store.Open(w, r)
	if err != nil {
		h.log.Error("failed to open session", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return s, true
}

// authedSession returns the session RequireAuth validated
func authedSession(r *http.Request) *session.Session {
	s, _ := session.FromContext(r.Context())
	return s
}

// newTemplateData creates a new template data map with standard fields populated
// Callers can add page-specific fields to the returned map
func (h *Handler) newTemplateData(s *session.Session, page string) map[string]interface{} {
	return map[string]interface{}{
		"User":        s.Profile,
		"CurrentPage": page,
		"Flashes":     s.Flashes(),
		"Error":       "",
	}
}

// renderTemplate renders a page. Output is buffered so a failing template
// never leaves a half written page behind.
func (h *Handler) renderTemplate(w http.ResponseWriter, status int, name string, data interface{}) {
	if h.templates == nil {
		http.Error(w, "Templates not loaded", http.StatusInternalServerError)
		return
	}
	h.log.Debug("rendering template", slog.String("template", name))

	var buf bytes.Buffer
	if err := h.templates.Execute(&buf, name, data); err != nil {
		h.log.Error("template rendering failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) renderError(w http.ResponseWriter, s *session.Session, status int, message string) {
	data := h.newTemplateData(s, "error")
	data["Message"] = message
	h.renderTemplate(w, status, "error.html", data)
}

// handleAPIError turns a backend failure into a page. An expired session
// goes back through the login page.
func (h *Handler) handleAPIError(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	if errors.Is(err, client.ErrSessionExpired) || errors.Is(err, client.ErrNoCredential) {
		h.log.Info("session expired during request", slog.String("path", r.URL.Path))
		http.Redirect(w, r, urlutil.BuildLoginRedirectURL(r.URL.Path, r.URL.RawQuery), http.StatusSeeOther)
		return
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusForbidden:
			h.renderError(w, s, http.StatusForbidden, "You are not allowed to do that.")
			return
		case http.StatusNotFound:
			h.renderError(w, s, http.StatusNotFound, "Not found.")
			return
		case http.StatusBadRequest:
			h.renderError(w, s, http.StatusBadRequest, apiErr.Message)
			return
		}
	}

	h.log.Error("backend request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	h.renderError(w, s, http.StatusBadGateway, "The task board backend is unavailable. Try again later.")
}

// errorMessage is the text shown to the visitor for a failed form submission
func errorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "The task board backend is unavailable. Try again later."
}

// formStatus is the HTTP status a re-rendered form is served with
func formStatus(err error) int {
	if status := client.StatusCode(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}

// SetTimezone stores the browser's timezone in the session; it is sent with
// the next login and used to show local times
func (h *Handler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	type timezoneRequest struct {
		Timezone string `json:"timezone"`
	}

	var req timezoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Timezone == "" {
		http.Error(w, "Timezone is required", http.StatusBadRequest)
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "Unknown timezone", http.StatusBadRequest)
		return
	}

	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if s.Timezone() != req.Timezone {
		if err := s.SetTimezone(req.Timezone); err != nil {
			h.log.Error("failed to save timezone to session", slog.String("error", err.Error()))
			http.Error(w, "Failed to save timezone", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success": true}`))
}
