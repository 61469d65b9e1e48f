package handlers

import (
	"net/http"
	"runtime"
	"strings"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/urlutil"
	"github.com/devilmonastery/taskboard/web/internal/session"
)

// afterLogin is where a login without a usable next parameter lands
const afterLogin = "/tasks"

// Login shows the login form, or skips it for a visitor whose session the
// backend still accepts
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	next := urlutil.SafeNext(r.URL.Query().Get("next"), "")

	if s.Tokens.AccessToken() != "" && s.Tokens.Validate(r.Context()) {
		http.Redirect(w, r, urlutil.SafeNext(next, afterLogin), http.StatusSeeOther)
		return
	}

	h.renderLogin(w, s, http.StatusOK, next, "", "")
}

// LoginSubmit authenticates with the backend and stores the credential in
// the session
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	next := urlutil.SafeNext(r.PostForm.Get("next"), "")

	if email == "" || password == "" {
		h.renderLogin(w, s, http.StatusBadRequest, next, email, "Email and password are required.")
		return
	}

	_, err := s.Tokens.Login(r.Context(), client.LoginRequest{
		Email:    email,
		Password: password,
		Timezone: s.Timezone(),
		Language: preferredLanguage(r),
		ExtraMetadata: map[string]any{
			"client":     "web",
			"user_agent": r.UserAgent(),
			"os":         runtime.GOOS,
		},
	})
	if err != nil {
		h.renderLogin(w, s, formStatus(err), next, email, errorMessage(err))
		return
	}

	http.Redirect(w, r, urlutil.SafeNext(next, afterLogin), http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, s *session.Session, status int, next, email, errMsg string) {
	data := h.newTemplateData(s, "login")
	data["Next"] = next
	data["Email"] = email
	data["Error"] = errMsg
	h.renderTemplate(w, status, "login.html", data)
}

// Register shows the registration form
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	next := urlutil.SafeNext(r.URL.Query().Get("next"), "")
	h.renderRegister(w, s, http.StatusOK, next, client.RegisterRequest{}, "")
}

// RegisterSubmit creates the account; the backend signs the new user in
func (h *Handler) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	next := urlutil.SafeNext(r.PostForm.Get("next"), "")
	form := client.RegisterRequest{
		Name:           strings.TrimSpace(r.PostForm.Get("name")),
		Surname:        strings.TrimSpace(r.PostForm.Get("surname")),
		Patronym:       strings.TrimSpace(r.PostForm.Get("patronym")),
		Email:          strings.TrimSpace(r.PostForm.Get("email")),
		Password:       r.PostForm.Get("password"),
		PasswordRepeat: r.PostForm.Get("password_repeat"),
	}

	if form.Password != form.PasswordRepeat {
		h.renderRegister(w, s, http.StatusBadRequest, next, form, "Passwords do not match.")
		return
	}

	if _, err := s.Tokens.Register(r.Context(), form); err != nil {
		h.renderRegister(w, s, formStatus(err), next, form, errorMessage(err))
		return
	}

	s.AddFlash("Welcome! Your account has been created.")
	http.Redirect(w, r, urlutil.SafeNext(next, afterLogin), http.StatusSeeOther)
}

func (h *Handler) renderRegister(w http.ResponseWriter, s *session.Session, status int, next string, form client.RegisterRequest, errMsg string) {
	// Never echo passwords back into the page
	form.Password, form.PasswordRepeat = "", ""

	data := h.newTemplateData(s, "register")
	data["Next"] = next
	data["Form"] = form
	data["Error"] = errMsg
	h.renderTemplate(w, status, "register.html", data)
}

// Logout notifies the backend and clears the credential from the session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}

	if !s.Tokens.Logout(r.Context()) {
		h.log.Info("session cleared without backend confirmation")
	}
	s.AddFlash("You have been logged out.")

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// preferredLanguage returns the first language tag of Accept-Language
func preferredLanguage(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return ""
	}
	tag, _, _ := strings.Cut(header, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.TrimSpace(tag)
}
