package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/taskboard/web/internal/middleware"
)

// NewRouter sets up the HTTP router with all routes and middleware
func NewRouter(h *Handler, authMw *middleware.AuthMiddleware, log *slog.Logger) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Public routes
	router.HandleFunc("/", h.Home).Methods("GET")
	router.HandleFunc("/login", h.Login).Methods("GET")
	router.HandleFunc("/login", h.LoginSubmit).Methods("POST")
	router.HandleFunc("/register", h.Register).Methods("GET")
	router.HandleFunc("/register", h.RegisterSubmit).Methods("POST")
	router.HandleFunc("/logout", h.Logout).Methods("POST")
	router.HandleFunc("/api/set-timezone", h.SetTimezone).Methods("POST")

	// Pages behind the session bootstrap
	protected := func(fn http.HandlerFunc) http.Handler {
		return authMw.RequireAuth(fn)
	}
	router.Handle("/profile", protected(h.Profile)).Methods("GET")
	router.Handle("/tasks", protected(h.Tasks)).Methods("GET")
	router.Handle("/tasks", protected(h.CreateTask)).Methods("POST")
	router.Handle("/tasks/{id:[0-9]+}/status", protected(h.UpdateTaskStatus)).Methods("POST")
	router.Handle("/tasks/{id:[0-9]+}/delete", protected(h.DeleteTask)).Methods("POST")

	admin := func(fn http.HandlerFunc) http.Handler {
		return authMw.RequireAuth(authMw.RequireAdmin(fn))
	}
	router.Handle("/admin/users", admin(h.Users)).Methods("GET")
	router.Handle("/admin/users/{id:[0-9]+}/{action:promote|demote}", admin(h.ChangeRole)).Methods("POST")

	return middleware.LogRequest(router, log)
}
