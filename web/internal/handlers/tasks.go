package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/taskboard/internal/client"
)

var taskGroups = []string{"all", client.TaskPending, client.TaskInProgress, client.TaskDone}

// Tasks lists the user's tasks, optionally filtered by status group
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	s := authedSession(r)

	group := r.URL.Query().Get("group")
	if !client.ValidTaskStatus(group) {
		group = "all"
	}

	tasks, err := s.API.Tasks(r.Context(), group)
	if err != nil {
		h.handleAPIError(w, r, s, err)
		return
	}

	data := h.newTemplateData(s, "tasks")
	data["Tasks"] = tasks
	data["Group"] = group
	data["Groups"] = taskGroups
	h.renderTemplate(w, http.StatusOK, "tasks.html", data)
}

// CreateTask adds a task from the form on the task list
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	s := authedSession(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	in := client.TaskInput{
		Title:       strings.TrimSpace(r.PostForm.Get("title")),
		Description: r.PostForm.Get("description"),
		Status:      r.PostForm.Get("status"),
	}
	if in.Title == "" {
		s.AddFlash("A task needs a title.")
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return
	}
	if in.Status != "" && !client.ValidTaskStatus(in.Status) {
		s.AddFlash("Unknown status " + in.Status + ".")
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return
	}
	if raw := strings.TrimSpace(r.PostForm.Get("parent_id")); raw != "" {
		parent, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parent <= 0 {
			s.AddFlash("The parent task must be a task number.")
			http.Redirect(w, r, "/tasks", http.StatusSeeOther)
			return
		}
		in.ParentID = &parent
	}

	task, err := s.API.CreateTask(r.Context(), in)
	if err != nil {
		h.handleAPIError(w, r, s, err)
		return
	}
	h.log.Info("task created", slog.Int64("task_id", task.ID))
	s.AddFlash("Task #" + strconv.FormatInt(task.ID, 10) + " created.")
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// UpdateTaskStatus moves a task to another status
func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	s := authedSession(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	status := r.PostForm.Get("status")
	if !client.ValidTaskStatus(status) {
		http.Error(w, "Unknown status", http.StatusBadRequest)
		return
	}

	if _, err := s.API.UpdateTask(r.Context(), id, client.TaskPatch{Status: &status}); err != nil {
		h.handleAPIError(w, r, s, err)
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// DeleteTask removes a task and its subtasks
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	s := authedSession(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.API.DeleteTask(r.Context(), id); err != nil {
		h.handleAPIError(w, r, s, err)
		return
	}
	s.AddFlash("Task #" + strconv.FormatInt(id, 10) + " deleted.")
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// pathID parses the {id} route variable
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
