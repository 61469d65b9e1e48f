package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/taskboard/internal/client"
)

var requiredPages = []string{
	"home.html",
	"login.html",
	"register.html",
	"profile.html",
	"tasks.html",
	"users.html",
	"error.html",
}

func baseData(page string) map[string]interface{} {
	return map[string]interface{}{
		"User":        nil,
		"CurrentPage": page,
		"Flashes":     nil,
		"Error":       "",
	}
}

func TestLoadTemplates_Embedded(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	for _, page := range requiredPages {
		assert.True(t, ts.Has(page), page)
	}
	assert.Equal(t, len(requiredPages), len(ts.Names()))
}

func TestLoadTemplates_Directory(t *testing.T) {
	ts, err := LoadTemplates("templates")
	require.NoError(t, err)
	assert.True(t, ts.Has("home.html"))

	_, err = LoadTemplates(t.TempDir())
	assert.Error(t, err, "a directory without pages is rejected")
}

func TestLoadTemplates_ParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "layouts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layouts", "base.html"), []byte(`{{define "base"}}{{template "content" .}}{{end}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "broken.html"), []byte(`{{define "content"}}{{if}}{{end}}`), 0o644))

	_, err := LoadTemplates(dir)
	assert.ErrorContains(t, err, "broken.html")
}

func TestExecute_PagesAreIsolated(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	var buf bytes.Buffer
	data := baseData("home")
	data["Tasks"] = []client.Task{{
		ID: 3, Title: "Public roadmap", Status: client.TaskPending,
		Description: "Ship **v2**",
		UserInfo:    client.UserInfo{Email: "bob@example.com"},
		Subtasks:    []client.Task{{ID: 4, Title: "Draft", Status: client.TaskDone}},
	}}
	require.NoError(t, ts.Execute(&buf, "home.html", data))
	out := buf.String()
	assert.Contains(t, out, "<title>Public tasks - Task Board</title>")
	assert.Contains(t, out, "#3 Public roadmap")
	assert.Contains(t, out, "bob@example.com")
	assert.Contains(t, out, "<strong>v2</strong>")
	assert.Contains(t, out, `title="Ship v2"`)
	assert.Contains(t, out, "#4 Draft")
	assert.Contains(t, out, `href="/login"`, "anonymous nav")
	assert.NotContains(t, out, "Add task")

	buf.Reset()
	require.NoError(t, ts.Execute(&buf, "error.html", map[string]interface{}{
		"User": nil, "CurrentPage": "error", "Flashes": nil, "Error": "", "Message": "backend unavailable",
	}))
	assert.Contains(t, buf.String(), "backend unavailable")
	assert.NotContains(t, buf.String(), "Public tasks")

	assert.Error(t, ts.Execute(&buf, "missing.html", nil))
}

func TestExecute_AuthenticatedNav(t *testing.T) {
	ts, err := LoadTemplates("")
	require.NoError(t, err)

	profile := &client.Profile{Email: "ada@example.com", FullName: "Ada Lovelace", RoleName: client.RoleAdministrator}
	data := baseData("tasks")
	data["User"] = profile
	data["Flashes"] = []string{"Task created"}
	data["Group"] = "all"
	data["Groups"] = []string{"all", client.TaskPending}
	data["Tasks"] = []client.Task{{ID: 1, Title: "Write report", Status: client.TaskInProgress}}

	var buf bytes.Buffer
	require.NoError(t, ts.Execute(&buf, "tasks.html", data))
	out := buf.String()
	assert.Contains(t, out, `href="/admin/users"`)
	assert.Contains(t, out, ">AL<")
	assert.Contains(t, out, "Task created")
	assert.Contains(t, out, `action="/tasks/1/delete"`)
	assert.Contains(t, out, `<option value="in_progress" selected>`)

	profile.RoleName = client.RoleUser
	buf.Reset()
	require.NoError(t, ts.Execute(&buf, "tasks.html", data))
	assert.NotContains(t, buf.String(), `href="/admin/users"`)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "In progress", StatusLabel(client.TaskInProgress))
	assert.Equal(t, "Done", StatusLabel(client.TaskDone))
	assert.Equal(t, "archived", StatusLabel("archived"))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AL", initials("Ada Lovelace"))
	assert.Equal(t, "AB", initials("ada byron king"))
	assert.Equal(t, "?", initials("  "))
}
