package render

import (
	"crypto/md5"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/devilmonastery/taskboard/internal/client"
	"github.com/devilmonastery/taskboard/internal/pkg/timeutil"
)

//go:embed templates
var embedded embed.FS

// TemplateSet holds all parsed page templates
// Each page is stored as a completely separate template.Template
// to avoid {{define "content"}} block collisions
type TemplateSet struct {
	pages map[string]*template.Template
	mu    sync.RWMutex
}

// Execute renders the specified page template
// pageName should be the filename like "tasks.html"
// This method always executes the "base" layout, which will use the
// {{define "content"}} and {{define "title"}} blocks from the specific page
func (ts *TemplateSet) Execute(w io.Writer, pageName string, data interface{}) error {
	ts.mu.RLock()
	tmpl, ok := ts.pages[pageName]
	ts.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", pageName)
	}

	return tmpl.ExecuteTemplate(w, "base", data)
}

// Has checks if a template exists
func (ts *TemplateSet) Has(pageName string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.pages[pageName]
	return ok
}

// Names returns all available template names, sorted
func (ts *TemplateSet) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	names := make([]string, 0, len(ts.pages))
	for name := range ts.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"renderMarkdown": Markdown,
		"summary":        Summary,
		"dict": func(values ...interface{}) map[string]interface{} {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},
		"add": func(a, b int) int {
			return a + b
		},
		"initials": initials,
		"avatarColors": func(name string) string {
			if name == "" {
				return "avatar-gray"
			}
			// Deterministic per email so a user keeps their color
			hash := md5.Sum([]byte(strings.ToLower(name)))
			colors := []string{
				"avatar-blue", "avatar-green", "avatar-purple", "avatar-pink",
				"avatar-indigo", "avatar-red", "avatar-teal", "avatar-orange",
			}
			return colors[int(hash[0])%len(colors)]
		},
		"statusLabel": StatusLabel,
		"statuses": func() []string {
			return []string{client.TaskPending, client.TaskInProgress, client.TaskDone}
		},
		"localTime": timeutil.FormatExpiry,
		"isAdmin": func(p *client.Profile) bool {
			return p.IsAdministrator()
		},
		"title": func(s string) string {
			if s == "" {
				return ""
			}
			return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
		},
	}
}

// StatusLabel returns the human readable name of a task status
func StatusLabel(status string) string {
	switch status {
	case client.TaskPending:
		return "Pending"
	case client.TaskInProgress:
		return "In progress"
	case client.TaskDone:
		return "Done"
	}
	return status
}

func initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}

	var result strings.Builder
	for i, word := range words {
		if i >= 2 { // Maximum of 2 initials
			break
		}
		result.WriteString(strings.ToUpper(word[:1]))
	}
	return result.String()
}

// LoadTemplates parses the page templates. An empty dir uses the templates
// built into the binary; otherwise dir must have the same layout
// (layouts/base.html, components/*.html, pages/*.html).
func LoadTemplates(dir string) (*TemplateSet, error) {
	if dir == "" {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		return LoadTemplatesFS(sub)
	}
	return LoadTemplatesFS(os.DirFS(dir))
}

// LoadTemplatesFS parses the page templates found in fsys
func LoadTemplatesFS(fsys fs.FS) (*TemplateSet, error) {
	componentFiles, err := fs.Glob(fsys, "components/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list component templates: %w", err)
	}

	pageFiles, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list page templates: %w", err)
	}

	if len(pageFiles) == 0 {
		return nil, fmt.Errorf("no page templates found in pages/")
	}

	ts := &TemplateSet{
		pages: make(map[string]*template.Template),
	}

	// Parse each page into its own isolated template: base + components + this page
	for _, pageFile := range pageFiles {
		pageName := path.Base(pageFile)

		filesToParse := []string{"layouts/base.html"}
		filesToParse = append(filesToParse, componentFiles...)
		filesToParse = append(filesToParse, pageFile)

		pageTemplate, err := template.New("base").Funcs(funcMap()).ParseFS(fsys, filesToParse...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", pageName, err)
		}

		ts.pages[pageName] = pageTemplate
	}

	return ts, nil
}

// LogTemplateNames logs all available template names
func LogTemplateNames(ts *TemplateSet, log *slog.Logger) {
	log.Debug("loaded templates", slog.Any("names", ts.Names()))
}
