package render

import (
	"bytes"
	"html"
	"html/template"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// descriptionPolicy allows user markdown output; links to other sites open
// in a new tab and are marked nofollow
var descriptionPolicy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
})

var strictPolicy = sync.OnceValue(bluemonday.StrictPolicy)

// Checklist items ("- [ ] step") in task descriptions
var checkboxes = []struct{ from, to []byte }{
	{[]byte("<li>[ ] "), []byte(`<li class="check">&#9744; `)},
	{[]byte("<li>[x] "), []byte(`<li class="check done">&#9745; `)},
	{[]byte("<li>[X] "), []byte(`<li class="check done">&#9745; `)},
}

// Markdown converts a task description to safe HTML for use in templates
func Markdown(markdown string) template.HTML {
	unsafe := blackfriday.Run([]byte(markdown))
	safe := descriptionPolicy().SanitizeBytes(unsafe)

	// Runs after sanitizing; the replacements are fixed markup
	for _, c := range checkboxes {
		safe = bytes.ReplaceAll(safe, c.from, c.to)
	}
	return template.HTML(safe)
}

// Summary renders a task description as one line of plain text, cut to at
// most limit runes
func Summary(markdown string, limit int) string {
	text := strictPolicy().Sanitize(string(blackfriday.Run([]byte(markdown))))
	text = strings.Join(strings.Fields(html.UnescapeString(text)), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
