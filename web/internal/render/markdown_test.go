package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
	}{
		{
			name:  "task description",
			input: "# Quarterly report\n\n## Steps\n\n- Collect the numbers\n- Ask **finance** to review\n- Upload to `/reports`\n\nDue before the *board* meeting.",
			contains: []string{
				"<h1>Quarterly report</h1>",
				"<h2>Steps</h2>",
				"<li>Collect the numbers</li>",
				"<strong>finance</strong>",
				"<code>/reports</code>",
				"<em>board</em>",
			},
		},
		{
			name:     "ordered steps",
			input:    "1. Draft\n2. Review\n3. Publish",
			contains: []string{"<ol>", "<li>Draft</li>", "<li>Publish</li>", "</ol>"},
		},
		{
			name:     "code block",
			input:    "```\ntaskboard tasks list --group done\n```",
			contains: []string{"<pre><code>", "taskboard tasks list --group done", "</code></pre>"},
		},
		{
			name:     "checklist",
			input:    "- [x] Collect data\n- [ ] Write summary",
			contains: []string{`<li class="check done">&#9745; Collect data</li>`, `<li class="check">&#9744; Write summary</li>`},
		},
		{
			name:     "external link opens in new tab",
			input:    "[spec sheet](https://docs.example.com/q3)",
			contains: []string{`href="https://docs.example.com/q3"`, `rel="nofollow noopener"`, `target="_blank"`},
		},
		{
			name:        "relative link stays in tab",
			input:       "[see task 4](/tasks#4)",
			contains:    []string{`href="/tasks#4"`},
			notContains: []string{`target="_blank"`},
		},
		{
			name:        "script tag",
			input:       "Ship it <script>fetch('/api/accounts/logout/')</script>",
			contains:    []string{"Ship it"},
			notContains: []string{"<script"},
		},
		{
			name:        "javascript link",
			input:       "[click](javascript:alert(document.cookie))",
			notContains: []string{"javascript:"},
		},
		{
			name:        "event handler attribute",
			input:       `<img src="x.png" onerror="alert(1)">`,
			notContains: []string{"onerror"},
		},
		{
			name:        "checklist marker from raw html is not trusted",
			input:       `<li class="check" onclick="x()">[ ] item</li>`,
			notContains: []string{"onclick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := string(Markdown(tt.input))
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestMarkdown_Empty(t *testing.T) {
	assert.Empty(t, strings.TrimSpace(string(Markdown(""))))
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"plain", "Use the Q3 numbers", 140, "Use the Q3 numbers"},
		{"markup stripped", "# Report\n\nUse the **Q3** numbers & `totals`", 140, "Report Use the Q3 numbers & totals"},
		{"script dropped", "Ship <script>alert(1)</script>it", 140, "Ship it"},
		{"truncated", "Collect the numbers from finance", 12, "Collect the…"},
		{"multibyte", "Проверить отчёт до пятницы", 9, "Проверит…"},
		{"no limit", "Collect the numbers", 0, "Collect the numbers"},
		{"empty", "", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.input, tt.max))
		})
	}
}
