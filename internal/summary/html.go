package summary

import (
	"bytes"
	"html/template"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var htmlTemplates = template.Must(template.New("summary").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`
{{- define "header"}}<section class="ticket-summary-header"><h2>{{if .Cancelled}}<s>{{.Title}}</s>{{else}}{{.Title}}{{end}}</h2></section>{{end -}}
{{- define "timestamps"}}<section class="ticket-summary-timestamps"><ul>{{with .Created}}<li><strong>Created:</strong> {{.}}</li>{{end}}{{with .Updated}}<li><strong>Updated:</strong> {{.}}</li>{{end}}</ul></section>{{end -}}
{{- define "meta"}}<section class="ticket-summary-meta" data-stage="{{.Stage}}" data-color="{{.Color}}"><ul>{{with .Status}}<li><strong>Status:</strong> {{.}}</li>{{end}}{{with .HoldReason}}<li><strong>Hold reason:</strong> {{.}}</li>{{end}}{{with .Priority}}<li><strong>Priority:</strong> {{.}}</li>{{end}}{{with .Due}}<li><strong>Due:</strong> {{.}}</li>{{end}}{{with .Countdown}}<li><strong>SLA:</strong> {{.}}</li>{{end}}</ul></section>{{end -}}
{{- define "people"}}<section class="ticket-summary-people"><ul>{{with .Requester}}<li><strong>Requester:</strong> {{.}}</li>{{end}}{{if .Watchers}}<li><strong>Watchers:</strong> {{join .Watchers ", "}}</li>{{end}}</ul></section>{{end -}}
{{- define "description"}}<section class="ticket-summary-description">{{.DescriptionHTML}}</section>{{end -}}
{{- define "links"}}<section class="ticket-summary-links">{{if .Links}}<ul>{{range .Links}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}</section>{{end -}}
{{- define "notes"}}<section class="ticket-summary-notes">{{.NotesHTML}}</section>{{end -}}
{{- define "tags"}}<section class="ticket-summary-tags">{{if .Tags}}<ul>{{range .Tags}}<li class="tag">{{.}}</li>{{end}}</ul>{{end}}</section>{{end -}}
{{- define "updates"}}<section class="ticket-summary-updates">{{if .Updates}}<ol>{{range .Updates}}<li><p class="update-meta">{{.When}} · {{.Author}}</p>{{.BodyHTML}}</li>{{end}}</ol>{{end}}</section>{{end -}}
`))

// The goldmark parser carries no per-call state and is shared.
var (
	markdown     goldmark.Markdown
	markdownOnce sync.Once
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		)
	})
	return markdown
}

// renderMarkdown converts src to HTML. Raw HTML in src is not passed through.
func renderMarkdown(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(strings.TrimSpace(buf.String()))
}
