package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "status", "history"
}

// StatusPageData is the template data for the status page.
type StatusPageData struct {
	PageData
	Status   *ops.StatusOutput
	Comments []CommentPreview
}

// CommentPreview is a queued comment prepared for display.
type CommentPreview struct {
	Position int
	Text     string
	HTML     template.HTML
}

// HistoryPageData is the template data for the publish history page.
type HistoryPageData struct {
	PageData
	Items      []db.Publish
	Pagination ops.Pagination
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       *zap.Logger
}

// NewRenderer parses the layout and page templates.
func NewRenderer(version string, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	funcMap := template.FuncMap{
		"add":            func(a, b int) int { return a + b },
		"prevOffset":     func(offset, limit int) int { return max(offset-limit, 0) },
		"formatTime":     formatTime,
		"formatDateTime": formatDateTime,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).Parse(layoutTemplate))

	pages := map[string]string{
		"status":  statusTemplate,
		"history": historyTemplate,
		"error":   errorTemplate,
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, text := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.Parse(text))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error("template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var mErr *errors.MurmurError
	if !stderrors.As(err, &mErr) {
		mErr = errors.NewInternal(err)
	}

	status := mErr.Status
	message := mErr.Message
	if status >= http.StatusInternalServerError {
		r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		if mErr.Code == errors.ErrInternal {
			message = "an internal error occurred"
		}
	}

	// HTMX request: return HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if strings.HasPrefix(req.URL.Path, "/api/") || strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(mErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts comment text to HTML using goldmark. Raw HTML in
// the input is omitted by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}

func serveStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(stylesheet))
}

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} - Murmur</title>
<link rel="stylesheet" href="/static/style.css">
</head>
<body>
<header>
<nav>
<a href="/status"{{if eq .Nav "status"}} class="active"{{end}}>Status</a>
<a href="/history"{{if eq .Nav "history"}} class="active"{{end}}>History</a>
</nav>
<span class="version">murmur {{.Version}}</span>
</header>
<main>{{template "content" .}}</main>
</body>
</html>{{end}}`

const statusTemplate = `{{define "content"}}
<h1>Status</h1>
<section class="card">
<h2>Exclusion</h2>
<p>Excluding <strong>{{.Status.Exclusion.ExcludeCount}}</strong> of at most {{.Status.Exclusion.Max}} recent comments on {{.Status.Exclusion.State.Date}}.</p>
<p class="meta">Working day started {{formatDateTime .Status.Exclusion.State.StartTime}}{{with .Status.Exclusion.State.LastComment}}, last comment {{formatDateTime .}}{{end}}</p>
<form method="post" action="/exclusion/reset"><input type="hidden" name="confirm" value="true"><button type="submit">Reset count</button></form>
</section>
<section class="card">
<h2>Published</h2>
<p>{{.Status.PublishedToday}} today, {{.Status.PublishedTotal}} in total.</p>
{{with .Status.LastPublished}}<blockquote>{{.CommentText}}</blockquote>
<p class="meta">{{.Tier}} at {{formatTime .PublishedAt}}</p>{{end}}
</section>
<section class="card">
<h2>Buffer</h2>
<p>{{.Status.Buffer.Queued}} of {{.Status.Buffer.Capacity}} queued{{if .Status.Buffer.NeedsRefill}}, <span class="warn">refill due</span>{{end}}{{if .Status.Buffer.Refilling}}, refilling{{end}}.</p>
{{if .Comments}}<ol class="comments">{{range .Comments}}<li>{{.HTML}}</li>{{end}}</ol>{{else}}<p class="empty">Buffer is empty.</p>{{end}}
{{with .Status.Buffer.PreviousComment}}<p class="meta">Previous: {{.}}</p>{{end}}
<form method="post" action="/buffer/clear"><input type="hidden" name="confirm" value="true"><button type="submit">Clear buffer</button></form>
</section>
{{end}}`

const historyTemplate = `{{define "content"}}
<h1>History</h1>
{{if .Items}}<table>
<thead><tr><th>Published</th><th>Comment</th><th>Tier</th><th>Excluded</th></tr></thead>
<tbody>{{range .Items}}<tr><td>{{formatTime .PublishedAt}}</td><td>{{.CommentText}}</td><td>{{.Tier}}</td><td>{{.ExcludeCount}}</td></tr>{{end}}</tbody>
</table>
<nav class="pagination">
{{if gt .Pagination.Offset 0}}<a href="/history?limit={{.Pagination.Limit}}&offset={{prevOffset .Pagination.Offset .Pagination.Limit}}">Newer</a>{{end}}
{{if .Pagination.HasMore}}<a href="/history?limit={{.Pagination.Limit}}&offset={{add .Pagination.Offset .Pagination.Limit}}">Older</a>{{end}}
<span class="meta">{{.Pagination.Total}} total</span>
</nav>{{else}}<p class="empty">Nothing published yet.</p>{{end}}
{{end}}`

const errorTemplate = `{{define "content"}}
<h1>Error {{.StatusCode}}</h1>
<p class="error-message">{{.Message}}</p>
<p><a href="/status">Back to status</a></p>
{{end}}`

const stylesheet = `body { font-family: system-ui, sans-serif; margin: 0; color: #222; background: #fafafa; }
header { display: flex; justify-content: space-between; align-items: center; padding: 0.75rem 1.5rem; background: #263238; }
header a { color: #cfd8dc; margin-right: 1rem; text-decoration: none; }
header a.active { color: #fff; font-weight: 600; }
.version { color: #90a4ae; font-size: 0.85rem; }
main { max-width: 960px; margin: 1.5rem auto; padding: 0 1.5rem; }
.card { background: #fff; border: 1px solid #e0e0e0; border-radius: 6px; padding: 1rem 1.25rem; margin-bottom: 1rem; }
.meta, .empty { color: #757575; font-size: 0.9rem; }
.warn { color: #c62828; }
.error-message { color: #c62828; }
table { width: 100%; border-collapse: collapse; background: #fff; }
th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid #eee; vertical-align: top; }
.pagination a { margin-right: 1rem; }
`
