package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/exclusion"
	"github.com/hpungsan/murmur/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	buf      *buffer.Buffer
	counter  *exclusion.Counter
	log      *zap.Logger
	renderer *Renderer
	now      func() time.Time
}

func newHandlers(deps Deps, version string) *Handlers {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("web")
	return &Handlers{
		db:       deps.DB,
		cfg:      deps.Config,
		buf:      deps.Buffer,
		counter:  deps.Counter,
		log:      log,
		renderer: NewRenderer(version, log),
		now:      time.Now,
	}
}

// HandleStatus handles GET /status: buffer contents, exclusion state and
// the latest publish.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ops.Status(r.Context(), h.db, h.buf, h.counter, h.now())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "status", StatusPageData{
		PageData: PageData{
			Title:   "Status",
			Version: h.renderer.version,
			Nav:     "status",
		},
		Status:   status,
		Comments: previews(status.Buffer.Comments),
	})
}

// HandleHistory handles GET /history: the publish log, newest first.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(r.Context(), h.db, ops.HistoryInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultHistoryLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "history", HistoryPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "history",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleAPIStatus handles GET /api/status.
func (h *Handlers) HandleAPIStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ops.Status(r.Context(), h.db, h.buf, h.counter, h.now())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, status)
}

// HandleAPIHistory handles GET /api/history.
func (h *Handlers) HandleAPIHistory(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(r.Context(), h.db, ops.HistoryInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultHistoryLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleBufferClear handles POST /buffer/clear. Requires confirm=true.
func (h *Handlers) HandleBufferClear(w http.ResponseWriter, r *http.Request) {
	if !h.confirmed(w, r) {
		return
	}

	result, err := ops.BufferClear(r.Context(), h.buf)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Warn("buffer cleared from dashboard", zap.Int("cleared", result.Cleared))

	h.respondAction(w, r, fmt.Sprintf("Cleared %d comments.", result.Cleared), result)
}

// HandleExclusionReset handles POST /exclusion/reset. Requires confirm=true.
func (h *Handlers) HandleExclusionReset(w http.ResponseWriter, r *http.Request) {
	if !h.confirmed(w, r) {
		return
	}

	result, err := ops.ExclusionReset(r.Context(), h.counter)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Warn("exclusion reset from dashboard", zap.Int("exclude_count", result.ExcludeCount))

	h.respondAction(w, r, fmt.Sprintf("Exclusion count reset to %d.", result.ExcludeCount), result)
}

func (h *Handlers) confirmed(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return false
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return false
	}
	return true
}

// respondAction answers a mutating request with an HTML fragment for htmx,
// JSON when asked for, or a redirect back to the status page.
func (h *Handlers) respondAction(w http.ResponseWriter, r *http.Request, message string, data any) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="action-result">` + template.HTMLEscapeString(message) + `</div>`))
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, data)
		return
	}

	http.Redirect(w, r, "/status", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// previews renders queued comments for display.
func previews(comments []string) []CommentPreview {
	out := make([]CommentPreview, len(comments))
	for i, c := range comments {
		out[i] = CommentPreview{Position: i + 1, Text: c, HTML: renderMarkdown(c)}
	}
	return out
}
