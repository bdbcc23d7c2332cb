package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/nimbus/internal/dashboard"
	"github.com/kjstillabower/nimbus/internal/observability"
	"github.com/kjstillabower/nimbus/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// pageData is the template root.
type pageData struct {
	Page        view.Page
	Notice      string
	LoadingText string
}

// renderPage writes the dashboard HTML. The page is buffered so a template failure can still
// produce a clean 500.
func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, s dashboard.State, bar view.SearchBar, notice string) {
	data := pageData{
		Page:        view.NewPage(s, bar, h.now()),
		Notice:      notice,
		LoadingText: view.LoadingText,
	}
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render dashboard", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
