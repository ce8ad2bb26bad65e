package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"

	"mindpal-api/internal/contextutil"
	"mindpal-api/internal/service"
)

// RenderHandler serves notes as rendered HTML pages.
type RenderHandler struct {
	noteService service.NoteService
	parser      goldmark.Markdown
	template    *template.Template
	logger      *slog.Logger
}

// notePageData holds template data for rendered note pages.
type notePageData struct {
	Title   string
	Kind    string
	Updated string
	Content template.HTML
}

// NewRenderHandler creates a new handler for rendered note pages.
func NewRenderHandler(noteService service.NoteService) *RenderHandler {
	tmpl := template.Must(template.New("note").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 800px;
      line-height: 1.7;
      color: #1f2933;
    }
    header {
      margin-bottom: 2rem;
      border-bottom: 1px solid #d9dee5;
      padding-bottom: 1rem;
    }
    h1 { margin-top: 0; }
    .meta { color: #61707f; font-size: 0.9rem; }
    article pre {
      background: #f2f4f7;
      padding: 1rem;
      border-radius: 8px;
      overflow-x: auto;
    }
    article blockquote {
      border-left: 3px solid #d9dee5;
      margin-left: 0;
      padding-left: 1rem;
      color: #61707f;
    }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <p class="meta">{{.Kind}} note &middot; last updated {{.Updated}}</p>
  </header>
  <article>{{.Content}}</article>
</body>
</html>`))

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(ghhtml.WithHardWraps()),
	)

	return &RenderHandler{
		noteService: noteService,
		parser:      md,
		template:    tmpl,
		logger:      slog.Default(),
	}
}

// ServeHTTP handles GET /api/notes/{noteID}/page.
func (h *RenderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	note, err := h.noteService.Get(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load note")
		return
	}

	var rendered bytes.Buffer
	if err := h.parser.Convert([]byte(note.ContentMarkdown), &rendered); err != nil {
		logger.ErrorContext(ctx, "failed to render markdown", "error", err, "note_id", note.ID)
		writeError(w, http.StatusInternalServerError, "Failed to render note")
		return
	}

	data := notePageData{
		Title:   note.Title,
		Kind:    note.Kind,
		Updated: note.UpdatedAt.Format("2006-01-02 15:04"),
		Content: template.HTML(rendered.String()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute note template", "error", err, "note_id", note.ID)
	}
}
