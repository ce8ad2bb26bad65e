package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/signintech/gopdf"

	"mindpal-api/internal/contextutil"
	"mindpal-api/internal/service"
	"mindpal-api/internal/storage"
)

// fontPaths are the common install locations for DejaVuSans, tried in order.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// ExportHandler serves notes as downloadable PDF documents.
type ExportHandler struct {
	noteService service.NoteService
	logger      *slog.Logger
}

// NewExportHandler creates a new handler for PDF note export.
func NewExportHandler(noteService service.NoteService) *ExportHandler {
	return &ExportHandler{
		noteService: noteService,
		logger:      slog.Default(),
	}
}

// ServeHTTP handles GET /api/notes/{noteID}/export.pdf.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	note, err := h.noteService.Get(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load note")
		return
	}

	data, err := renderNotePDF(note)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render PDF", "error", err, "note_id", note.ID)
		writeError(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", note.ID+".pdf"))
	_, _ = w.Write(data)
}

// renderNotePDF lays out a note as an A4 PDF document.
func renderNotePDF(note *storage.NoteRecord) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, ensure ttf-dejavu is installed: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 18); err != nil {
		return nil, err
	}
	_ = pdf.Cell(nil, note.Title)
	pdf.Br(26)

	if err := pdf.SetFont("DejaVu", "", 10); err != nil {
		return nil, err
	}
	_ = pdf.Cell(nil, fmt.Sprintf("Kind: %s", note.Kind))
	pdf.Br(14)
	_ = pdf.Cell(nil, fmt.Sprintf("Patient: %s", note.PatientID))
	pdf.Br(14)
	_ = pdf.Cell(nil, fmt.Sprintf("Last updated: %s", note.UpdatedAt.Format("2006-01-02 15:04")))
	pdf.Br(22)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}

	const textWidth = 480.0
	const pageBottom = 800.0
	for _, paragraph := range strings.Split(note.ContentMarkdown, "\n") {
		if paragraph == "" {
			pdf.Br(8)
			continue
		}
		lines, err := pdf.SplitText(paragraph, textWidth)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if pdf.GetY() > pageBottom {
				pdf.AddPage()
			}
			_ = pdf.Cell(nil, line)
			pdf.Br(15)
		}
	}

	return pdf.GetBytesPdf(), nil
}
