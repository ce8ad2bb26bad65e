package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mindpal-api/internal/contextutil"
	"mindpal-api/internal/service"
	"mindpal-api/internal/storage"
)

// NoteHandler handles HTTP requests for clinical notes.
type NoteHandler struct {
	noteService service.NoteService
	runner      service.TaskRunner
	logger      *slog.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(noteService service.NoteService, runner service.TaskRunner) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
		runner:      runner,
		logger:      slog.Default(),
	}
}

// NoteResponse represents a note in HTTP responses.
type NoteResponse struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	AuthorID        string    `json:"author_id"`
	ParentNoteID    *string   `json:"parent_note_id,omitempty"`
	Kind            string    `json:"kind"`
	Title           string    `json:"title"`
	ContentMarkdown string    `json:"content_markdown"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NoteListResponse represents one entry in a note list, without content.
type NoteListResponse struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	AuthorID     string    `json:"author_id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	VersionCount int       `json:"version_count"`
}

// VersionResponse represents a note version in HTTP responses.
type VersionResponse struct {
	ID              string    `json:"id"`
	NoteID          string    `json:"note_id"`
	EditorID        string    `json:"editor_id"`
	ContentMarkdown string    `json:"content_markdown"`
	VersionNumber   int       `json:"version_number"`
	CreatedAt       time.Time `json:"created_at"`
}

// toNoteResponse converts a storage record to its HTTP representation.
func toNoteResponse(note *storage.NoteRecord) NoteResponse {
	return NoteResponse{
		ID:              note.ID,
		PatientID:       note.PatientID,
		AuthorID:        note.AuthorID,
		ParentNoteID:    note.ParentNoteID,
		Kind:            note.Kind,
		Title:           note.Title,
		ContentMarkdown: note.ContentMarkdown,
		CreatedAt:       note.CreatedAt,
		UpdatedAt:       note.UpdatedAt,
	}
}

// toVersionResponse converts a version record to its HTTP representation.
func toVersionResponse(v *storage.NoteVersionRecord) VersionResponse {
	return VersionResponse{
		ID:              v.ID,
		NoteID:          v.NoteID,
		EditorID:        v.EditorID,
		ContentMarkdown: v.ContentMarkdown,
		VersionNumber:   v.VersionNumber,
		CreatedAt:       v.CreatedAt,
	}
}

// CreateNoteRequest represents the HTTP request payload for note creation.
type CreateNoteRequest struct {
	PatientID       string  `json:"patient_id"`
	Kind            string  `json:"kind"`
	Title           string  `json:"title"`
	ContentMarkdown string  `json:"content_markdown"`
	ParentNoteID    *string `json:"parent_note_id,omitempty"`
}

// Create handles POST /api/notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.noteService.Create(ctx, service.CreateNoteRequest{
		PatientID:       req.PatientID,
		Kind:            req.Kind,
		Title:           req.Title,
		ContentMarkdown: req.ContentMarkdown,
		ParentNoteID:    req.ParentNoteID,
	}, contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create note")
		return
	}

	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// List handles GET /api/notes?patient_id=&kind=.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id query parameter is required")
		return
	}
	kind := r.URL.Query().Get("kind")

	items, err := h.noteService.ListByPatient(ctx, patientID, contextutil.UserIDFromContext(ctx), kind)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list notes")
		return
	}

	resp := make([]NoteListResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, NoteListResponse{
			ID:           item.Note.ID,
			PatientID:    item.Note.PatientID,
			AuthorID:     item.Note.AuthorID,
			Kind:         item.Note.Kind,
			Title:        item.Note.Title,
			CreatedAt:    item.Note.CreatedAt,
			UpdatedAt:    item.Note.UpdatedAt,
			VersionCount: item.VersionCount,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/notes/{noteID}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	note, err := h.noteService.Get(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load note")
		return
	}

	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// UpdateNoteRequest represents the HTTP request payload for note updates.
// Omitted fields are left unchanged.
type UpdateNoteRequest struct {
	Title           *string `json:"title,omitempty"`
	ContentMarkdown *string `json:"content_markdown,omitempty"`
}

// Update handles PUT /api/notes/{noteID}.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.noteService.Update(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx), service.NotePatch{
		Title:           req.Title,
		ContentMarkdown: req.ContentMarkdown,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to update note")
		return
	}

	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// Delete handles DELETE /api/notes/{noteID}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.noteService.Delete(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx)); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete note")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListVersions handles GET /api/notes/{noteID}/versions.
func (h *NoteHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	versions, err := h.noteService.ListVersions(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list versions")
		return
	}

	resp := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, toVersionResponse(v))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetVersion handles GET /api/notes/{noteID}/versions/{versionNumber}.
func (h *NoteHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	versionNumber, err := strconv.Atoi(chi.URLParam(r, "versionNumber"))
	if err != nil || versionNumber < 1 {
		writeError(w, http.StatusBadRequest, "version number must be a positive integer")
		return
	}

	version, err := h.noteService.GetVersion(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx), versionNumber)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load version")
		return
	}

	writeJSON(w, http.StatusOK, toVersionResponse(version))
}

// Restore handles POST /api/notes/{noteID}/restore/{versionNumber}.
func (h *NoteHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	versionNumber, err := strconv.Atoi(chi.URLParam(r, "versionNumber"))
	if err != nil || versionNumber < 1 {
		writeError(w, http.StatusBadRequest, "version number must be a positive integer")
		return
	}

	note, err := h.noteService.Restore(ctx, chi.URLParam(r, "noteID"), versionNumber, contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to restore version")
		return
	}

	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// ListSplits handles GET /api/notes/{noteID}/splits.
func (h *NoteHandler) ListSplits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	splits, err := h.noteService.ListSplits(ctx, chi.URLParam(r, "noteID"), contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list splits")
		return
	}

	resp := make([]NoteResponse, 0, len(splits))
	for _, note := range splits {
		resp = append(resp, toNoteResponse(note))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GenerateSplitsRequest represents the HTTP request payload for split
// generation. Categories are optional; when absent the generator infers them.
type GenerateSplitsRequest struct {
	Categories []string `json:"categories,omitempty"`
}

// GenerateSplitsResponse acknowledges a split-generation request.
// NoteIDs is populated only when the synchronous runner is configured.
type GenerateSplitsResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	NoteIDs []string `json:"note_ids,omitempty"`
}

// GenerateSplits handles POST /api/notes/{noteID}/generate-splits.
// Preconditions are checked synchronously; the batch itself runs under the
// configured task runner.
func (h *NoteHandler) GenerateSplits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	noteID := chi.URLParam(r, "noteID")
	userID := contextutil.UserIDFromContext(ctx)

	var req GenerateSplitsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WarnContext(ctx, "invalid request body", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if err := h.noteService.PrepareSplitGeneration(ctx, noteID, userID); err != nil {
		handleServiceError(w, ctx, err, "Failed to start split generation")
		return
	}

	ids, err := h.runner.RunSplitGeneration(ctx, noteID, req.Categories, userID)
	if err != nil {
		handleServiceError(w, ctx, err, "Split generation failed")
		return
	}

	if ids == nil {
		writeJSON(w, http.StatusAccepted, GenerateSplitsResponse{
			Status:  "processing",
			Message: "Split generation started. The split notes will appear once generation completes.",
		})
		return
	}

	writeJSON(w, http.StatusOK, GenerateSplitsResponse{
		Status:  "completed",
		NoteIDs: ids,
	})
}

// DefaultCategoriesResponse lists the fallback split categories.
type DefaultCategoriesResponse struct {
	Categories []string `json:"categories"`
}

// DefaultCategories handles GET /api/notes/categories/defaults.
func (h *NoteHandler) DefaultCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DefaultCategoriesResponse{Categories: service.DefaultCategories()})
}
