package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"mindpal-api/internal/contextutil"
	"mindpal-api/internal/service"
)

// PatientHandler handles HTTP requests for patients.
type PatientHandler struct {
	patientService service.PatientService
	logger         *slog.Logger
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(patientService service.PatientService) *PatientHandler {
	return &PatientHandler{
		patientService: patientService,
		logger:         slog.Default(),
	}
}

// PatientResponse represents a patient in HTTP responses.
type PatientResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePatientRequest represents the HTTP request payload for patient creation.
type CreatePatientRequest struct {
	FullName string `json:"full_name"`
}

// Create handles POST /api/patients.
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patient, err := h.patientService.Create(ctx, req.FullName, contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create patient")
		return
	}

	writeJSON(w, http.StatusCreated, PatientResponse{
		ID:        patient.ID,
		FullName:  patient.FullName,
		CreatedAt: patient.CreatedAt,
	})
}

// List handles GET /api/patients.
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patients, err := h.patientService.List(ctx, contextutil.UserIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list patients")
		return
	}

	resp := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		resp = append(resp, PatientResponse{
			ID:        p.ID,
			FullName:  p.FullName,
			CreatedAt: p.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
