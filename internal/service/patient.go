package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"mindpal-api/internal/storage"
)

// PatientService manages the minimal patient surface the notes subsystem
// needs: creating patients and listing a user's own patients. Every patient
// is owned by the user who created it.
type PatientService interface {
	Create(ctx context.Context, fullName, userID string) (*storage.PatientRecord, error)
	List(ctx context.Context, userID string) ([]*storage.PatientRecord, error)
}

type patientService struct {
	db *sql.DB
}

// NewPatientService creates a new PatientService.
func NewPatientService(db *sql.DB) PatientService {
	return &patientService{db: db}
}

func (s *patientService) Create(ctx context.Context, fullName, userID string) (*storage.PatientRecord, error) {
	if fullName == "" {
		return nil, &ValidationError{Field: "full_name", Message: "cannot be empty"}
	}

	patient := &storage.PatientRecord{
		ID:        uuid.New().String(),
		CreatedBy: userID,
		FullName:  fullName,
		CreatedAt: time.Now().UTC(),
	}
	if err := storage.NewPatientRepo(s.db).Insert(ctx, patient); err != nil {
		return nil, WrapError(err, "failed to insert patient")
	}
	return patient, nil
}

func (s *patientService) List(ctx context.Context, userID string) ([]*storage.PatientRecord, error) {
	patients, err := storage.NewPatientRepo(s.db).ListByOwner(ctx, userID)
	if err != nil {
		return nil, WrapError(err, "failed to list patients")
	}
	return patients, nil
}
