package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// PatientStore defines the interface for patient storage operations.
// OwnedBy doubles as the ownership oracle: a patient that exists but belongs
// to another user is reported as ErrNotFound, identical to a missing one.
type PatientStore interface {
	// Insert inserts a new patient. The patient.ID must be set before calling.
	Insert(ctx context.Context, patient *PatientRecord) error
	// ListByOwner returns all patients created by the given user, newest first.
	ListByOwner(ctx context.Context, userID string) ([]*PatientRecord, error)
	// OwnedBy returns the patient only if it was created by the given user.
	// Returns ErrNotFound for both missing and not-owned patients.
	OwnedBy(ctx context.Context, patientID, userID string) (*PatientRecord, error)
}

// PatientRepo provides methods for patient operations.
// It implements the PatientStore interface.
type PatientRepo struct {
	db DBTX
}

var _ PatientStore = (*PatientRepo)(nil)

// NewPatientRepo creates a new PatientRepo over a *sql.DB or *sql.Tx.
func NewPatientRepo(db DBTX) *PatientRepo {
	return &PatientRepo{db: db}
}

// Insert inserts a new patient.
func (r *PatientRepo) Insert(ctx context.Context, patient *PatientRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO patients (id, created_by, full_name, created_at) VALUES (?, ?, ?, ?)",
		patient.ID, patient.CreatedBy, patient.FullName, patient.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert patient: %w", err)
	}
	return nil
}

// ListByOwner returns all patients created by the given user, newest first.
func (r *PatientRepo) ListByOwner(ctx context.Context, userID string) ([]*PatientRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, created_by, full_name, created_at FROM patients WHERE created_by = ? ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var patients []*PatientRecord
	for rows.Next() {
		var p PatientRecord
		if err := rows.Scan(&p.ID, &p.CreatedBy, &p.FullName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return patients, nil
}

// OwnedBy returns the patient only if it was created by the given user.
func (r *PatientRepo) OwnedBy(ctx context.Context, patientID, userID string) (*PatientRecord, error) {
	var p PatientRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, created_by, full_name, created_at FROM patients WHERE id = ? AND created_by = ?",
		patientID, userID,
	).Scan(&p.ID, &p.CreatedBy, &p.FullName, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query patient: %w", err)
	}

	return &p, nil
}
