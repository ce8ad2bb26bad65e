package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// NoteStore defines the interface for note storage operations.
type NoteStore interface {
	// Insert inserts a new note. The note.ID must be set before calling.
	Insert(ctx context.Context, note *NoteRecord) error
	// GetByID gets a note by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*NoteRecord, error)
	// ListByPatient returns all notes for a patient, newest first.
	// If kind is non-empty, only notes of that kind are returned.
	ListByPatient(ctx context.Context, patientID, kind string) ([]*NoteRecord, error)
	// Update persists title, content, and updated_at of an existing note.
	Update(ctx context.Context, note *NoteRecord) error
	// Delete deletes a note. Versions cascade at the database level.
	Delete(ctx context.Context, id string) error
	// FindConceptualization returns the patient's conceptualization note,
	// or ErrNotFound if the patient has none.
	FindConceptualization(ctx context.Context, patientID string) (*NoteRecord, error)
	// ListSplits returns all split notes referencing the given parent,
	// oldest first.
	ListSplits(ctx context.Context, parentNoteID string) ([]*NoteRecord, error)
	// CountSplits returns the number of split notes referencing the parent.
	CountSplits(ctx context.Context, parentNoteID string) (int, error)
}

// NoteRepo provides methods for note operations.
// It implements the NoteStore interface.
type NoteRepo struct {
	db DBTX
}

var _ NoteStore = (*NoteRepo)(nil)

// NewNoteRepo creates a new NoteRepo over a *sql.DB or *sql.Tx.
func NewNoteRepo(db DBTX) *NoteRepo {
	return &NoteRepo{db: db}
}

const noteColumns = "id, patient_id, author_id, parent_note_id, kind, title, content_markdown, created_at, updated_at"

// scanNote scans a single note row.
func scanNote(row interface{ Scan(...any) error }) (*NoteRecord, error) {
	var note NoteRecord
	var parent sql.NullString
	err := row.Scan(&note.ID, &note.PatientID, &note.AuthorID, &parent,
		&note.Kind, &note.Title, &note.ContentMarkdown, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		note.ParentNoteID = &parent.String
	}
	return &note, nil
}

// Insert inserts a new note.
func (r *NoteRepo) Insert(ctx context.Context, note *NoteRecord) error {
	var parent any
	if note.ParentNoteID != nil {
		parent = *note.ParentNoteID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.PatientID, note.AuthorID, parent,
		note.Kind, note.Title, note.ContentMarkdown, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// GetByID gets a note by its ID. Returns ErrNotFound if not found.
func (r *NoteRepo) GetByID(ctx context.Context, id string) (*NoteRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE id = ?", id)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return note, nil
}

// ListByPatient returns all notes for a patient, newest first.
func (r *NoteRepo) ListByPatient(ctx context.Context, patientID, kind string) ([]*NoteRecord, error) {
	query := "SELECT " + noteColumns + " FROM notes WHERE patient_id = ?"
	args := []any{patientID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC"

	return r.queryNotes(ctx, query, args...)
}

// Update persists title, content, and updated_at of an existing note.
func (r *NoteRepo) Update(ctx context.Context, note *NoteRecord) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE notes SET title = ?, content_markdown = ?, updated_at = ? WHERE id = ?",
		note.Title, note.ContentMarkdown, note.UpdatedAt, note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a note. Versions cascade at the database level.
func (r *NoteRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindConceptualization returns the patient's conceptualization note.
func (r *NoteRepo) FindConceptualization(ctx context.Context, patientID string) (*NoteRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE patient_id = ? AND kind = ?",
		patientID, KindConceptualization)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conceptualization: %w", err)
	}
	return note, nil
}

// ListSplits returns all split notes referencing the given parent, oldest first.
func (r *NoteRepo) ListSplits(ctx context.Context, parentNoteID string) ([]*NoteRecord, error) {
	return r.queryNotes(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE parent_note_id = ? ORDER BY created_at ASC",
		parentNoteID)
}

// CountSplits returns the number of split notes referencing the parent.
func (r *NoteRepo) CountSplits(ctx context.Context, parentNoteID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notes WHERE parent_note_id = ?", parentNoteID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count splits: %w", err)
	}
	return count, nil
}

// queryNotes runs a query returning note rows and scans them all.
func (r *NoteRepo) queryNotes(ctx context.Context, query string, args ...any) ([]*NoteRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notes []*NoteRecord
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return notes, nil
}
