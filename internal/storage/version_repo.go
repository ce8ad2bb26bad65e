package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersionStore defines the interface for note version storage operations.
type VersionStore interface {
	// Append creates the next version for the note, snapshotting the note's
	// current content. The number is count(existing versions) + 1, so the
	// sequence per note is always contiguous starting at 1. Call it over the
	// same transaction as the note mutation so both commit or neither does.
	Append(ctx context.Context, note *NoteRecord, editorID string) (*NoteVersionRecord, error)
	// ListByNote returns all versions for a note, newest version first.
	ListByNote(ctx context.Context, noteID string) ([]*NoteVersionRecord, error)
	// Get gets one version by note ID and version number.
	// Returns ErrNotFound if not found.
	Get(ctx context.Context, noteID string, versionNumber int) (*NoteVersionRecord, error)
	// CountByNote returns the number of versions stored for a note.
	CountByNote(ctx context.Context, noteID string) (int, error)
}

// VersionRepo provides methods for note version operations.
// It implements the VersionStore interface.
type VersionRepo struct {
	db DBTX
}

var _ VersionStore = (*VersionRepo)(nil)

// NewVersionRepo creates a new VersionRepo over a *sql.DB or *sql.Tx.
func NewVersionRepo(db DBTX) *VersionRepo {
	return &VersionRepo{db: db}
}

// Append creates the next version for the note.
func (r *VersionRepo) Append(ctx context.Context, note *NoteRecord, editorID string) (*NoteVersionRecord, error) {
	count, err := r.CountByNote(ctx, note.ID)
	if err != nil {
		return nil, err
	}

	version := &NoteVersionRecord{
		ID:              uuid.New().String(),
		NoteID:          note.ID,
		EditorID:        editorID,
		ContentMarkdown: note.ContentMarkdown,
		VersionNumber:   count + 1,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO note_versions (id, note_id, editor_id, content_markdown, version_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		version.ID, version.NoteID, version.EditorID,
		version.ContentMarkdown, version.VersionNumber, version.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	return version, nil
}

// ListByNote returns all versions for a note, newest version first.
func (r *VersionRepo) ListByNote(ctx context.Context, noteID string) ([]*NoteVersionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, note_id, editor_id, content_markdown, version_number, created_at
		 FROM note_versions WHERE note_id = ? ORDER BY version_number DESC`,
		noteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var versions []*NoteVersionRecord
	for rows.Next() {
		var v NoteVersionRecord
		if err := rows.Scan(&v.ID, &v.NoteID, &v.EditorID, &v.ContentMarkdown, &v.VersionNumber, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return versions, nil
}

// Get gets one version by note ID and version number.
func (r *VersionRepo) Get(ctx context.Context, noteID string, versionNumber int) (*NoteVersionRecord, error) {
	var v NoteVersionRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, note_id, editor_id, content_markdown, version_number, created_at
		 FROM note_versions WHERE note_id = ? AND version_number = ?`,
		noteID, versionNumber,
	).Scan(&v.ID, &v.NoteID, &v.EditorID, &v.ContentMarkdown, &v.VersionNumber, &v.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query version: %w", err)
	}

	return &v, nil
}

// CountByNote returns the number of versions stored for a note.
func (r *VersionRepo) CountByNote(ctx context.Context, noteID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM note_versions WHERE note_id = ?", noteID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return count, nil
}
