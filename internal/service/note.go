package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mindpal-api/internal/contextutil"
	"mindpal-api/internal/storage"
)

// CreateNoteRequest carries the fields needed to create a note.
type CreateNoteRequest struct {
	PatientID       string
	Kind            string
	Title           string
	ContentMarkdown string
	ParentNoteID    *string
}

// NotePatch carries optional fields for a note update.
// Nil fields are left unchanged; the update still appends a version.
type NotePatch struct {
	Title           *string
	ContentMarkdown *string
}

// NoteListItem pairs a note with its version count for list responses.
type NoteListItem struct {
	Note         *storage.NoteRecord
	VersionCount int
}

// NoteService manages the note lifecycle: creation, edits, deletion,
// versioning, and the split-note relationship. Every operation taking a note
// ID re-verifies that the acting user created the note's patient; a miss is
// reported as ErrNotFound regardless of whether the note exists.
type NoteService interface {
	Create(ctx context.Context, req CreateNoteRequest, userID string) (*storage.NoteRecord, error)
	Get(ctx context.Context, noteID, userID string) (*storage.NoteRecord, error)
	ListByPatient(ctx context.Context, patientID, userID, kind string) ([]NoteListItem, error)
	Update(ctx context.Context, noteID, userID string, patch NotePatch) (*storage.NoteRecord, error)
	Delete(ctx context.Context, noteID, userID string) error
	Restore(ctx context.Context, noteID string, versionNumber int, userID string) (*storage.NoteRecord, error)
	ListVersions(ctx context.Context, noteID, userID string) ([]*storage.NoteVersionRecord, error)
	GetVersion(ctx context.Context, noteID, userID string, versionNumber int) (*storage.NoteVersionRecord, error)
	ListSplits(ctx context.Context, noteID, userID string) ([]*storage.NoteRecord, error)
	CountSplits(ctx context.Context, noteID string) (int, error)
	// PrepareSplitGeneration checks the preconditions for split generation:
	// the note exists and is owned, is a conceptualization, and has no
	// existing splits. Called synchronously before scheduling the batch.
	PrepareSplitGeneration(ctx context.Context, noteID, userID string) error
}

// noteService implements NoteService over a sqlite database.
type noteService struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNoteService creates a new NoteService.
func NewNoteService(db *sql.DB) NoteService {
	return &noteService{
		db:     db,
		logger: slog.Default(),
	}
}

// ownedNote loads a note and verifies the user owns its patient.
// Missing note, missing patient, and not-owned patient all collapse into
// ErrNotFound so callers cannot probe for other users' data.
func ownedNote(ctx context.Context, q storage.DBTX, noteID, userID string) (*storage.NoteRecord, error) {
	note, err := storage.NewNoteRepo(q).GetByID(ctx, noteID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError(err, "failed to load note")
	}

	if _, err := storage.NewPatientRepo(q).OwnedBy(ctx, note.PatientID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to verify patient ownership")
	}

	return note, nil
}

// Create creates a note and its initial version atomically.
func (s *noteService) Create(ctx context.Context, req CreateNoteRequest, userID string) (*storage.NoteRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "cannot be empty"}
	}
	if !storage.ValidKind(req.Kind) {
		return nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown note kind %q", req.Kind)}
	}

	var created *storage.NoteRecord
	err := storage.Transact(ctx, s.db, func(tx *sql.Tx) error {
		patients := storage.NewPatientRepo(tx)
		notes := storage.NewNoteRepo(tx)
		versions := storage.NewVersionRepo(tx)

		if _, err := patients.OwnedBy(ctx, req.PatientID, userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return WrapError(err, "failed to verify patient ownership")
		}

		if req.Kind == storage.KindConceptualization {
			_, err := notes.FindConceptualization(ctx, req.PatientID)
			if err == nil {
				return &ConflictError{Message: "patient already has a conceptualization note"}
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return WrapError(err, "failed to check for existing conceptualization")
			}
		}

		if req.Kind == storage.KindSplit {
			if req.ParentNoteID == nil || *req.ParentNoteID == "" {
				return &ValidationError{Field: "parent_note_id", Message: "required for split notes"}
			}
			parent, err := notes.GetByID(ctx, *req.ParentNoteID)
			if errors.Is(err, storage.ErrNotFound) {
				return WrapError(ErrNotFound, "parent note")
			}
			if err != nil {
				return WrapError(err, "failed to load parent note")
			}
			if parent.Kind != storage.KindConceptualization {
				return &ValidationError{Field: "parent_note_id", Message: "parent note must be a conceptualization"}
			}
		}

		now := time.Now().UTC()
		note := &storage.NoteRecord{
			ID:              uuid.New().String(),
			PatientID:       req.PatientID,
			AuthorID:        userID,
			ParentNoteID:    req.ParentNoteID,
			Kind:            req.Kind,
			Title:           req.Title,
			ContentMarkdown: req.ContentMarkdown,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := notes.Insert(ctx, note); err != nil {
			return WrapError(err, "failed to insert note")
		}

		if _, err := versions.Append(ctx, note, userID); err != nil {
			return WrapError(err, "failed to append initial version")
		}

		created = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "note created", "note_id", created.ID, "kind", created.Kind, "patient_id", created.PatientID)
	return created, nil
}

// Get returns a single note after the ownership check.
func (s *noteService) Get(ctx context.Context, noteID, userID string) (*storage.NoteRecord, error) {
	return ownedNote(ctx, s.db, noteID, userID)
}

// ListByPatient returns a patient's notes, newest first, with version counts.
func (s *noteService) ListByPatient(ctx context.Context, patientID, userID, kind string) ([]NoteListItem, error) {
	if kind != "" && !storage.ValidKind(kind) {
		return nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown note kind %q", kind)}
	}

	if _, err := storage.NewPatientRepo(s.db).OwnedBy(ctx, patientID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to verify patient ownership")
	}

	notes, err := storage.NewNoteRepo(s.db).ListByPatient(ctx, patientID, kind)
	if err != nil {
		return nil, WrapError(err, "failed to list notes")
	}

	versions := storage.NewVersionRepo(s.db)
	items := make([]NoteListItem, 0, len(notes))
	for _, note := range notes {
		count, err := versions.CountByNote(ctx, note.ID)
		if err != nil {
			return nil, WrapError(err, "failed to count versions")
		}
		items = append(items, NoteListItem{Note: note, VersionCount: count})
	}

	return items, nil
}

// Update applies the patch and appends a version reflecting the post-update
// content, atomically.
func (s *noteService) Update(ctx context.Context, noteID, userID string, patch NotePatch) (*storage.NoteRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if patch.Title != nil && *patch.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "cannot be empty"}
	}

	var updated *storage.NoteRecord
	err := storage.Transact(ctx, s.db, func(tx *sql.Tx) error {
		note, err := ownedNote(ctx, tx, noteID, userID)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			note.Title = *patch.Title
		}
		if patch.ContentMarkdown != nil {
			note.ContentMarkdown = *patch.ContentMarkdown
		}
		note.UpdatedAt = time.Now().UTC()

		if err := storage.NewNoteRepo(tx).Update(ctx, note); err != nil {
			return WrapError(err, "failed to update note")
		}
		if _, err := storage.NewVersionRepo(tx).Append(ctx, note, userID); err != nil {
			return WrapError(err, "failed to append version")
		}

		updated = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "note updated", "note_id", updated.ID)
	return updated, nil
}

// Delete deletes a note. A conceptualization with split children is
// protected; the error reports the blocking count.
func (s *noteService) Delete(ctx context.Context, noteID, userID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	err := storage.Transact(ctx, s.db, func(tx *sql.Tx) error {
		note, err := ownedNote(ctx, tx, noteID, userID)
		if err != nil {
			return err
		}

		notes := storage.NewNoteRepo(tx)
		if note.Kind == storage.KindConceptualization {
			count, err := notes.CountSplits(ctx, noteID)
			if err != nil {
				return WrapError(err, "failed to count splits")
			}
			if count > 0 {
				return &ConflictError{
					Message:    fmt.Sprintf("cannot delete conceptualization note with %d split notes", count),
					SplitCount: count,
				}
			}
		}

		if err := notes.Delete(ctx, noteID); err != nil {
			return WrapError(err, "failed to delete note")
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "note deleted", "note_id", noteID)
	return nil
}

// Restore replays an old version's content onto the note and appends a new
// version with that content. History is never truncated or renumbered.
func (s *noteService) Restore(ctx context.Context, noteID string, versionNumber int, userID string) (*storage.NoteRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var restored *storage.NoteRecord
	err := storage.Transact(ctx, s.db, func(tx *sql.Tx) error {
		note, err := ownedNote(ctx, tx, noteID, userID)
		if err != nil {
			return err
		}

		versions := storage.NewVersionRepo(tx)
		version, err := versions.Get(ctx, noteID, versionNumber)
		if errors.Is(err, storage.ErrNotFound) {
			return WrapError(ErrNotFound, fmt.Sprintf("version %d", versionNumber))
		}
		if err != nil {
			return WrapError(err, "failed to load version")
		}

		note.ContentMarkdown = version.ContentMarkdown
		note.UpdatedAt = time.Now().UTC()

		if err := storage.NewNoteRepo(tx).Update(ctx, note); err != nil {
			return WrapError(err, "failed to update note")
		}
		if _, err := versions.Append(ctx, note, userID); err != nil {
			return WrapError(err, "failed to append version")
		}

		restored = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "note restored", "note_id", noteID, "from_version", versionNumber)
	return restored, nil
}

// ListVersions returns all versions for a note, newest first.
func (s *noteService) ListVersions(ctx context.Context, noteID, userID string) ([]*storage.NoteVersionRecord, error) {
	if _, err := ownedNote(ctx, s.db, noteID, userID); err != nil {
		return nil, err
	}

	versions, err := storage.NewVersionRepo(s.db).ListByNote(ctx, noteID)
	if err != nil {
		return nil, WrapError(err, "failed to list versions")
	}
	return versions, nil
}

// GetVersion returns one version of a note.
func (s *noteService) GetVersion(ctx context.Context, noteID, userID string, versionNumber int) (*storage.NoteVersionRecord, error) {
	if _, err := ownedNote(ctx, s.db, noteID, userID); err != nil {
		return nil, err
	}

	version, err := storage.NewVersionRepo(s.db).Get(ctx, noteID, versionNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, WrapError(ErrNotFound, fmt.Sprintf("version %d", versionNumber))
	}
	if err != nil {
		return nil, WrapError(err, "failed to load version")
	}
	return version, nil
}

// ListSplits returns a conceptualization's split notes, oldest first.
func (s *noteService) ListSplits(ctx context.Context, noteID, userID string) ([]*storage.NoteRecord, error) {
	note, err := ownedNote(ctx, s.db, noteID, userID)
	if err != nil {
		return nil, err
	}
	if note.Kind != storage.KindConceptualization {
		return nil, &ValidationError{Field: "note_id", Message: "note is not a conceptualization"}
	}

	splits, err := storage.NewNoteRepo(s.db).ListSplits(ctx, noteID)
	if err != nil {
		return nil, WrapError(err, "failed to list splits")
	}
	return splits, nil
}

// CountSplits returns the number of split notes referencing the note.
func (s *noteService) CountSplits(ctx context.Context, noteID string) (int, error) {
	count, err := storage.NewNoteRepo(s.db).CountSplits(ctx, noteID)
	if err != nil {
		return 0, WrapError(err, "failed to count splits")
	}
	return count, nil
}

// PrepareSplitGeneration checks the split-generation preconditions.
func (s *noteService) PrepareSplitGeneration(ctx context.Context, noteID, userID string) error {
	note, err := ownedNote(ctx, s.db, noteID, userID)
	if err != nil {
		return err
	}
	if note.Kind != storage.KindConceptualization {
		return &ValidationError{Field: "note_id", Message: "splits can only be generated from a conceptualization note"}
	}

	count, err := s.CountSplits(ctx, noteID)
	if err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{
			Message:    fmt.Sprintf("conceptualization already has %d split notes; delete them before regenerating", count),
			SplitCount: count,
		}
	}
	return nil
}
