package storage

import "time"

// Note kinds. Stored as plain strings; the service layer validates transitions.
const (
	KindConceptualization = "conceptualization"
	KindFollowup          = "followup"
	KindSplit             = "split"
)

// ValidKind reports whether s is one of the known note kinds.
func ValidKind(s string) bool {
	return s == KindConceptualization || s == KindFollowup || s == KindSplit
}

// PatientRecord represents a patient in the database.
// Only the fields the notes subsystem needs are modeled here; created_by is
// the ownership anchor for every note access check.
type PatientRecord struct {
	ID        string // UUID
	CreatedBy string // UUID of the owning user
	FullName  string
	CreatedAt time.Time
}

// NoteRecord represents a clinical note in the database.
// ParentNoteID is set only for split notes and references a
// conceptualization note.
type NoteRecord struct {
	ID              string  // UUID
	PatientID       string  // UUID, foreign key to patients.id
	AuthorID        string  // UUID of the user who created the note
	ParentNoteID    *string // UUID of the parent conceptualization, split notes only
	Kind            string
	Title           string
	ContentMarkdown string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NoteVersionRecord is an immutable snapshot of a note's content.
// Version numbers per note are contiguous starting at 1 and never reused.
type NoteVersionRecord struct {
	ID              string // UUID
	NoteID          string // UUID, foreign key to notes.id (cascade delete)
	EditorID        string // UUID of the user whose edit produced the snapshot
	ContentMarkdown string
	VersionNumber   int
	CreatedAt       time.Time
}
