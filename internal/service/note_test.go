package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"mindpal-api/internal/service"
	"mindpal-api/internal/storage"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const (
	testUser  = "2f9f3cbe-6f0e-4d8a-9c38-0f2b08c6a001"
	otherUser = "2f9f3cbe-6f0e-4d8a-9c38-0f2b08c6a002"
)

// newTestDB opens a migrated sqlite database in a temp directory.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return db
}

// newPatient inserts a patient owned by the given user and returns its ID.
func newPatient(t *testing.T, db *sql.DB, id, ownerID string) string {
	t.Helper()
	err := storage.NewPatientRepo(db).Insert(context.Background(), &storage.PatientRecord{
		ID:        id,
		CreatedBy: ownerID,
		FullName:  "Test Patient",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Insert() patient error = %v", err)
	}
	return id
}

func TestNoteService_Create(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	concept, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID:       "patient-1",
		Kind:            storage.KindConceptualization,
		Title:           "Initial Assessment",
		ContentMarkdown: "# Assessment\n\nInitial session notes.",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Immediately after creation there is exactly one version, numbered 1,
	// carrying the creation content.
	versions, err := svc.ListVersions(ctx, concept.ID, testUser)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("ListVersions() returned %d versions, want 1", len(versions))
	}
	if versions[0].VersionNumber != 1 {
		t.Errorf("initial version number = %d, want 1", versions[0].VersionNumber)
	}
	if versions[0].ContentMarkdown != "# Assessment\n\nInitial session notes." {
		t.Errorf("initial version content = %q, want creation content", versions[0].ContentMarkdown)
	}

	conceptID := concept.ID
	tests := []struct {
		name      string
		req       service.CreateNoteRequest
		userID    string
		wantErr   error
		checkNote func(*storage.NoteRecord) bool
	}{
		{
			name: "followup note",
			req: service.CreateNoteRequest{
				PatientID: "patient-1",
				Kind:      storage.KindFollowup,
				Title:     "Session 2",
			},
			userID: testUser,
		},
		{
			name: "second conceptualization conflicts",
			req: service.CreateNoteRequest{
				PatientID: "patient-1",
				Kind:      storage.KindConceptualization,
				Title:     "Another Assessment",
			},
			userID:  testUser,
			wantErr: service.ErrConflict,
		},
		{
			name: "split note with valid parent",
			req: service.CreateNoteRequest{
				PatientID:    "patient-1",
				Kind:         storage.KindSplit,
				Title:        "Symptoms",
				ParentNoteID: &conceptID,
			},
			userID: testUser,
			checkNote: func(n *storage.NoteRecord) bool {
				return n.ParentNoteID != nil && *n.ParentNoteID == conceptID
			},
		},
		{
			name: "split note without parent",
			req: service.CreateNoteRequest{
				PatientID: "patient-1",
				Kind:      storage.KindSplit,
				Title:     "Orphan",
			},
			userID:  testUser,
			wantErr: service.ErrInvalidInput,
		},
		{
			name: "split note with missing parent",
			req: service.CreateNoteRequest{
				PatientID:    "patient-1",
				Kind:         storage.KindSplit,
				Title:        "Orphan",
				ParentNoteID: ptr("8c0ffee0-0000-0000-0000-000000000000"),
			},
			userID:  testUser,
			wantErr: service.ErrNotFound,
		},
		{
			name: "unknown kind",
			req: service.CreateNoteRequest{
				PatientID: "patient-1",
				Kind:      "journal",
				Title:     "Nope",
			},
			userID:  testUser,
			wantErr: service.ErrInvalidInput,
		},
		{
			name: "empty title",
			req: service.CreateNoteRequest{
				PatientID: "patient-1",
				Kind:      storage.KindFollowup,
			},
			userID:  testUser,
			wantErr: service.ErrInvalidInput,
		},
		{
			name: "other user's patient looks missing",
			req: service.CreateNoteRequest{
				PatientID: "patient-1",
				Kind:      storage.KindFollowup,
				Title:     "Sneaky",
			},
			userID:  otherUser,
			wantErr: service.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, err := svc.Create(ctx, tt.req, tt.userID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Create() unexpected error: %v", err)
			}
			if tt.checkNote != nil && !tt.checkNote(note) {
				t.Errorf("Create() result validation failed: %+v", note)
			}
		})
	}
}

func TestNoteService_SplitParentMustBeConceptualization(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	concept, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID: "patient-1",
		Kind:      storage.KindConceptualization,
		Title:     "Assessment",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	split, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID:    "patient-1",
		Kind:         storage.KindSplit,
		Title:        "Symptoms",
		ParentNoteID: &concept.ID,
	}, testUser)
	if err != nil {
		t.Fatalf("Create() split error = %v", err)
	}

	// A split cannot parent another split.
	_, err = svc.Create(ctx, service.CreateNoteRequest{
		PatientID:    "patient-1",
		Kind:         storage.KindSplit,
		Title:        "Nested",
		ParentNoteID: &split.ID,
	}, testUser)
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("Create() split-of-split error = %v, want ErrInvalidInput", err)
	}
}

func TestNoteService_UpdateAppendsVersions(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	note, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID:       "patient-1",
		Kind:            storage.KindFollowup,
		Title:           "Session",
		ContentMarkdown: "v1",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const updates = 4
	for i := 2; i <= updates+1; i++ {
		content := fmt.Sprintf("v%d", i)
		updated, err := svc.Update(ctx, note.ID, testUser, service.NotePatch{ContentMarkdown: &content})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.ContentMarkdown != content {
			t.Errorf("Update() content = %q, want %q", updated.ContentMarkdown, content)
		}
	}

	// n updates after creation leave exactly n+1 contiguous versions.
	versions, err := svc.ListVersions(ctx, note.ID, testUser)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != updates+1 {
		t.Fatalf("ListVersions() returned %d versions, want %d", len(versions), updates+1)
	}
	for i, v := range versions {
		want := updates + 1 - i
		if v.VersionNumber != want {
			t.Errorf("ListVersions()[%d] number = %d, want %d", i, v.VersionNumber, want)
		}
	}

	// A title-only patch preserves content and still appends a version.
	title := "Renamed"
	updated, err := svc.Update(ctx, note.ID, testUser, service.NotePatch{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Renamed" || updated.ContentMarkdown != fmt.Sprintf("v%d", updates+1) {
		t.Errorf("Update() title-only patch produced title=%q content=%q", updated.Title, updated.ContentMarkdown)
	}
}

func TestNoteService_Restore(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	note, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID:       "patient-1",
		Kind:            storage.KindFollowup,
		Title:           "Session",
		ContentMarkdown: "v1",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, content := range []string{"v2", "v3", "v4", "v5"} {
		c := content
		if _, err := svc.Update(ctx, note.ID, testUser, service.NotePatch{ContentMarkdown: &c}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	// Restoring to version 2 while at version 5 produces version 6 with
	// version 2's content; nothing is renumbered or deleted.
	restored, err := svc.Restore(ctx, note.ID, 2, testUser)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.ContentMarkdown != "v2" {
		t.Errorf("Restore() content = %q, want %q", restored.ContentMarkdown, "v2")
	}

	versions, err := svc.ListVersions(ctx, note.ID, testUser)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 6 {
		t.Fatalf("ListVersions() returned %d versions, want 6", len(versions))
	}
	if versions[0].VersionNumber != 6 || versions[0].ContentMarkdown != "v2" {
		t.Errorf("latest version = (%d, %q), want (6, %q)", versions[0].VersionNumber, versions[0].ContentMarkdown, "v2")
	}
	for i, v := range versions {
		if want := 6 - i; v.VersionNumber != want {
			t.Errorf("ListVersions()[%d] number = %d, want %d", i, v.VersionNumber, want)
		}
	}

	// Restoring a missing version is NotFound and appends nothing.
	if _, err := svc.Restore(ctx, note.ID, 42, testUser); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Restore() missing version error = %v, want ErrNotFound", err)
	}
	versions, err = svc.ListVersions(ctx, note.ID, testUser)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 6 {
		t.Errorf("ListVersions() after failed restore returned %d versions, want 6", len(versions))
	}
}

func TestNoteService_DeleteGuard(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	concept, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID: "patient-1",
		Kind:      storage.KindConceptualization,
		Title:     "Assessment",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var splitIDs []string
	for _, title := range []string{"Symptoms", "Background"} {
		split, err := svc.Create(ctx, service.CreateNoteRequest{
			PatientID:    "patient-1",
			Kind:         storage.KindSplit,
			Title:        title,
			ParentNoteID: &concept.ID,
		}, testUser)
		if err != nil {
			t.Fatalf("Create() split error = %v", err)
		}
		splitIDs = append(splitIDs, split.ID)
	}

	// Deletion blocked by split children, reporting the exact count.
	err = svc.Delete(ctx, concept.ID, testUser)
	var conflict *service.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Delete() error = %v, want ConflictError", err)
	}
	if conflict.SplitCount != 2 {
		t.Errorf("Delete() conflict split count = %d, want 2", conflict.SplitCount)
	}

	// After all split children are removed the deletion succeeds.
	for _, id := range splitIDs {
		if err := svc.Delete(ctx, id, testUser); err != nil {
			t.Fatalf("Delete() split error = %v", err)
		}
	}
	if err := svc.Delete(ctx, concept.ID, testUser); err != nil {
		t.Errorf("Delete() after removing splits error = %v", err)
	}
}

func TestNoteService_OwnershipGuard(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	note, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID: "patient-1",
		Kind:      storage.KindFollowup,
		Title:     "Session",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	title := "hijacked"
	ops := []struct {
		name string
		call func() error
	}{
		{"Get", func() error { _, err := svc.Get(ctx, note.ID, otherUser); return err }},
		{"Update", func() error {
			_, err := svc.Update(ctx, note.ID, otherUser, service.NotePatch{Title: &title})
			return err
		}},
		{"Delete", func() error { return svc.Delete(ctx, note.ID, otherUser) }},
		{"Restore", func() error { _, err := svc.Restore(ctx, note.ID, 1, otherUser); return err }},
		{"ListVersions", func() error { _, err := svc.ListVersions(ctx, note.ID, otherUser); return err }},
		{"GetVersion", func() error { _, err := svc.GetVersion(ctx, note.ID, otherUser, 1); return err }},
		{"ListSplits", func() error { _, err := svc.ListSplits(ctx, note.ID, otherUser); return err }},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			if err := op.call(); !errors.Is(err, service.ErrNotFound) {
				t.Errorf("%s() by non-owner error = %v, want ErrNotFound", op.name, err)
			}
		})
	}
}

func TestNoteService_ListByPatient(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	note, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID:       "patient-1",
		Kind:            storage.KindFollowup,
		Title:           "Session",
		ContentMarkdown: "v1",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	content := "v2"
	if _, err := svc.Update(ctx, note.ID, testUser, service.NotePatch{ContentMarkdown: &content}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	items, err := svc.ListByPatient(ctx, "patient-1", testUser, "")
	if err != nil {
		t.Fatalf("ListByPatient() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ListByPatient() returned %d items, want 1", len(items))
	}
	if items[0].VersionCount != 2 {
		t.Errorf("ListByPatient() version count = %d, want 2", items[0].VersionCount)
	}

	if _, err := svc.ListByPatient(ctx, "patient-1", testUser, "journal"); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("ListByPatient() unknown kind error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ListByPatient(ctx, "patient-1", otherUser, ""); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("ListByPatient() by non-owner error = %v, want ErrNotFound", err)
	}
}

func TestNoteService_ListSplitsRequiresConceptualization(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	followup, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID: "patient-1",
		Kind:      storage.KindFollowup,
		Title:     "Session",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.ListSplits(ctx, followup.ID, testUser); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("ListSplits() on followup error = %v, want ErrInvalidInput", err)
	}
}

func TestNoteService_PrepareSplitGeneration(t *testing.T) {
	db := newTestDB(t)
	newPatient(t, db, "patient-1", testUser)
	svc := service.NewNoteService(db)
	ctx := context.Background()

	concept, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID: "patient-1",
		Kind:      storage.KindConceptualization,
		Title:     "Assessment",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.PrepareSplitGeneration(ctx, concept.ID, testUser); err != nil {
		t.Errorf("PrepareSplitGeneration() error = %v", err)
	}

	followup, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID: "patient-1",
		Kind:      storage.KindFollowup,
		Title:     "Session",
	}, testUser)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.PrepareSplitGeneration(ctx, followup.ID, testUser); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("PrepareSplitGeneration() on followup error = %v, want ErrInvalidInput", err)
	}

	if _, err := svc.Create(ctx, service.CreateNoteRequest{
		PatientID:    "patient-1",
		Kind:         storage.KindSplit,
		Title:        "Symptoms",
		ParentNoteID: &concept.ID,
	}, testUser); err != nil {
		t.Fatalf("Create() split error = %v", err)
	}
	if err := svc.PrepareSplitGeneration(ctx, concept.ID, testUser); !errors.Is(err, service.ErrConflict) {
		t.Errorf("PrepareSplitGeneration() with existing splits error = %v, want ErrConflict", err)
	}
}

func ptr(s string) *string {
	return &s
}
