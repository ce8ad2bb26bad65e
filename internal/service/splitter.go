package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_split_client.go -package=mocks mindpal-api/internal/service SplitClient

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

// SplitDocument is one generated split file: a title and markdown content.
type SplitDocument struct {
	Title   string
	Content string
}

// SplitClient is the external text generator behind split generation.
// This interface is defined from the service layer's perspective
// (consumer-first). Both methods may fail or return malformed data and are
// treated as unreliable.
type SplitClient interface {
	// InferCategories suggests 4-7 category labels for the given note content.
	InferCategories(ctx context.Context, content string) ([]string, error)
	// GenerateDocuments produces one markdown document per category from the
	// given note content.
	GenerateDocuments(ctx context.Context, content string, categories []string) ([]SplitDocument, error)
}

// placeholderContent is the body used for categories the generator returned
// nothing usable for.
const placeholderContent = "No information available for this category yet."

// defaultCategories is the fallback when category inference fails.
var defaultCategories = []string{
	"Background",
	"Presenting Problem",
	"Symptoms",
	"Mental Status",
	"Treatment Plan",
}

// DefaultCategories returns the fallback category list used when the
// generator cannot infer categories.
func DefaultCategories() []string {
	out := make([]string, len(defaultCategories))
	copy(out, defaultCategories)
	return out
}

// placeholderDocument builds the standard placeholder split for a category.
func placeholderDocument(category string) SplitDocument {
	return SplitDocument{
		Title:   category,
		Content: fmt.Sprintf("# %s\n\n%s", category, placeholderContent),
	}
}

// SplitGenerator turns one conceptualization note into a bounded batch of
// split notes. The batch commits atomically: all split notes plus their
// initial versions, or nothing.
type SplitGenerator struct {
	db        *sql.DB
	client    SplitClient
	maxSplits int
	logger    *slog.Logger
}

// NewSplitGenerator creates a new SplitGenerator.
// maxSplits caps the number of split notes produced per batch.
func NewSplitGenerator(db *sql.DB, client SplitClient, maxSplits int) *SplitGenerator {
	return &SplitGenerator{
		db:        db,
		client:    client,
		maxSplits: maxSplits,
		logger:    slog.Default(),
	}
}

// Generate produces split notes for the given conceptualization and returns
// the created note IDs in creation order.
//
// The caller is responsible for the kind and zero-existing-splits
// preconditions (NoteService.PrepareSplitGeneration); the zero-splits check is
// still re-verified inside the batch transaction so two racing generations
// cannot both commit.
func (g *SplitGenerator) Generate(ctx context.Context, conceptualizationID string, categories []string, userID string) ([]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	concept, err := storage.NewNoteRepo(g.db).GetByID(ctx, conceptualizationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, WrapError(ErrNotFound, "conceptualization note")
	}
	if err != nil {
		return nil, WrapError(err, "failed to load conceptualization")
	}

	categories = g.resolveCategories(ctx, concept.ContentMarkdown, categories)

	docs, err := g.client.GenerateDocuments(ctx, concept.ContentMarkdown, categories)
	if err != nil {
		// The generator is unreliable by contract; a failed or unparsable
		// generation degrades to placeholder splits instead of aborting.
		logger.WarnContext(ctx, "split document generation failed, using placeholders", "error", err, "note_id", conceptualizationID)
		docs = nil
	}
	docs = repairDocuments(docs, categories)

	var createdIDs []string
	err = storage.Transact(ctx, g.db, func(tx *sql.Tx) error {
		notes := storage.NewNoteRepo(tx)
		versions := storage.NewVersionRepo(tx)

		// Recheck under the write transaction: a concurrent batch that
		// committed first makes this one a conflict, not a duplicate set.
		count, err := notes.CountSplits(ctx, conceptualizationID)
		if err != nil {
			return WrapError(err, "failed to count existing splits")
		}
		if count > 0 {
			return &ConflictError{
				Message:    fmt.Sprintf("conceptualization already has %d split notes", count),
				SplitCount: count,
			}
		}

		for _, doc := range docs {
			now := time.Now().UTC()
			parentID := conceptualizationID
			note := &storage.NoteRecord{
				ID:              uuid.New().String(),
				PatientID:       concept.PatientID,
				AuthorID:        userID,
				ParentNoteID:    &parentID,
				Kind:            storage.KindSplit,
				Title:           doc.Title,
				ContentMarkdown: doc.Content,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := notes.Insert(ctx, note); err != nil {
				return WrapError(err, "failed to insert split note")
			}
			if _, err := versions.Append(ctx, note, userID); err != nil {
				return WrapError(err, "failed to append initial version")
			}
			createdIDs = append(createdIDs, note.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "split generation completed", "note_id", conceptualizationID, "splits", len(createdIDs))
	return createdIDs, nil
}

// resolveCategories picks the category list for a batch: explicit caller
// categories truncated to the cap, otherwise inferred by the generator with
// the fixed defaults as fallback.
func (g *SplitGenerator) resolveCategories(ctx context.Context, content string, categories []string) []string {
	logger := contextutil.LoggerFromContext(ctx)

	if len(categories) == 0 {
		inferred, err := g.client.InferCategories(ctx, content)
		if err != nil || len(inferred) == 0 {
			logger.WarnContext(ctx, "category inference failed, using defaults", "error", err)
			inferred = DefaultCategories()
		}
		categories = inferred
	}

	if len(categories) > g.maxSplits {
		categories = categories[:g.maxSplits]
	}
	return categories
}

// repairDocuments enforces the one-document-per-category invariant.
// Entries without a title or content are dropped, missing entries become
// placeholders, and extras beyond the category count are discarded.
func repairDocuments(docs []SplitDocument, categories []string) []SplitDocument {
	valid := make([]SplitDocument, 0, len(categories))
	for _, doc := range docs {
		if doc.Title == "" || doc.Content == "" {
			continue
		}
		valid = append(valid, doc)
		if len(valid) == len(categories) {
			break
		}
	}

	for len(valid) < len(categories) {
		valid = append(valid, placeholderDocument(categories[len(valid)]))
	}
	return valid
}
