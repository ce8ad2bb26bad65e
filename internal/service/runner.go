package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TaskRunner schedules split generation. The two implementations share the
// generator's validation and atomicity; they differ only in timing and in
// whether the caller sees the result.
type TaskRunner interface {
	// RunSplitGeneration runs or schedules one split-generation batch.
	// The synchronous implementation returns the created note IDs; the
	// background one returns immediately with nil IDs and reports failures
	// only through logs.
	RunSplitGeneration(ctx context.Context, conceptualizationID string, categories []string, userID string) ([]string, error)
}

// NewTaskRunner returns the runner selected by the configured mode
// ("sync" or "background"). Unknown modes fall back to background.
func NewTaskRunner(mode string, generator *SplitGenerator, timeout time.Duration) TaskRunner {
	if mode == "sync" {
		return NewSyncRunner(generator, timeout)
	}
	return NewBackgroundRunner(generator, timeout)
}

// SyncRunner runs split generation inline. Used for tests and deployments
// without background execution.
type SyncRunner struct {
	generator *SplitGenerator
	timeout   time.Duration
}

// NewSyncRunner creates a new SyncRunner.
func NewSyncRunner(generator *SplitGenerator, timeout time.Duration) *SyncRunner {
	return &SyncRunner{generator: generator, timeout: timeout}
}

// RunSplitGeneration runs the batch inline and returns its result.
func (r *SyncRunner) RunSplitGeneration(ctx context.Context, conceptualizationID string, categories []string, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.generator.Generate(ctx, conceptualizationID, categories, userID)
}

// BackgroundRunner runs split generation after the triggering request
// returns. The work detaches from the request context and owns its own
// deadline; failures are logged, never surfaced to the original caller.
type BackgroundRunner struct {
	generator *SplitGenerator
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewBackgroundRunner creates a new BackgroundRunner.
func NewBackgroundRunner(generator *SplitGenerator, timeout time.Duration) *BackgroundRunner {
	return &BackgroundRunner{
		generator: generator,
		timeout:   timeout,
		logger:    slog.Default(),
	}
}

// RunSplitGeneration schedules the batch and returns immediately.
func (r *BackgroundRunner) RunSplitGeneration(ctx context.Context, conceptualizationID string, categories []string, userID string) ([]string, error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// Detached from the request: the originating response has already
		// been sent by the time this runs.
		bgCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		ids, err := r.generator.Generate(bgCtx, conceptualizationID, categories, userID)
		if err != nil {
			r.logger.Error("background split generation failed", "note_id", conceptualizationID, "error", err)
			return
		}
		r.logger.Info("background split generation finished", "note_id", conceptualizationID, "splits", len(ids))
	}()

	return nil, nil
}

// Wait blocks until all scheduled batches finish. Used on shutdown and in
// tests to drain in-flight work.
func (r *BackgroundRunner) Wait() {
	r.wg.Wait()
}
