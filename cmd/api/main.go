package main

import (
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"mindpal-api/internal/config"
	"mindpal-api/internal/http"
	"mindpal-api/internal/llm"
	"mindpal-api/internal/service"
	"mindpal-api/internal/storage"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create services
	noteService := service.NewNoteService(db)
	patientService := service.NewPatientService(db)

	// Create LLM client (external service layer) and the split generator
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	splitGenerator := service.NewSplitGenerator(db, llmClient, cfg.MaxSplitNotes)

	// Select the task runner once for the whole process
	runner := service.NewTaskRunner(cfg.TaskRunner, splitGenerator, cfg.LLMTimeout)
	slog.Info("Task runner configured", "mode", cfg.TaskRunner, "llm_timeout", cfg.LLMTimeout)

	// Create router with dependencies
	deps := &http.Deps{
		DB:             db,
		NoteService:    noteService,
		PatientService: patientService,
		TaskRunner:     runner,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModel)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
