package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort       string
	DBPath        string
	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeout    time.Duration
	MaxSplitNotes int
	TaskRunner    string // "background" or "sync"
	LogLevel      slog.Level
	LogFormat     string // "text" or "json"
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or a parent directory, it is
// loaded automatically; environment variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up a few levels so the binary can be started from subdirectories.
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:    getEnv("API_PORT", "9000"),
		DBPath:     getEnv("DB_PATH", "./data/mindpal.db"),
		LLMBaseURL: getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMAPIKey:  getEnv("LLM_API_KEY", "dummy-key"),
		LLMModel:   getEnv("LLM_MODEL", "gemini-2.5-flash"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
	}

	timeoutStr := getEnv("LLM_TIMEOUT_SECONDS", "120")
	timeoutSecs, err := strconv.Atoi(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("LLM_TIMEOUT_SECONDS must be a valid integer: %w", err)
	}
	if timeoutSecs <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT_SECONDS must be greater than 0")
	}
	cfg.LLMTimeout = time.Duration(timeoutSecs) * time.Second

	maxSplitsStr := getEnv("MAX_SPLIT_NOTES", "10")
	maxSplits, err := strconv.Atoi(maxSplitsStr)
	if err != nil {
		return nil, fmt.Errorf("MAX_SPLIT_NOTES must be a valid integer: %w", err)
	}
	if maxSplits <= 0 {
		return nil, fmt.Errorf("MAX_SPLIT_NOTES must be greater than 0")
	}
	cfg.MaxSplitNotes = maxSplits

	runner := getEnv("TASK_RUNNER", "background")
	if runner != "background" && runner != "sync" {
		return nil, fmt.Errorf("TASK_RUNNER must be 'background' or 'sync', got %q", runner)
	}
	cfg.TaskRunner = runner

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got %q", cfg.LogFormat)
	}

	// Create the data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// parseLogLevel converts a log level string to a slog.Level.
func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", s)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
