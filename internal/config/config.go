package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Cardeon/models"
)

var (
	ErrUnknownProvider = errors.New("INFERENCE_PROVIDER must be gemini or openai")
	ErrMissingAPIKey   = errors.New("API key for the selected inference provider is not set")
)

// Load initializes configuration from environment variables and validates
// the inference settings.
func Load() (*models.Config, error) {
	cfg := LoadEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv reads the configuration without validating the inference
// settings, for tools that only use the database or Telegram.
func LoadEnv() *models.Config {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg models.Config

	cfg.InferenceProvider = getEnvWithDefault("INFERENCE_PROVIDER", "gemini")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvWithDefault("GEMINI_MODEL", "gemini-3-flash-preview")
	cfg.GeminiEndpoint = getEnvWithDefault("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.MaxRetries = getEnvIntWithDefault("INFERENCE_MAX_RETRIES", 0)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SECOND", 5)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")
	cfg.ReportDir = getEnvWithDefault("REPORT_DIR", ".")
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.EnableDB = getEnvBoolWithDefault("ENABLE_DB", false)
	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = getEnvWithDefault("DB_USER", "postgres")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "cardeon")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")

	return &cfg
}

// Validate checks that the selected provider is usable.
func Validate(cfg *models.Config) error {
	switch cfg.InferenceProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingAPIKey)
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("%w, got %q", ErrUnknownProvider, cfg.InferenceProvider)
	}

	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", cfg.RequestTimeout)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("INFERENCE_MAX_RETRIES must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.RequestsPerSec <= 0 {
		return fmt.Errorf("REQUESTS_PER_SECOND must be positive, got %d", cfg.RequestsPerSec)
	}
	return nil
}

// DSN builds the lib/pq connection string.
func DSN(cfg *models.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

// SetupLogger configures the global logger
func SetupLogger(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// PrintConfig outputs the non-secret part of the configuration
func PrintConfig(cfg *models.Config) {
	log.Info().
		Str("Provider", cfg.InferenceProvider).
		Str("GeminiModel", cfg.GeminiModel).
		Str("OpenAIModel", cfg.OpenAIModel).
		Int("RequestTimeout", cfg.RequestTimeout).
		Int("MaxRetries", cfg.MaxRetries).
		Int("RequestsPerSec", cfg.RequestsPerSec).
		Bool("EnableDB", cfg.EnableDB).
		Msg("Configuration loaded")
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
