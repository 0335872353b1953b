package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	TimeZone                string
	ScheduleWindowStartHour int // daily execution window, local to TimeZone
	ScheduleWindowEndHour   int
	MinSlotSpacing          time.Duration
	BatchMinSize            int
	BatchMaxSize            int

	// Account pool configuration
	PromptReuseMinHours   float64 // same (account, prompt) pair must not repeat sooner
	HistoryWindowDays     int
	AccountErrorThreshold int // consecutive errors before an account is disabled

	// Pipeline configuration
	SubBatchSize    int
	SubBatchDelay   time.Duration
	InterBrandDelay time.Duration

	// Database
	DatabasePath string

	// Provider credentials
	OpenAIAPIKey       string
	OpenAIEndpoint     string
	OpenAIModel        string
	PerplexityAPIKey   string
	PerplexityEndpoint string
	PerplexityModel    string

	// URL classification service
	ClassifierURL string

	// Azure Storage (raw response archival)
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		TimeZone:                getEnv("TIMEZONE", "UTC"),
		ScheduleWindowStartHour: getIntEnv("SCHEDULE_WINDOW_START_HOUR", 9),
		ScheduleWindowEndHour:   getIntEnv("SCHEDULE_WINDOW_END_HOUR", 18),
		MinSlotSpacing:          getDurationEnv("MIN_SLOT_SPACING", 7*time.Minute),
		BatchMinSize:            getIntEnv("BATCH_MIN_SIZE", 2),
		BatchMaxSize:            getIntEnv("BATCH_MAX_SIZE", 5),

		PromptReuseMinHours:   getFloatEnv("PROMPT_REUSE_MIN_HOURS", 20),
		HistoryWindowDays:     getIntEnv("HISTORY_WINDOW_DAYS", 7),
		AccountErrorThreshold: getIntEnv("ACCOUNT_ERROR_THRESHOLD", 5),

		SubBatchSize:    getIntEnv("SUB_BATCH_SIZE", 5),
		SubBatchDelay:   getDurationEnv("SUB_BATCH_DELAY", 10*time.Second),
		InterBrandDelay: getDurationEnv("INTER_BRAND_DELAY", 30*time.Second),

		DatabasePath: getEnv("DATABASE_PATH", "visibility.db"),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIEndpoint:     getEnv("OPENAI_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-search-preview"),
		PerplexityAPIKey:   getEnv("PERPLEXITY_API_KEY", ""),
		PerplexityEndpoint: getEnv("PERPLEXITY_ENDPOINT", "https://api.perplexity.ai/chat/completions"),
		PerplexityModel:    getEnv("PERPLEXITY_MODEL", "sonar"),

		ClassifierURL: getEnv("CLASSIFIER_URL", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "raw-responses"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.BatchMinSize < 1 || c.BatchMaxSize < c.BatchMinSize {
		return fmt.Errorf("BATCH_MIN_SIZE/BATCH_MAX_SIZE must satisfy 1 <= min <= max")
	}

	if c.ScheduleWindowStartHour < 0 || c.ScheduleWindowEndHour > 24 ||
		c.ScheduleWindowStartHour >= c.ScheduleWindowEndHour {
		return fmt.Errorf("schedule window hours must satisfy 0 <= start < end <= 24")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}

	if c.SubBatchSize < 1 {
		return fmt.Errorf("SUB_BATCH_SIZE must be at least 1")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Location returns the schedule reference time zone. validate() has
// already checked that the name parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
