package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database. A postgres:// URL selects pgx, anything else is treated
	// as a SQLite file path.
	DatabaseURL string

	// Redis
	RedisURL string

	// Trello board
	TrelloKey      string
	TrelloToken    string
	TrelloBoardID  string
	TrelloTimeout  time.Duration
	DoneListName   string
	WebhookBaseURL string

	// List ids for card edits issued from this side. Open receives new
	// and reopened cards, Done receives cards added as completed.
	TrelloOpenListID string
	TrelloDoneListID string

	// Sync and notification jobs
	SyncInterval    time.Duration
	NotifyInterval  time.Duration
	JobRunTimeout   time.Duration
	SummaryHour     int
	SummaryMinute   int
	EscalationGrace time.Duration

	// OpenAI
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string

	// Recipients and persona
	SupervisorEmail string
	SupervisorName  string
	BotName         string

	// Activity log service for the daily summary
	ActivityServiceURL string

	// HTTP servers
	APIAddr          string
	WorkerHealthAddr string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", "boardsync.db"),
		RedisURL:    getEnv("REDIS_URL", ""),

		TrelloKey:      getEnv("TRELLO_KEY", ""),
		TrelloToken:    getEnv("TRELLO_TOKEN", ""),
		TrelloBoardID:  getEnv("TRELLO_BOARD_ID", ""),
		TrelloTimeout:  getDurationEnv("TRELLO_TIMEOUT", 15*time.Second),
		DoneListName:   getEnv("BOARDSYNC_DONE_LIST", "done"),
		WebhookBaseURL: getEnv("BOARDSYNC_WEBHOOK_BASE_URL", ""),

		TrelloOpenListID: getEnv("TRELLO_OPEN_LIST_ID", ""),
		TrelloDoneListID: getEnv("TRELLO_DONE_LIST_ID", ""),

		SyncInterval:    getDurationEnv("BOARDSYNC_SYNC_INTERVAL", 60*time.Second),
		NotifyInterval:  getDurationEnv("BOARDSYNC_NOTIFY_INTERVAL", 90*time.Second),
		JobRunTimeout:   getDurationEnv("BOARDSYNC_JOB_TIMEOUT", 5*time.Minute),
		SummaryHour:     getIntEnv("BOARDSYNC_SUMMARY_HOUR", 18),
		SummaryMinute:   getIntEnv("BOARDSYNC_SUMMARY_MINUTE", 0),
		EscalationGrace: getDurationEnv("BOARDSYNC_ESCALATION_GRACE", 24*time.Hour),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromAddress:  getEnv("BOARDSYNC_FROM_ADDRESS", "boardsync@localhost"),

		SupervisorEmail: getEnv("BOARDSYNC_SUPERVISOR_EMAIL", ""),
		SupervisorName:  getEnv("BOARDSYNC_SUPERVISOR_NAME", "the supervisor"),
		BotName:         getEnv("BOARDSYNC_BOT_NAME", "Douze-bot"),

		ActivityServiceURL: getEnv("BOARDSYNC_ACTIVITY_URL", ""),

		APIAddr:          getEnv("BOARDSYNC_API_ADDR", "0.0.0.0:8080"),
		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesPostgres reports whether DatabaseURL points at a Postgres server
// instead of a SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
