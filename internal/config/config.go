package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Event delivery
	EventsJWTSecret string
	MaxInstances    int64
	HandlerTimeout  time.Duration

	// Kafka (optional second event source)
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Push
	FCMProjectID       string
	FCMCredentialsFile string

	// Observability
	LogLevel     string
	LogRetention time.Duration
	SentryDSN    string
	AppEnv       string

	// Server
	Port string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real env vars win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "noise_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		EventsJWTSecret: getEnv("EVENTS_JWT_SECRET", ""),
		MaxInstances:    parseInt(getEnv("MAX_INSTANCES", "10"), 10),
		HandlerTimeout:  parseDuration(getEnv("HANDLER_TIMEOUT", "60s"), 60*time.Second),

		KafkaBrokers: parseCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "noise-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "noise-handlers"),

		FCMProjectID:       getEnv("FCM_PROJECT_ID", ""),
		FCMCredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogRetention: parseDuration(getEnv("LOG_RETENTION", "720h"), 720*time.Hour),
		SentryDSN:    getEnv("SENTRY_DSN", ""),
		AppEnv:       getEnv("APP_ENV", "development"),

		Port: getEnv("PORT", "8080"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// PushEnabled reports whether FCM credentials are configured.
func (c *Config) PushEnabled() bool {
	return c.FCMProjectID != "" || c.FCMCredentialsFile != ""
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
