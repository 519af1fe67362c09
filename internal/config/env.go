package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig holds all environment variable configurations
type EnvConfig struct {
	// Server Configuration
	Port string

	// Environment
	Environment string

	// CORS
	CORSAllowedOrigins string

	// Rate Limiting
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Logging
	LogLevel string

	// Upstream history API
	HistoryAPIBase  string
	HistoryAPIToken string

	// History engine
	HistoryDefaultPeriod   string
	HistoryMaxBars         int
	HistoryMaxMeasurements int
	HistoryDayStepHours    int
	HistoryMonthStepDays   int
	HistoryCatalogTTL      time.Duration
	HistoryViewCapacity    int
	HistoryConfigPath      string
	HistoryRefreshTimeout  time.Duration

	// Journal storage
	Storage               string
	BaseLogFolder         string
	SQLiteDSN             string
	JournalRetentionDays  int
	JournalCleanupEnabled bool

	// Database
	DBMaxConnections    int
	DBConnectionTimeout int
	DBIdleTimeout       int

	// Postgres
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string

	// HTTP Client
	HTTPMaxConnsPerHost       int
	HTTPMaxIdleConns          int
	HTTPMaxIdleConnsPerHost   int
	HTTPIdleConnTimeout       time.Duration
	HTTPConnectTimeout        time.Duration
	HTTPRequestTimeout        time.Duration
	HTTPResponseHeaderTimeout time.Duration
	HTTPMaxResponseSize       int64
	HTTPTLSHandshakeTimeout   time.Duration

	// Time Configuration
	DisableUTCEnforcement bool
	DefaultTimezone       string
}

var allowedPeriods = map[string]string{
	"last hour":   "Last hour",
	"1h":          "Last hour",
	"last 24h":    "Last 24h",
	"24h":         "Last 24h",
	"last 7 days": "Last 7 days",
	"7d":          "Last 7 days",
	"this month":  "This month",
	"month":       "This month",
	"this year":   "This year",
	"year":        "This year",
}

var allowedStorage = map[string]struct{}{
	"file":     {},
	"db":       {},
	"postgres": {},
	"both":     {},
	"none":     {},
}

var envConfig *EnvConfig

// InitEnvConfig initializes the environment configuration
func InitEnvConfig() {
	envConfig = &EnvConfig{
		// Server Configuration
		Port: getEnvString("PORT", "3500"),

		// Environment
		Environment: getEnvironment(),

		// CORS
		CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "http://localhost:3500,http://127.0.0.1:3500"),

		// Rate Limiting
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 20),

		// Logging
		LogLevel: getEnvString("LOG_LEVEL", "INFO"),

		// Upstream history API
		HistoryAPIBase:  strings.TrimRight(getEnvString("HISTORY_API_BASE", "http://localhost:8080"), "/"),
		HistoryAPIToken: getEnvString("HISTORY_API_TOKEN", ""),

		// History engine
		HistoryDefaultPeriod:   SanitizePeriod(getEnvString("HISTORY_DEFAULT_PERIOD", "Last 24h")),
		HistoryMaxBars:         getEnvInt("HISTORY_MAX_BARS", 20),
		HistoryMaxMeasurements: getEnvInt("HISTORY_MAX_MEASUREMENTS", 3),
		HistoryDayStepHours:    getEnvInt("HISTORY_DAY_STEP_HOURS", 4),
		HistoryMonthStepDays:   getEnvInt("HISTORY_MONTH_STEP_DAYS", 2),
		HistoryCatalogTTL:      getEnvDuration("HISTORY_CATALOG_TTL", 5*time.Minute),
		HistoryViewCapacity:    getEnvInt("HISTORY_VIEW_CAPACITY", 256),
		HistoryConfigPath:      getEnvString("HISTORY_CONFIG_PATH", ""),
		HistoryRefreshTimeout:  getEnvDuration("HISTORY_REFRESH_TIMEOUT", 15*time.Second),

		// Journal storage
		Storage:               sanitizeStorage(getEnvString("STORAGE", "file")),
		BaseLogFolder:         getEnvString("BASE_LOG_FOLDER", "./logs"),
		SQLiteDSN:             getEnvString("SQLITE_DNS", "./history.db"),
		JournalRetentionDays:  getEnvInt("JOURNAL_RETENTION_DAYS", 30),
		JournalCleanupEnabled: getEnvBool("JOURNAL_CLEANUP_ENABLED", true),

		// Database
		DBMaxConnections:    getEnvInt("DB_MAX_CONNECTIONS", 10),
		DBConnectionTimeout: getEnvInt("DB_CONNECTION_TIMEOUT", 30),
		DBIdleTimeout:       getEnvInt("DB_IDLE_TIMEOUT", 300),

		// Postgres
		PostgresUser:     getEnvString("POSTGRES_USER", "history"),
		PostgresPassword: getEnvString("POSTGRES_PASSWORD", "history"),
		PostgresHost:     getEnvString("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvString("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnvString("POSTGRES_DB", "history"),

		// HTTP Client
		HTTPMaxConnsPerHost:       getEnvInt("HTTP_MAX_CONNS_PER_HOST", 10),
		HTTPMaxIdleConns:          getEnvInt("HTTP_MAX_IDLE_CONNS", 100),
		HTTPMaxIdleConnsPerHost:   getEnvInt("HTTP_MAX_IDLE_CONNS_PER_HOST", 5),
		HTTPIdleConnTimeout:       getEnvDuration("HTTP_IDLE_CONN_TIMEOUT", 90*time.Second),
		HTTPConnectTimeout:        getEnvDuration("HTTP_CONNECT_TIMEOUT", 10*time.Second),
		HTTPRequestTimeout:        getEnvDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		HTTPResponseHeaderTimeout: getEnvDuration("HTTP_RESPONSE_HEADER_TIMEOUT", 10*time.Second),
		HTTPMaxResponseSize:       getEnvInt64("HTTP_MAX_RESPONSE_SIZE", 10485760), // 10MB
		HTTPTLSHandshakeTimeout:   getEnvDuration("HTTP_TLS_HANDSHAKE_TIMEOUT", 10*time.Second),

		// Time Configuration
		DisableUTCEnforcement: getEnvBool("DISABLE_UTC_ENFORCEMENT", false),
		DefaultTimezone:       getEnvString("DEFAULT_TIMEZONE", "UTC"),
	}
}

// GetEnvConfig returns the current environment configuration
func GetEnvConfig() *EnvConfig {
	if envConfig == nil {
		InitEnvConfig()
	}
	return envConfig
}

// Helper functions for reading environment variables with defaults

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvironment() string {
	// Check multiple possible environment variable names
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "development" // Default
	}
	return env
}

// SanitizePeriod maps a period label or alias onto its canonical label.
// Unknown values return an empty string.
func SanitizePeriod(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return ""
	}
	return allowedPeriods[trimmed]
}

func sanitizeStorage(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if _, ok := allowedStorage[trimmed]; ok {
		return trimmed
	}
	return "file"
}

// Convenience methods for common checks

// IsProduction returns true if the environment is production
func (c *EnvConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// GetDefaultPeriod returns the canonical default period, falling back to "Last 24h".
func (c *EnvConfig) GetDefaultPeriod() string {
	if c.HistoryDefaultPeriod == "" {
		return "Last 24h"
	}
	return c.HistoryDefaultPeriod
}

// UsesFileStorage reports whether journal entries go to daily files.
func (c *EnvConfig) UsesFileStorage() bool {
	return c.Storage == "file" || c.Storage == "both"
}

// UsesSQLiteStorage reports whether journal entries go to SQLite.
func (c *EnvConfig) UsesSQLiteStorage() bool {
	return c.Storage == "db" || c.Storage == "both"
}

// UsesPostgresStorage reports whether journal entries go to Postgres.
func (c *EnvConfig) UsesPostgresStorage() bool {
	return c.Storage == "postgres"
}

// GetDatabasePath returns the full path to the database file
func (c *EnvConfig) GetDatabasePath() string {
	return c.SQLiteDSN
}

// GetPostgresDSN returns DSN if set, otherwise synthesizes one from POSTGRES_* vars.
func (c *EnvConfig) GetPostgresDSN() string {
	if dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN")); dsn != "" {
		return dsn
	}
	user := strings.TrimSpace(c.PostgresUser)
	pass := strings.TrimSpace(c.PostgresPassword)
	host := strings.TrimSpace(c.PostgresHost)
	port := strings.TrimSpace(c.PostgresPort)
	db := strings.TrimSpace(c.PostgresDB)
	if user == "" || host == "" || port == "" || db == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, db)
}

// IsRateLimitEnabled returns true if rate limiting is enabled
func (c *EnvConfig) IsRateLimitEnabled() bool {
	return c.RateLimitEnabled
}
