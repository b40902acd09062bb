package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data providers
	Provider ProviderConfig
	News     NewsConfig

	// Model artifacts and pipeline config
	Artifacts ArtifactConfig

	// Prediction event stream
	Kafka KafkaConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ProviderConfig holds market data provider settings.
// Retry values implement the ingestion retry contract:
// MaxAttempts tries, exponential backoff from RetryBase capped at RetryMax.
type ProviderConfig struct {
	ChartBaseURL  string
	SearchBaseURL string
	Timeout       time.Duration
	MaxAttempts   int
	RetryBase     time.Duration
	RetryMax      time.Duration
	RatePerSecond int
	StocksCSV     string
	HistoryStart  string // YYYY-MM-DD
}

// NewsConfig holds headline source settings
type NewsConfig struct {
	RSSFeeds []string
	Symbols  []string
}

// ArtifactConfig holds model artifact locations
type ArtifactConfig struct {
	Dir             string
	ModelConfigPath string
}

// KafkaConfig holds prediction event publisher settings
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	PredictionTopic string
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "indian_market"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Provider: ProviderConfig{
			ChartBaseURL:  getEnv("PROVIDER_CHART_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			SearchBaseURL: getEnv("PROVIDER_SEARCH_URL", "https://query1.finance.yahoo.com/v1/finance/search"),
			Timeout:       getEnvAsDuration("PROVIDER_TIMEOUT", "30s"),
			MaxAttempts:   getEnvAsInt("PROVIDER_MAX_ATTEMPTS", 5),
			RetryBase:     getEnvAsDuration("PROVIDER_RETRY_BASE", "2s"),
			RetryMax:      getEnvAsDuration("PROVIDER_RETRY_MAX", "30s"),
			RatePerSecond: getEnvAsInt("PROVIDER_RATE_PER_SECOND", 2),
			StocksCSV:     getEnv("STOCKS_CSV", "data/nifty50.csv"),
			HistoryStart:  getEnv("HISTORY_START", "2018-01-01"),
		},

		News: NewsConfig{
			RSSFeeds: getEnvAsList("NEWS_RSS_FEEDS", nil),
			Symbols:  getEnvAsList("NEWS_SYMBOLS", []string{"RELIANCE", "TCS", "INFY", "HDFCBANK", "ICICIBANK", "SBIN", "BHARTIARTL", "ITC"}),
		},

		Artifacts: ArtifactConfig{
			Dir:             getEnv("ARTIFACT_DIR", "models"),
			ModelConfigPath: getEnv("MODEL_CONFIG", "config/model.yaml"),
		},

		Kafka: KafkaConfig{
			Enabled:         getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:         getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			PredictionTopic: getEnv("KAFKA_PREDICTION_TOPIC", "prediction-logs"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Provider.MaxAttempts < 1 {
		return fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be at least 1")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
