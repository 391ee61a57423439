package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency   int
	RateLimitMs      int
	MaxRetries       int
	PageTimeoutSec   int
	DetailTimeoutSec int

	ExportDir   string
	SourcesFile string
	ChromeBin   string
	Headless    bool
	LogLevel    string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "apartments"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "apartment_history"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:       getEnvInt("MAX_RETRIES", 2),
		PageTimeoutSec:   getEnvInt("PAGE_TIMEOUT_SEC", 10),
		DetailTimeoutSec: getEnvInt("DETAIL_TIMEOUT_SEC", 15),

		ExportDir:   getEnv("EXPORT_DIR", "./output/apts"),
		SourcesFile: getEnv("SOURCES_FILE", "./sources.yaml"),
		ChromeBin:   getEnv("CHROME_BIN", ""),
		Headless:    getEnvBool("HEADLESS", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	dsn := "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}
	return dsn
}

// PageTimeout bounds a listing-page load or a wait for its container.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSec) * time.Second
}

// DetailTimeout bounds one detail-page visit.
func (c *Config) DetailTimeout() time.Duration {
	return time.Duration(c.DetailTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err == nil {
			return b
		}
	}
	return fallback
}
