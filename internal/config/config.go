package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (session store)
	Redis RedisConfig

	// Security configuration (tokens, cookies, sessions)
	Security SecurityConfig

	// Site configuration (titles, paging, feeds)
	Site SiteConfig

	// Cache configuration (HTML/PDF file cache)
	Cache CacheConfig

	// Export configuration
	Export ExportConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MigrationsPath  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig holds redis settings. An empty Addr selects the in-memory session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig holds secrets and session settings
type SecurityConfig struct {
	Secret       string
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
}

// SiteConfig holds presentation settings
type SiteConfig struct {
	Title       string
	Description string
	URL         string
	PageSize    int
	FeedSize    int
	AdminEmail  string
}

// CacheConfig holds file cache settings
type CacheConfig struct {
	Dir     string
	Enabled bool
	MaxAge  time.Duration
}

// ExportConfig holds async export settings
type ExportConfig struct {
	Dir        string
	MaxWorkers int
	Retention  time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
	File   string // optional file the log viewer reads
}

// Load reads configuration from environment variables, after loading a .env
// file when one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "alpha"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			Secret:       getEnv("SECURITY_SECRET", ""),
			CookieName:   getEnv("SESSION_COOKIE", "alpha_session"),
			CookieSecure: getBoolEnv("SESSION_COOKIE_SECURE", false),
			SessionTTL:   getDurationEnv("SESSION_TTL", 24*time.Hour),
		},
		Site: SiteConfig{
			Title:       getEnv("SITE_TITLE", "Alpha"),
			Description: getEnv("SITE_DESCRIPTION", "Articles"),
			URL:         getEnv("SITE_URL", "http://localhost:8080"),
			PageSize:    getIntEnv("SITE_PAGE_SIZE", 10),
			FeedSize:    getIntEnv("SITE_FEED_SIZE", 20),
			AdminEmail:  getEnv("SITE_ADMIN_EMAIL", ""),
		},
		Cache: CacheConfig{
			Dir:     getEnv("CACHE_DIR", "./data/cache"),
			Enabled: getBoolEnv("CACHE_ENABLED", true),
			MaxAge:  getDurationEnv("CACHE_MAX_AGE", 7*24*time.Hour),
		},
		Export: ExportConfig{
			Dir:        getEnv("EXPORT_DIR", "./data/exports"),
			MaxWorkers: getIntEnv("EXPORT_MAX_WORKERS", 0),
			Retention:  getDurationEnv("EXPORT_RETENTION", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if len(c.Security.Secret) < 32 {
		return fmt.Errorf("SECURITY_SECRET must be at least 32 bytes")
	}
	if c.Site.PageSize <= 0 {
		return fmt.Errorf("SITE_PAGE_SIZE must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
