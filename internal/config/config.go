package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultBulletinURL is the SWPC 27-day outlook text product.
const DefaultBulletinURL = "https://services.swpc.noaa.gov/text/27-day-outlook.txt"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BulletinURL     string
	BulletinTimeout time.Duration

	StoreBackend string
	SQLitePath   string
	DatabaseURL  string

	// Window cache: Redis when RedisAddr is set, otherwise in-process.
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	WindowCacheTTL time.Duration

	// Cycle events, disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// External forecasting model, disabled when ModelCommand is empty.
	ModelCommand []string
	ModelTimeout time.Duration

	SchedulerEnabled bool
	RefreshSchedule  string
	RefreshTimezone  string
	ModelSchedule    string
	ModelTimezone    string
	SkipStartupRun   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	bulletinTimeout, err := parseDuration("BULLETIN_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("WINDOW_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	modelTimeout, err := parseDuration("MODEL_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BulletinURL:     sharedcfg.EnvOrDefault("BULLETIN_URL", DefaultBulletinURL),
		BulletinTimeout: bulletinTimeout,

		StoreBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", BackendSQLite)),
		SQLitePath:   sharedcfg.EnvOrDefault("SQLITE_PATH", "solar-outlook.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		WindowCacheTTL: cacheTTL,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "solar-outlook-cycles"),

		ModelCommand: strings.Fields(os.Getenv("MODEL_COMMAND")),
		ModelTimeout: modelTimeout,

		SchedulerEnabled: parseBool("SCHEDULER_ENABLED", true),
		RefreshSchedule:  sharedcfg.EnvOrDefault("REFRESH_SCHEDULE", "10 16 * * *"),
		RefreshTimezone:  sharedcfg.EnvOrDefault("REFRESH_TIMEZONE", "UTC"),
		ModelSchedule:    sharedcfg.EnvOrDefault("MODEL_SCHEDULE", "0 6 * * *"),
		ModelTimezone:    sharedcfg.EnvOrDefault("MODEL_TIMEZONE", "Asia/Kolkata"),
		SkipStartupRun:   parseBool("SKIP_STARTUP_RUN", false),
	}

	switch cfg.StoreBackend {
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.BulletinURL == "" {
		return nil, errors.New("BULLETIN_URL is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// CacheEnabled reports whether a Redis window cache is configured.
func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }

// EventsEnabled reports whether cycle events are published to Kafka.
func (c *Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ModelEnabled reports whether an external model command is configured.
func (c *Config) ModelEnabled() bool { return len(c.ModelCommand) > 0 }

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
