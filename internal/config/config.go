// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig aggregates the settings of every service in the repo. Each binary
// reads the subset it needs and checks its own required values.
type AppConfig struct {
	Port           string
	ServiceVersion string
	LogLevel       slog.Level
	OTLPEndpoint   string

	PostgresURL string
	DBSchema    string

	JWTSecret string

	KafkaBrokers     []string
	OrderPlacedTopic string
	WorkerGroupID    string

	RedisAddr       string
	RedisDB         int
	OrderRateLimit  int
	OrderRateWindow time.Duration

	OrderTxTimeout time.Duration
	LockTimeout    time.Duration

	// RuleViolationStatus is the HTTP status returned for insufficient stock
	// or point. Defaults to 500 to keep the established client contract.
	RuleViolationStatus int

	OrdersServiceURL  string
	CatalogServiceURL string
	EmailServiceURL   string
}

// Load reads and validates the configuration, falling back to defaults for
// unset values.
func Load(defaultPort string) (AppConfig, error) {
	cfg := AppConfig{
		Port:                getEnv("PORT", defaultPort),
		ServiceVersion:      getEnv("SERVICE_VERSION", "0.1.0"),
		LogLevel:            slog.LevelInfo,
		OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		PostgresURL:         getEnv("POSTGRES_URL", ""),
		DBSchema:            getEnv("DB_SCHEMA", "gift"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		KafkaBrokers:        splitCSV(getEnv("KAFKA_BROKERS", "")),
		OrderPlacedTopic:    getEnv("ORDER_PLACED_TOPIC", "order.placed"),
		WorkerGroupID:       getEnv("WORKER_GROUP_ID", "gift-message-worker"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisDB:             0,
		OrderRateLimit:      20,
		OrderRateWindow:     time.Second,
		OrderTxTimeout:      5 * time.Second,
		LockTimeout:         3 * time.Second,
		RuleViolationStatus: http.StatusInternalServerError,
		OrdersServiceURL:    getEnv("ORDERS_SERVICE_URL", ""),
		CatalogServiceURL:   getEnv("CATALOG_SERVICE_URL", ""),
		EmailServiceURL:     getEnv("EMAIL_SERVICE_URL", ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return AppConfig{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("ORDER_RATE_LIMIT", cfg.OrderRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ORDER_RATE_WINDOW_SEC", int(cfg.OrderRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	txTimeout, err := getEnvMillis("ORDER_TX_TIMEOUT_MS", cfg.OrderTxTimeout)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_TX_TIMEOUT_MS: %w", err)
	}
	cfg.OrderTxTimeout = txTimeout

	lockTimeout, err := getEnvMillis("LOCK_TIMEOUT_MS", cfg.LockTimeout)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid LOCK_TIMEOUT_MS: %w", err)
	}
	cfg.LockTimeout = lockTimeout

	status, err := getEnvInt("RULE_VIOLATION_STATUS", cfg.RuleViolationStatus)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RULE_VIOLATION_STATUS: %w", err)
	}
	if status < 400 || status > 599 {
		return AppConfig{}, fmt.Errorf("RULE_VIOLATION_STATUS must be a 4xx or 5xx status, got %d", status)
	}
	cfg.RuleViolationStatus = status

	if cfg.DBSchema == "" {
		return AppConfig{}, fmt.Errorf("DB_SCHEMA must not be empty")
	}
	if cfg.OrderPlacedTopic == "" {
		return AppConfig{}, fmt.Errorf("ORDER_PLACED_TOPIC must not be empty")
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c AppConfig) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvMillis(key string, fallback time.Duration) (time.Duration, error) {
	ms, err := getEnvInt(key, int(fallback.Milliseconds()))
	if err != nil {
		return 0, err
	}
	if ms <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
