// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	GRPCHealthPort string
	FrontendURL    string
	CORSOrigins    []string

	StorageBackend string // "sqlite" or "file"
	DBPath         string
	SessionsDir    string
	SessionSlot    string

	Gateway         GatewayConfig
	Pacing          PacingConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// GatewayConfig selects the text generation backend. A non-empty URL
// points at a remote gateway; otherwise Gemini is used when a key is set.
type GatewayConfig struct {
	URL          string
	Timeout      time.Duration
	GeminiAPIKey string
	GeminiModel  string
}

// PacingConfig controls how long the assistant "types".
type PacingConfig struct {
	Min          time.Duration
	Max          time.Duration
	OpeningDelay time.Duration
}

// RateLimitConfig bounds user input submissions.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled          bool
	Dir              string
	GlobalEnabled    bool
	GlobalPath       string
	GlobalMaxSizeMB  int
	GlobalMaxBackups int
	QueueSize        int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "9090"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "sqlite")),
		DBPath:         getEnv("DB_PATH", "./data/careerpath.db"),
		SessionsDir:    getEnv("SESSIONS_DIR", "./data/sessions"),
		SessionSlot:    getEnv("SESSION_SLOT", "careerChatSessions"),

		Gateway: GatewayConfig{
			URL:          getEnv("GATEWAY_URL", ""),
			Timeout:      getEnvDuration("GATEWAY_TIMEOUT", 60*time.Second),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Pacing: PacingConfig{
			Min:          getEnvDuration("PACING_MIN", time.Second),
			Max:          getEnvDuration("PACING_MAX", 2*time.Second),
			OpeningDelay: getEnvDuration("OPENING_DELAY", 500*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 2),
			Burst: getEnvInt("RATE_LIMIT_BURST", 5),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:          getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:              getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled:    getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:       getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			GlobalMaxSizeMB:  getEnvInt("CONVERSATION_LOG_GLOBAL_MAX_SIZE_MB", 100),
			GlobalMaxBackups: getEnvInt("CONVERSATION_LOG_GLOBAL_MAX_BACKUPS", 5),
			QueueSize:        queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StorageBackend {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "file":
		if c.SessionsDir == "" {
			return fmt.Errorf("SESSIONS_DIR cannot be empty")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be sqlite or file, got %q", c.StorageBackend)
	}
	if c.SessionSlot == "" {
		return fmt.Errorf("SESSION_SLOT cannot be empty")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if c.Pacing.Min < 0 || c.Pacing.Max < c.Pacing.Min {
		return fmt.Errorf("PACING_MIN must be >= 0 and <= PACING_MAX")
	}
	if c.Pacing.OpeningDelay < 0 {
		return fmt.Errorf("OPENING_DELAY must be >= 0")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins: the explicit list if set,
// otherwise the frontend URL.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSOrigins) > 0 {
		return c.CORSOrigins
	}
	if c.FrontendURL != "" {
		return []string{c.FrontendURL}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("1.5s") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
