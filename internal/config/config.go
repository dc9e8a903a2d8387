package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway
type Config struct {
	// HTTP server Configuration
	Server ServerConfig

	// Upstream API Configuration
	Upstream UpstreamConfig

	// Auth routing Configuration
	Routing RoutingConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds inbound HTTP server configuration
type ServerConfig struct {
	Port               string        `validate:"required,numeric"`
	MaxBodyBytes       int64         `validate:"gt=0"`
	CORSAllowedOrigins []string      `validate:"dive,required"`
	RateLimitRPS       float64       `validate:"gte=0"`
	RateLimitBurst     int           `validate:"gte=1"`
	ShutdownTimeout    time.Duration `validate:"gt=0"`
}

// UpstreamConfig holds upstream API configuration.
// APIToken is the server-held service credential and must never reach a client.
type UpstreamConfig struct {
	BaseURL          string `validate:"required,url"`
	APIToken         string
	TokenPlacement   string        `validate:"oneof=query header"`
	TokenParam       string        `validate:"required"`
	Timeout          time.Duration `validate:"gt=0"`
	MaxResponseBytes int64         `validate:"gt=0"`
	BreakerEnabled   bool
	HealthPath       string
	HealthInterval   time.Duration `validate:"gt=0"`
}

// RoutingConfig holds auth classification configuration
type RoutingConfig struct {
	TableFile       string
	ReservedSegment string `validate:"required"`
	ExternalSegment string `validate:"required,nefield=ReservedSegment"`
	CacheLimit      int    `validate:"gte=0"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// HasAPIToken reports whether a service credential is configured
func (u UpstreamConfig) HasAPIToken() bool {
	return u.APIToken != ""
}

const (
	defaultAPIPrefix        = "/api/v2"
	defaultMaxBodyBytes     = 10 << 20
	defaultMaxResponseBytes = 32 << 20
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return FromEnv()
}

// FromEnv builds the configuration from the process environment only
func FromEnv() (*Config, error) {
	r := envReader{}

	// Base URL - the browser-facing variable is honoured as a fallback
	baseURL := getEnv("API_BASE_URL", os.Getenv("NEXT_PUBLIC_API_BASE_URL"))
	apiPrefix, ok := os.LookupEnv("API_PREFIX")
	if !ok {
		apiPrefix = defaultAPIPrefix
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			MaxBodyBytes:       r.int64("MAX_BODY_BYTES", defaultMaxBodyBytes),
			CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			RateLimitRPS:       r.float("RATE_LIMIT_RPS", 0),
			RateLimitBurst:     r.int("RATE_LIMIT_BURST", 20),
			ShutdownTimeout:    r.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:          NormalizeBaseURL(baseURL, apiPrefix),
			APIToken:         strings.TrimSpace(os.Getenv("API_TOKEN")),
			TokenPlacement:   strings.ToLower(getEnv("API_TOKEN_PLACEMENT", "query")),
			TokenParam:       getEnv("API_TOKEN_PARAM", "token"),
			Timeout:          r.duration("UPSTREAM_TIMEOUT", 30*time.Second),
			MaxResponseBytes: r.int64("UPSTREAM_MAX_RESPONSE_BYTES", defaultMaxResponseBytes),
			BreakerEnabled:   r.bool("UPSTREAM_BREAKER_ENABLED", true),
			HealthPath:       os.Getenv("UPSTREAM_HEALTH_PATH"),
			HealthInterval:   r.duration("UPSTREAM_HEALTH_INTERVAL", 30*time.Second),
		},
		Routing: RoutingConfig{
			TableFile:       os.Getenv("ROUTE_TABLE_FILE"),
			ReservedSegment: strings.ToLower(getEnv("AUTH_RESERVED_SEGMENT", "auth")),
			ExternalSegment: strings.ToLower(getEnv("EXTERNAL_SEGMENT", "external")),
			CacheLimit:      r.int("CLASSIFICATION_CACHE_LIMIT", 4096),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if r.err != nil {
		return nil, r.err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// NormalizeBaseURL strips trailing slashes and appends prefix unless the URL
// already ends with it
func NormalizeBaseURL(baseURL, prefix string) string {
	clean := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if clean == "" {
		return ""
	}

	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return clean
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if strings.HasSuffix(clean, prefix) {
		return clean
	}
	return clean + prefix
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envReader parses typed variables and keeps the first parse error
type envReader struct {
	err error
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return d
}

func (r *envReader) int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return n
}

func (r *envReader) int64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return n
}

func (r *envReader) float(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return f
}

func (r *envReader) bool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return b
}
