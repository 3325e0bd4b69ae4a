package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	PaymentWebhookSecret string
	ShippingAPIKey       string
	ShippingBaseURL      string
	ShippingWebhookToken string

	TaxBps          int
	ShippingFlatFee int64
	GuestCartTTL    time.Duration
	UserCartTTL     time.Duration

	NotifyWebhookTargets []string
	NotifyWebhookSecret  string
	NotifyMaxAttempts    int
	NotifyEmailEnabled   bool

	LogFormat         string
	LogLevel          string
	OTLPEndpoint      string
	WorkerConcurrency int
	RateLimitPerMin   int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PaymentWebhookSecret: k.String("PAYMENT_WEBHOOK_SECRET"),
		ShippingAPIKey:       k.String("SHIPPING_API_KEY"),
		ShippingBaseURL:      valueOrDefault(k.String("SHIPPING_BASE_URL"), "https://api.envioexpress.example"),
		ShippingWebhookToken: k.String("SHIPPING_WEBHOOK_TOKEN"),

		TaxBps:          parseInt(k.String("TAX_BPS"), 0),
		ShippingFlatFee: int64(parseInt(k.String("SHIPPING_FLAT_FEE"), 0)),
		GuestCartTTL:    parseDuration(k.String("GUEST_CART_TTL"), "168h"),
		UserCartTTL:     parseDuration(k.String("USER_CART_TTL"), "720h"),

		NotifyWebhookTargets: splitAndTrim(k.String("NOTIFY_WEBHOOK_TARGETS")),
		NotifyWebhookSecret:  k.String("NOTIFY_WEBHOOK_SECRET"),
		NotifyMaxAttempts:    parseInt(k.String("NOTIFY_MAX_ATTEMPTS"), 6),
		NotifyEmailEnabled:   parseBool(k.String("NOTIFY_EMAIL_ENABLED"), false),

		LogFormat:         valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:          valueOrDefault(k.String("LOG_LEVEL"), "info"),
		OTLPEndpoint:      strings.TrimSpace(k.String("OTLP_ENDPOINT")),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 10),
		RateLimitPerMin:   parseInt(k.String("RATE_LIMIT_PER_MIN"), 120),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	b, err := strconv.ParseBool(base)
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(value string, fallback int) int {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	n, err := strconv.Atoi(base)
	if err != nil {
		return fallback
	}
	return n
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
