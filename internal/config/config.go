package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envProduction = "production"

var (
	productionOrigins  = []string{"https://your-domain.com", "https://www.your-domain.com"}
	developmentOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string

	StripeSecretKey         string
	StripePublishableKey    string
	StripeWebhookSecret     string
	StripeAPIURL            string
	StripeMaxNetworkRetries int64
	StripeProductID         string

	RedisURL               string
	RateLimitGlobal        int
	RateLimitGlobalWindow  time.Duration
	RateLimitPayment       int
	RateLimitPaymentWindow time.Duration

	SiteConfigFile  string
	StaticDir       string
	BodyLimitBytes  int64
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             strings.ToLower(valueOrDefault(k.String("APP_ENV"), "development")),
		Port:               valueOrDefault(k.String("PORT"), "3000"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		StripeSecretKey:         strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripePublishableKey:    valueOrDefault(k.String("STRIPE_PUBLISHABLE_KEY"), "pk_test_YOUR_PUBLISHABLE_KEY_HERE"),
		StripeWebhookSecret:     strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),
		StripeAPIURL:            strings.TrimSpace(k.String("STRIPE_API_URL")),
		StripeMaxNetworkRetries: int64(parseInt(k.String("STRIPE_MAX_NETWORK_RETRIES"), 0)),
		StripeProductID:         strings.TrimSpace(k.String("STRIPE_DONATION_PRODUCT_ID")),

		RedisURL:               strings.TrimSpace(k.String("REDIS_URL")),
		RateLimitGlobal:        parseInt(k.String("RATE_LIMIT_GLOBAL"), 100),
		RateLimitGlobalWindow:  parseDuration(k.String("RATE_LIMIT_GLOBAL_WINDOW"), "15m"),
		RateLimitPayment:       parseInt(k.String("RATE_LIMIT_PAYMENT"), 5),
		RateLimitPaymentWindow: parseDuration(k.String("RATE_LIMIT_PAYMENT_WINDOW"), "1m"),

		SiteConfigFile:  strings.TrimSpace(k.String("SITE_CONFIG_FILE")),
		StaticDir:       strings.TrimSpace(k.String("STATIC_DIR")),
		BodyLimitBytes:  int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 64<<10)),
		ShutdownTimeout: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		if cfg.IsProduction() {
			cfg.CORSAllowedOrigins = append([]string(nil), productionOrigins...)
		} else {
			cfg.CORSAllowedOrigins = append([]string(nil), developmentOrigins...)
		}
	}
	if cfg.StripeMaxNetworkRetries < 0 {
		cfg.StripeMaxNetworkRetries = 0
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production semantics
// (error details hidden, production CORS defaults).
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == envProduction
}

// GatewayConfigured reports whether a payment gateway secret key is present.
func (c *Config) GatewayConfigured() bool {
	return c != nil && c.StripeSecretKey != ""
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
		return strings.TrimSpace(value)
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

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
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
