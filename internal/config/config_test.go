package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":                    "",
		"PORT":                       "",
		"CORS_ALLOWED_ORIGINS":       "",
		"STRIPE_SECRET_KEY":          "",
		"STRIPE_WEBHOOK_SECRET":      "",
		"STRIPE_MAX_NETWORK_RETRIES": "",
		"RATE_LIMIT_PAYMENT":         "",
		"RATE_LIMIT_PAYMENT_WINDOW":  "",
	})
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":3000", cfg.HTTPAddr())
	require.False(t, cfg.IsProduction())
	require.False(t, cfg.GatewayConfigured())
	require.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 5, cfg.RateLimitPayment)
	require.Equal(t, time.Minute, cfg.RateLimitPaymentWindow)
	require.Equal(t, int64(0), cfg.StripeMaxNetworkRetries)
}

func TestLoadProductionOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":                    "Production",
		"PORT":                       ":9090",
		"CORS_ALLOWED_ORIGINS":       "",
		"STRIPE_SECRET_KEY":          "sk_test_123",
		"STRIPE_WEBHOOK_SECRET":      "whsec_abc",
		"RATE_LIMIT_GLOBAL":          "10",
		"RATE_LIMIT_GLOBAL_WINDOW":   "bogus",
		"STRIPE_DONATION_PRODUCT_ID": "prod_123",
	})
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.True(t, cfg.GatewayConfigured())
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "whsec_abc", cfg.StripeWebhookSecret)
	require.Equal(t, "prod_123", cfg.StripeProductID)
	require.Equal(t, 10, cfg.RateLimitGlobal)
	require.Equal(t, 15*time.Minute, cfg.RateLimitGlobalWindow)
	require.Equal(t, []string{"https://your-domain.com", "https://www.your-domain.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadExplicitOrigins(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"CORS_ALLOWED_ORIGINS": " https://a.example , ,https://b.example",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
