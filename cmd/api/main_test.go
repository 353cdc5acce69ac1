package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/donation-api/internal/config"
	"github.com/noah-isme/donation-api/internal/payment"
	"github.com/noah-isme/donation-api/internal/ratelimit"
	"github.com/noah-isme/donation-api/internal/siteconfig"
)

type stubGateway struct{}

func (stubGateway) CreateCustomer(context.Context, payment.CustomerProfile) (string, error) {
	return "cus_1", nil
}

func (stubGateway) CreateSubscription(_ context.Context, customerID string, _ payment.PriceSpec, _ map[string]string) (payment.Subscription, error) {
	return payment.Subscription{ID: "sub_1", CustomerID: customerID, ClientSecret: "sub_secret"}, nil
}

func (stubGateway) CreatePaymentIntent(context.Context, payment.IntentSpec) (payment.Intent, error) {
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (stubGateway) RetrievePaymentIntent(_ context.Context, id string) (payment.IntentStatus, error) {
	return payment.IntentStatus{ID: id, Status: "processing", AmountMinor: 1000, Currency: "usd", Created: time.Unix(1700000000, 0)}, nil
}

func (stubGateway) VerifyWebhookSignature([]byte, string, string) (payment.Event, error) {
	return payment.Event{}, payment.ErrVerification
}

func testRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	global, pay, err := newLimiters(cfg, nil)
	require.NoError(t, err)
	return newRouter(routerDeps{
		cfg:            cfg,
		logger:         zerolog.Nop(),
		site:           siteconfig.Default(),
		gateway:        stubGateway{},
		globalLimiter:  global,
		paymentLimiter: pay,
	})
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                 "development",
		StripeSecretKey:        "sk_test_x",
		CORSAllowedOrigins:     []string{"http://localhost:3000"},
		RateLimitGlobal:        100,
		RateLimitGlobalWindow:  15 * time.Minute,
		RateLimitPayment:       5,
		RateLimitPaymentWindow: time.Minute,
		BodyLimitBytes:         64 << 10,
	}
}

const donationBody = `{"amount":10,"customerInfo":{"email":"a@b.com","firstName":"Ann","lastName":"Lee"}}`

func TestRouterHealthAndConfig(t *testing.T) {
	router := testRouter(t, testConfig())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var report map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Equal(t, "OK", report["status"])
	require.Equal(t, "Connected", report["stripe"])
	require.Equal(t, "development", report["environment"])
	require.Contains(t, rr.Header().Get("Content-Security-Policy"), "https://js.stripe.com")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"publishableKey"`)
	require.NotContains(t, rr.Body.String(), "sk_test_x")
}

func TestRouterPaymentRateLimit(t *testing.T) {
	router := testRouter(t, testConfig())

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/create-payment-intent", strings.NewReader(donationBody)))
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/create-payment-intent", strings.NewReader(donationBody)))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Contains(t, rr.Body.String(), paymentLimitMessage)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payment-status/pi_1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterWebhookWithoutSecret(t *testing.T) {
	router := testRouter(t, testConfig())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Webhook secret not configured\n", rr.Body.String())
}

func TestRouterWebhookOutsideGlobalLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitGlobal = 1
	router := testRouter(t, cfg)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouterServesStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Donate</h1>"), 0o600))
	cfg := testConfig()
	cfg.StaticDir = dir
	router := testRouter(t, cfg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Donate")
}

func TestNewLimitersWithoutRedis(t *testing.T) {
	global, pay, err := newLimiters(testConfig(), nil)
	require.NoError(t, err)
	require.IsType(t, &ratelimit.FixedWindow{}, global)
	require.IsType(t, &ratelimit.FixedWindow{}, pay)
}
