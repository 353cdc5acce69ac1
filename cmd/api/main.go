package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donation-api/internal/config"
	"github.com/noah-isme/donation-api/internal/donation"
	"github.com/noah-isme/donation-api/internal/health"
	"github.com/noah-isme/donation-api/internal/obs"
	"github.com/noah-isme/donation-api/internal/payment"
	"github.com/noah-isme/donation-api/internal/ratelimit"
	"github.com/noah-isme/donation-api/internal/security"
	"github.com/noah-isme/donation-api/internal/siteconfig"
)

const donationSource = "Animal Rights Website"

const paymentLimitMessage = "Too many payment attempts, please try again later."

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "donation")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "donation-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	site, err := siteconfig.Load(cfg.SiteConfigFile, cfg.StripePublishableKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("load site config")
	}

	if !cfg.GatewayConfigured() {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set; donation endpoints will return gateway errors")
	}
	if cfg.StripeWebhookSecret == "" {
		logger.Warn().Msg("STRIPE_WEBHOOK_SECRET not set; webhooks will be rejected")
	}
	gateway := payment.NewStripe(payment.StripeConfig{
		SecretKey:         cfg.StripeSecretKey,
		APIURL:            cfg.StripeAPIURL,
		MaxNetworkRetries: cfg.StripeMaxNetworkRetries,
		ProductID:         cfg.StripeProductID,
		Logger:            logger,
	})

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		cancel()
	}

	globalLimiter, paymentLimiter, err := newLimiters(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiters")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	var checker health.Checker
	if redisClient != nil {
		checker = health.RedisPinger(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	r := newRouter(routerDeps{
		cfg:            cfg,
		logger:         logger,
		site:           site,
		gateway:        gateway,
		checker:        checker,
		httpMetrics:    httpMetrics,
		tracing:        tracingEnabled,
		globalLimiter:  globalLimiter,
		paymentLimiter: paymentLimiter,
	})
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Bool("stripe_configured", cfg.GatewayConfigured()).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
		logger.Info().Msg("server stopped")
	}
}

type routerDeps struct {
	cfg            *config.Config
	logger         zerolog.Logger
	site           siteconfig.Config
	gateway        payment.Gateway
	checker        health.Checker
	httpMetrics    *obs.HTTPMetrics
	tracing        bool
	globalLimiter  ratelimit.Limiter
	paymentLimiter ratelimit.Limiter
}

func newRouter(d routerDeps) chi.Router {
	cfg := d.cfg
	expose := !cfg.IsProduction()

	svc := &donation.Service{
		Gateway:      d.gateway,
		Organization: d.site.UI.OrganizationName,
		Source:       donationSource,
		Logger:       d.logger,
	}
	donationHandler := &donation.Handler{
		Svc:           svc,
		Validator:     donation.NewValidator(d.site.Stripe.Currency),
		ExposeDetails: expose,
	}
	webhookHandler := donation.WebhookHandler{
		Dispatcher: &donation.Dispatcher{
			Gateway: d.gateway,
			Secret:  cfg.StripeWebhookSecret,
			Hooks:   donation.LogHooks{Logger: d.logger.With().Str("component", "webhook").Logger()},
			Logger:  d.logger,
		},
		MaxBytes: cfg.BodyLimitBytes,
	}
	healthHandler := health.Handler{
		Checker:           d.checker,
		GatewayConfigured: cfg.GatewayConfigured(),
		Environment:       cfg.AppEnv,
	}
	siteHandler := siteconfig.Handler{Config: d.site}

	onLimiterError := func(err error) {
		d.logger.Error().Err(err).Msg("rate limiter unavailable")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RoutePatternMiddleware)
	if d.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(obs.Recoverer(d.logger, expose))
	r.Use(security.Headers{
		Enable:                true,
		EnableHSTS:            cfg.IsProduction(),
		HSTSIncludeSubdomains: true,
		CSP:                   security.DonationPagePolicy,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	// Stripe retries deliveries on its own schedule; the webhook stays outside the per-IP budget.
	r.Post("/webhook", webhookHandler.Handle)

	r.Group(func(g chi.Router) {
		g.Use(ratelimit.Handler{
			Limiter: d.globalLimiter,
			Key:     ratelimit.ByClientIP("global:"),
			OnError: onLimiterError,
		}.Middleware)

		g.Get("/health", healthHandler.Health)
		g.Get("/health/live", healthHandler.Live)
		g.Get("/health/ready", healthHandler.Ready)
		g.Get("/config", siteHandler.Get)

		g.With(ratelimit.Handler{
			Limiter: d.paymentLimiter,
			Key:     ratelimit.ByClientIP("payment:"),
			Message: paymentLimitMessage,
			OnError: onLimiterError,
		}.Middleware).Post("/create-payment-intent", donationHandler.CreateIntent)
		g.Get("/payment-status/{intentID}", donationHandler.Status)

		if cfg.StaticDir != "" {
			g.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
		}
	})
	return r
}

// newLimiters builds the global and payment limiters. With Redis configured the
// counters are shared between replicas; RATE_LIMIT_STRATEGY=sliding switches the
// payment limiter to the sorted-set sliding window.
func newLimiters(cfg *config.Config, client *redis.Client) (ratelimit.Limiter, ratelimit.Limiter, error) {
	store, err := ratelimit.NewStore(client, "donation:rl:")
	if err != nil {
		return nil, nil, err
	}
	global := ratelimit.NewFixedWindow(store, cfg.RateLimitGlobal, cfg.RateLimitGlobalWindow)
	var pay ratelimit.Limiter = ratelimit.NewFixedWindow(store, cfg.RateLimitPayment, cfg.RateLimitPaymentWindow)
	if client != nil && strings.EqualFold(envOrDefault("RATE_LIMIT_STRATEGY", "fixed"), "sliding") {
		pay = ratelimit.SlidingWindow{
			Client: client,
			Prefix: "donation:rl:sw:",
			Window: cfg.RateLimitPaymentWindow,
			Max:    cfg.RateLimitPayment,
		}
	}
	return global, pay, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
