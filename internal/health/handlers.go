package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/donation-api/internal/common"
)

const (
	gatewayConnected     = "Connected"
	gatewayNotConfigured = "Not configured"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness flag. The server clears it when draining.
func SetReady(v bool) {
	ready.Store(v)
}

// Checker probes the optional shared rate limit store.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker           Checker
	GatewayConfigured bool
	Environment       string
	RedisTimeout      time.Duration
	Now               func() time.Time
}

// Report is the body of GET /health.
type Report struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Stripe      string    `json:"stripe"`
	Environment string    `json:"environment"`
}

// Health always answers 200 and reports whether the gateway credential is present.
func (h Handler) Health(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, Report{
		Status:      "OK",
		Timestamp:   h.now().UTC(),
		Stripe:      h.gatewayState(),
		Environment: h.Environment,
	})
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready answers 503 while draining, without a gateway credential, or when the
// configured Redis store does not respond.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"stripe": h.gatewayState(),
		"redis":  "disabled",
	}
	ok := ready.Load() && h.GatewayConfigured
	if !ready.Load() {
		status["server"] = "draining"
	}
	if h.Checker != nil {
		status["redis"] = "ok"
		if err := h.Checker.PingRedis(r.Context(), h.redisTimeout()); err != nil {
			status["redis"] = err.Error()
			ok = false
		}
	}
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) gatewayState() string {
	if h.GatewayConfigured {
		return gatewayConnected
	}
	return gatewayNotConfigured
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}

// RedisPinger adapts a ping function to Checker.
type RedisPinger func(ctx context.Context) error

// PingRedis implements Checker.
func (p RedisPinger) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p(ctx)
}
