package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DonationIntentTotal counts donation creation outcomes by kind (one_time, monthly).
	DonationIntentTotal *prometheus.CounterVec
	// GatewayCallDuration records payment gateway call latency in milliseconds.
	GatewayCallDuration *prometheus.HistogramVec
	// WebhookEventTotal counts inbound gateway webhook outcomes by event type.
	WebhookEventTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		DonationIntentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donation_intent_total",
			Help:      "Count of donation intent creation outcomes.",
		}, []string{"kind", "result"})
		GatewayCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_ms",
			Help:      "Latency of payment gateway calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation", "result"})
		WebhookEventTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donation_webhook_total",
			Help:      "Count of processed gateway webhooks by event type and outcome.",
		}, []string{"type", "result"})

		mustRegisterCollector(reg, DonationIntentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DonationIntentTotal = v
			}
		})
		mustRegisterCollector(reg, GatewayCallDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				GatewayCallDuration = v
			}
		})
		mustRegisterCollector(reg, WebhookEventTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookEventTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
