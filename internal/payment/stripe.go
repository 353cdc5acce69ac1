package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/donation-api/internal/obs"
)

// StripeConfig configures the Stripe gateway client.
type StripeConfig struct {
	SecretKey         string
	APIURL            string
	MaxNetworkRetries int64
	// ProductID is used for recurring price data. When empty a product is
	// created alongside each subscription.
	ProductID  string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Stripe implements Gateway on top of the official Stripe SDK.
type Stripe struct {
	api       *client.API
	productID string
	key       string
}

// NewStripe builds a Stripe gateway with its own backends; it never touches the
// SDK's package-level key or backends.
func NewStripe(cfg StripeConfig) *Stripe {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   80 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     leveledLogger{logger: cfg.Logger.With().Str("component", "stripe").Logger()},
	}
	if url := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"); url != "" {
		backendCfg.URL = stripe.String(url)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}
	return &Stripe{
		api:       client.New(cfg.SecretKey, backends),
		productID: strings.TrimSpace(cfg.ProductID),
		key:       strings.TrimSpace(cfg.SecretKey),
	}
}

// CreateCustomer creates the donor's customer record.
func (s *Stripe) CreateCustomer(ctx context.Context, profile CustomerProfile) (string, error) {
	var id string
	err := s.call(ctx, "customers.create", func(ctx context.Context) error {
		params := &stripe.CustomerParams{
			Email: stripe.String(profile.Email),
			Name:  stripe.String(profile.Name),
		}
		if phone := strings.TrimSpace(profile.Phone); phone != "" {
			params.Phone = stripe.String(phone)
		}
		for k, v := range profile.Metadata {
			params.AddMetadata(k, v)
		}
		params.Context = ctx
		customer, err := s.api.Customers.New(params)
		if err != nil {
			return err
		}
		id = customer.ID
		return nil
	})
	return id, err
}

// CreateSubscription creates a monthly (or PriceSpec.Interval) subscription whose
// first invoice stays incomplete until the client confirms it.
func (s *Stripe) CreateSubscription(ctx context.Context, customerID string, price PriceSpec, metadata map[string]string) (Subscription, error) {
	var out Subscription
	productID, err := s.resolveProduct(ctx, price)
	if err != nil {
		return out, err
	}
	err = s.call(ctx, "subscriptions.create", func(ctx context.Context) error {
		interval := price.Interval
		if interval == "" {
			interval = string(stripe.PriceRecurringIntervalMonth)
		}
		params := &stripe.SubscriptionParams{
			Customer: stripe.String(customerID),
			Items: []*stripe.SubscriptionItemsParams{{
				PriceData: &stripe.SubscriptionItemPriceDataParams{
					Currency:   stripe.String(price.Currency),
					Product:    stripe.String(productID),
					UnitAmount: stripe.Int64(price.AmountMinor),
					Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
						Interval: stripe.String(interval),
					},
				},
			}},
			PaymentBehavior: stripe.String("default_incomplete"),
			PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
				SaveDefaultPaymentMethod: stripe.String("on_subscription"),
			},
		}
		params.AddExpand("latest_invoice.payment_intent")
		for k, v := range metadata {
			params.AddMetadata(k, v)
		}
		params.Context = ctx
		sub, err := s.api.Subscriptions.New(params)
		if err != nil {
			return err
		}
		if sub.LatestInvoice == nil || sub.LatestInvoice.PaymentIntent == nil || sub.LatestInvoice.PaymentIntent.ClientSecret == "" {
			return &GatewayError{
				Message: fmt.Sprintf("subscription %s has no pending invoice payment", sub.ID),
				Type:    DefaultErrorType,
			}
		}
		out = Subscription{
			ID:           sub.ID,
			CustomerID:   customerID,
			ClientSecret: sub.LatestInvoice.PaymentIntent.ClientSecret,
		}
		return nil
	})
	return out, err
}

func (s *Stripe) resolveProduct(ctx context.Context, price PriceSpec) (string, error) {
	if s.productID != "" {
		return s.productID, nil
	}
	var id string
	err := s.call(ctx, "products.create", func(ctx context.Context) error {
		params := &stripe.ProductParams{Name: stripe.String(price.ProductName)}
		if price.ProductDescription != "" {
			params.Description = stripe.String(price.ProductDescription)
		}
		params.Context = ctx
		product, err := s.api.Products.New(params)
		if err != nil {
			return err
		}
		id = product.ID
		return nil
	})
	return id, err
}

// CreatePaymentIntent opens a one-time payment intent with automatic payment methods.
func (s *Stripe) CreatePaymentIntent(ctx context.Context, spec IntentSpec) (Intent, error) {
	var out Intent
	err := s.call(ctx, "payment_intents.create", func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(spec.AmountMinor),
			Currency: stripe.String(spec.Currency),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		if spec.ReceiptEmail != "" {
			params.ReceiptEmail = stripe.String(spec.ReceiptEmail)
		}
		if spec.Description != "" {
			params.Description = stripe.String(spec.Description)
		}
		for k, v := range spec.Metadata {
			params.AddMetadata(k, v)
		}
		params.Context = ctx
		pi, err := s.api.PaymentIntents.New(params)
		if err != nil {
			return err
		}
		out = Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}
		return nil
	})
	return out, err
}

// RetrievePaymentIntent fetches the current state of a payment intent.
func (s *Stripe) RetrievePaymentIntent(ctx context.Context, intentID string) (IntentStatus, error) {
	var out IntentStatus
	err := s.call(ctx, "payment_intents.retrieve", func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		pi, err := s.api.PaymentIntents.Get(intentID, params)
		if err != nil {
			return err
		}
		out = IntentStatus{
			ID:          pi.ID,
			Status:      string(pi.Status),
			AmountMinor: pi.Amount,
			Currency:    string(pi.Currency),
			Created:     time.Unix(pi.Created, 0).UTC(),
		}
		return nil
	})
	return out, err
}

// VerifyWebhookSignature checks the Stripe-Signature header against payload and
// decodes the event. An empty secret always fails. A verified event whose object
// does not decode is returned together with an error wrapping ErrEventDecode.
func (s *Stripe) VerifyWebhookSignature(payload []byte, signature, secret string) (Event, error) {
	if strings.TrimSpace(secret) == "" {
		return Event{}, ErrWebhookSecretMissing
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return decodeEvent(evt)
}

func decodeEvent(evt stripe.Event) (Event, error) {
	out := Event{ID: evt.ID, Type: EventType(evt.Type)}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return out, nil
	}
	out.Raw = evt.Data.Raw
	switch {
	case strings.HasPrefix(string(evt.Type), "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return out, fmt.Errorf("%w: decode payment intent: %v", ErrEventDecode, err)
		}
		obj := &PaymentIntentObject{
			ID:          pi.ID,
			AmountMinor: pi.Amount,
			Currency:    string(pi.Currency),
			Metadata:    pi.Metadata,
		}
		if pi.LastPaymentError != nil {
			obj.FailureError = pi.LastPaymentError.Msg
		}
		out.PaymentIntent = obj
	case strings.HasPrefix(string(evt.Type), "invoice."):
		var inv stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return out, fmt.Errorf("%w: decode invoice: %v", ErrEventDecode, err)
		}
		obj := &InvoiceObject{
			ID:              inv.ID,
			AmountPaidMinor: inv.AmountPaid,
			Currency:        string(inv.Currency),
		}
		if inv.Subscription != nil {
			obj.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			obj.CustomerID = inv.Customer.ID
		}
		out.Invoice = obj
	case strings.HasPrefix(string(evt.Type), "customer.subscription."):
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return out, fmt.Errorf("%w: decode subscription: %v", ErrEventDecode, err)
		}
		obj := &SubscriptionObject{ID: sub.ID, Status: string(sub.Status)}
		if sub.Customer != nil {
			obj.CustomerID = sub.Customer.ID
		}
		out.Subscription = obj
	}
	return out, nil
}

// call wraps a single SDK request with a span, latency metric and error normalisation.
func (s *Stripe) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("payment.Stripe").Start(ctx, "Stripe."+op)
	defer span.End()
	span.SetAttributes(attribute.String("payment.gateway.operation", op))

	start := time.Now()
	result := "error"
	defer func() {
		if obs.GatewayCallDuration != nil {
			obs.GatewayCallDuration.WithLabelValues(op, result).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	if s == nil || s.api == nil || s.key == "" {
		err := AsGatewayError(ErrNotConfigured)
		span.SetStatus(codes.Error, err.Message)
		return err
	}
	if err := ctx.Err(); err != nil {
		return AsGatewayError(err)
	}
	if err := fn(ctx); err != nil {
		gwErr := AsGatewayError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, gwErr.Message)
		span.SetAttributes(attribute.String("payment.gateway.error_type", gwErr.Type))
		return gwErr
	}
	result = "success"
	return nil
}

// leveledLogger routes SDK logs through zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }

var _ Gateway = (*Stripe)(nil)
