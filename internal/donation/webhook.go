package donation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/donation-api/internal/obs"
	"github.com/noah-isme/donation-api/internal/payment"
)

// Ack is the body returned once a webhook has been verified.
type Ack struct {
	Received bool `json:"received"`
}

// Hooks receives the side effects of verified webhook events. Returned errors are
// logged; the event is still acknowledged.
type Hooks interface {
	PaymentSucceeded(ctx context.Context, pi payment.PaymentIntentObject) error
	PaymentFailed(ctx context.Context, pi payment.PaymentIntentObject) error
	InvoicePaid(ctx context.Context, inv payment.InvoiceObject) error
	SubscriptionCreated(ctx context.Context, sub payment.SubscriptionObject) error
	SubscriptionCanceled(ctx context.Context, sub payment.SubscriptionObject) error
}

// LogHooks records each event in the log and performs no other side effect.
type LogHooks struct {
	Logger zerolog.Logger
}

func (h LogHooks) PaymentSucceeded(_ context.Context, pi payment.PaymentIntentObject) error {
	h.Logger.Info().
		Str("payment_intent_id", pi.ID).
		Float64("amount", MajorUnits(pi.AmountMinor)).
		Str("currency", pi.Currency).
		Str("donor_email", pi.Metadata["donorEmail"]).
		Msg("donation_payment_succeeded")
	return nil
}

func (h LogHooks) PaymentFailed(_ context.Context, pi payment.PaymentIntentObject) error {
	h.Logger.Warn().
		Str("payment_intent_id", pi.ID).
		Str("failure", pi.FailureError).
		Msg("donation_payment_failed")
	return nil
}

func (h LogHooks) InvoicePaid(_ context.Context, inv payment.InvoiceObject) error {
	h.Logger.Info().
		Str("invoice_id", inv.ID).
		Str("subscription_id", inv.SubscriptionID).
		Float64("amount", MajorUnits(inv.AmountPaidMinor)).
		Str("currency", inv.Currency).
		Msg("donation_invoice_paid")
	return nil
}

func (h LogHooks) SubscriptionCreated(_ context.Context, sub payment.SubscriptionObject) error {
	h.Logger.Info().Str("subscription_id", sub.ID).Str("customer_id", sub.CustomerID).Msg("donation_subscription_created")
	return nil
}

func (h LogHooks) SubscriptionCanceled(_ context.Context, sub payment.SubscriptionObject) error {
	h.Logger.Info().Str("subscription_id", sub.ID).Str("customer_id", sub.CustomerID).Msg("donation_subscription_canceled")
	return nil
}

// Dispatcher verifies gateway notifications and routes them to Hooks.
type Dispatcher struct {
	Gateway payment.Gateway
	Secret  string
	Hooks   Hooks
	Logger  zerolog.Logger
}

// Handle verifies payload against signature and dispatches the event. It fails
// closed with payment.ErrWebhookSecretMissing when no secret is configured and with
// an error wrapping payment.ErrVerification when the signature does not match.
// Once the signature is verified the event is always acknowledged, even when its
// object cannot be decoded or a hook fails.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte, signature string) (Ack, error) {
	ctx, span := otel.Tracer("donation.Dispatcher").Start(ctx, "Dispatcher.Handle")
	defer span.End()

	if d == nil || d.Gateway == nil || d.Secret == "" {
		recordWebhook("unknown", "secret_missing")
		return Ack{}, payment.ErrWebhookSecretMissing
	}
	evt, err := d.Gateway.VerifyWebhookSignature(payload, signature, d.Secret)
	if errors.Is(err, payment.ErrEventDecode) {
		span.RecordError(err)
		d.Logger.Error().Err(err).Str("event_id", evt.ID).Str("event_type", string(evt.Type)).Msg("webhook_event_undecodable")
		recordWebhook(string(evt.Type), "hook_error")
		return Ack{Received: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		recordWebhook("unknown", "rejected")
		if errors.Is(err, payment.ErrWebhookSecretMissing) {
			return Ack{}, err
		}
		if !errors.Is(err, payment.ErrVerification) {
			err = errors.Join(payment.ErrVerification, err)
		}
		return Ack{}, err
	}
	span.SetAttributes(
		attribute.String("webhook.event_id", evt.ID),
		attribute.String("webhook.event_type", string(evt.Type)),
	)

	result := "handled"
	if err := d.dispatch(ctx, evt); err != nil {
		result = "hook_error"
		if errors.Is(err, errUnhandled) {
			result = "ignored"
		} else {
			span.RecordError(err)
			d.Logger.Error().Err(err).Str("event_id", evt.ID).Str("event_type", string(evt.Type)).Msg("webhook_hook_failed")
		}
	}
	recordWebhook(string(evt.Type), result)
	return Ack{Received: true}, nil
}

var (
	errUnhandled     = errors.New("unhandled event type")
	errMissingObject = errors.New("event carries no object")
)

func (d *Dispatcher) dispatch(ctx context.Context, evt payment.Event) error {
	hooks := d.Hooks
	if hooks == nil {
		hooks = LogHooks{Logger: d.Logger}
	}
	switch evt.Type {
	case payment.EventPaymentIntentSucceeded:
		if evt.PaymentIntent == nil {
			return errMissingObject
		}
		return hooks.PaymentSucceeded(ctx, *evt.PaymentIntent)
	case payment.EventPaymentIntentPaymentFailed:
		if evt.PaymentIntent == nil {
			return errMissingObject
		}
		return hooks.PaymentFailed(ctx, *evt.PaymentIntent)
	case payment.EventInvoicePaymentSucceeded:
		if evt.Invoice == nil {
			return errMissingObject
		}
		return hooks.InvoicePaid(ctx, *evt.Invoice)
	case payment.EventSubscriptionCreated:
		if evt.Subscription == nil {
			return errMissingObject
		}
		return hooks.SubscriptionCreated(ctx, *evt.Subscription)
	case payment.EventSubscriptionDeleted:
		if evt.Subscription == nil {
			return errMissingObject
		}
		return hooks.SubscriptionCanceled(ctx, *evt.Subscription)
	default:
		d.Logger.Info().Str("event_id", evt.ID).Str("event_type", string(evt.Type)).Msg("webhook_unhandled_event")
		return errUnhandled
	}
}

func recordWebhook(eventType, result string) {
	if obs.WebhookEventTotal != nil {
		obs.WebhookEventTotal.WithLabelValues(eventType, result).Inc()
	}
}
