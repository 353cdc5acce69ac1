package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/donation-api/internal/obs"
	"github.com/noah-isme/donation-api/internal/payment"
)

const (
	kindOneTime = "one_time"
	kindMonthly = "monthly"

	donationTypeOneTime      = "one-time"
	donationTypeMonthly      = "monthly"
	donationTypeSubscription = "monthly-subscription"

	// Stripe rejects metadata values above 500 characters.
	maxMetadataValue = 500
)

// ErrUnvalidated is returned when the orchestrator receives a donation that did not
// come from Validator.Validate.
var ErrUnvalidated = errors.New("donation has not been validated")

// Result is what the client needs to confirm a donation. IntentID is set for one-time
// donations; SubscriptionID and CustomerID for recurring ones.
type Result struct {
	ClientSecret   string `json:"clientSecret"`
	IntentID       string `json:"paymentIntentId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	CustomerID     string `json:"customerId,omitempty"`
}

// Status is the donor-facing view of a payment intent.
type Status struct {
	Status   string    `json:"status"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Created  time.Time `json:"created"`
}

// Service opens one-time and recurring donations against the payment gateway.
type Service struct {
	Gateway      payment.Gateway
	Organization string
	Source       string
	Logger       zerolog.Logger
}

// CreateDonation opens a payment intent, or a customer plus subscription when the
// donation recurs. Gateway errors are returned as *payment.GatewayError.
func (s *Service) CreateDonation(ctx context.Context, d ValidDonation) (Result, error) {
	if s == nil || s.Gateway == nil {
		return Result{}, errors.New("donation service not configured")
	}
	if !d.validated {
		return Result{}, ErrUnvalidated
	}
	kind := kindOneTime
	if d.Recurring {
		kind = kindMonthly
	}

	ctx, span := otel.Tracer("donation.Service").Start(ctx, "DonationService.CreateDonation")
	defer span.End()
	span.SetAttributes(
		attribute.String("donation.kind", kind),
		attribute.Int64("donation.amount_minor", d.AmountMinor()),
		attribute.String("donation.currency", d.Currency),
	)

	result := "error"
	defer func() {
		if obs.DonationIntentTotal != nil {
			obs.DonationIntentTotal.WithLabelValues(kind, result).Inc()
		}
	}()

	var (
		res Result
		err error
	)
	if d.Recurring {
		res, err = s.createMonthly(ctx, d)
	} else {
		res, err = s.createOneTime(ctx, d)
	}
	if err != nil {
		gwErr := payment.AsGatewayError(err)
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, gwErr.Message)
		s.logger(ctx).Error().Err(gwErr).Str("kind", kind).Str("error_type", gwErr.Type).Msg("donation_create_failed")
		return Result{}, gwErr
	}
	result = "success"
	s.logger(ctx).Info().
		Str("kind", kind).
		Int64("amount_minor", d.AmountMinor()).
		Str("currency", d.Currency).
		Str("payment_intent_id", res.IntentID).
		Str("subscription_id", res.SubscriptionID).
		Msg("donation_created")
	return res, nil
}

func (s *Service) createOneTime(ctx context.Context, d ValidDonation) (Result, error) {
	intent, err := s.Gateway.CreatePaymentIntent(ctx, payment.IntentSpec{
		AmountMinor:  d.AmountMinor(),
		Currency:     d.Currency,
		ReceiptEmail: d.Donor.Email,
		Description:  fmt.Sprintf("Donation from %s - %s", d.Donor.FullName(), s.Organization),
		Metadata: map[string]string{
			"donorName":    clip(d.Donor.FullName()),
			"donorEmail":   clip(d.Donor.Email),
			"donorPhone":   clip(d.Donor.Phone),
			"donorMessage": clip(d.Donor.Message),
			"donationType": donationTypeOneTime,
			"source":       s.Source,
		},
	})
	if err != nil {
		return Result{}, err
	}
	return Result{ClientSecret: intent.ClientSecret, IntentID: intent.ID}, nil
}

// createMonthly creates the customer first; a failed subscription leaves that
// customer behind without cleanup.
func (s *Service) createMonthly(ctx context.Context, d ValidDonation) (Result, error) {
	customerID, err := s.Gateway.CreateCustomer(ctx, payment.CustomerProfile{
		Email: d.Donor.Email,
		Name:  d.Donor.FullName(),
		Phone: d.Donor.Phone,
		Metadata: map[string]string{
			"source":       s.Source,
			"donationType": donationTypeMonthly,
		},
	})
	if err != nil {
		return Result{}, err
	}
	sub, err := s.Gateway.CreateSubscription(ctx, customerID, payment.PriceSpec{
		AmountMinor:        d.AmountMinor(),
		Currency:           d.Currency,
		Interval:           "month",
		ProductName:        "Monthly Donation - " + s.Organization,
		ProductDescription: "Recurring monthly donation to " + s.Organization,
	}, map[string]string{
		"donorName":    clip(d.Donor.FullName()),
		"donorEmail":   clip(d.Donor.Email),
		"donationType": donationTypeSubscription,
	})
	if err != nil {
		s.logger(ctx).Warn().Str("customer_id", customerID).Msg("donation_customer_orphaned")
		return Result{}, err
	}
	if sub.CustomerID == "" {
		sub.CustomerID = customerID
	}
	return Result{ClientSecret: sub.ClientSecret, SubscriptionID: sub.ID, CustomerID: sub.CustomerID}, nil
}

// GetStatus reads a payment intent through to the gateway. Amount is reported in
// major units.
func (s *Service) GetStatus(ctx context.Context, intentID string) (Status, error) {
	if s == nil || s.Gateway == nil {
		return Status{}, errors.New("donation service not configured")
	}
	ctx, span := otel.Tracer("donation.Service").Start(ctx, "DonationService.GetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("payment.intent_id", intentID))

	st, err := s.Gateway.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		gwErr := payment.AsGatewayError(err)
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, gwErr.Message)
		return Status{}, gwErr
	}
	return Status{
		Status:   st.Status,
		Amount:   MajorUnits(st.AmountMinor),
		Currency: st.Currency,
		Created:  st.Created.UTC(),
	}, nil
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}

func clip(v string) string {
	r := []rune(v)
	if len(r) <= maxMetadataValue {
		return v
	}
	return string(r[:maxMetadataValue])
}
