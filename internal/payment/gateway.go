package payment

import (
	"context"
	"encoding/json"
	"time"
)

// EventType is the tag a gateway attaches to each webhook notification.
type EventType string

// Event types the donation flow reacts to. Anything else is acknowledged and ignored.
const (
	EventPaymentIntentSucceeded     EventType = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed EventType = "payment_intent.payment_failed"
	EventInvoicePaymentSucceeded    EventType = "invoice.payment_succeeded"
	EventSubscriptionCreated        EventType = "customer.subscription.created"
	EventSubscriptionDeleted        EventType = "customer.subscription.deleted"
)

// CustomerProfile captures the donor record created ahead of a subscription.
type CustomerProfile struct {
	Email    string
	Name     string
	Phone    string
	Metadata map[string]string
}

// PriceSpec describes a dynamically priced recurring line item.
type PriceSpec struct {
	AmountMinor        int64
	Currency           string
	Interval           string
	ProductName        string
	ProductDescription string
}

// IntentSpec captures the information required to open a one-time payment intent.
type IntentSpec struct {
	AmountMinor  int64
	Currency     string
	ReceiptEmail string
	Description  string
	Metadata     map[string]string
}

// Intent is the minimal data returned when a payment intent is created.
type Intent struct {
	ID           string
	ClientSecret string
}

// Subscription is the minimal data returned when a subscription is created.
// ClientSecret belongs to the payment intent of the subscription's first invoice.
type Subscription struct {
	ID           string
	CustomerID   string
	ClientSecret string
}

// IntentStatus is a read-through snapshot of a payment intent.
type IntentStatus struct {
	ID          string
	Status      string
	AmountMinor int64
	Currency    string
	Created     time.Time
}

// PaymentIntentObject is the payment intent carried by payment_intent.* events.
type PaymentIntentObject struct {
	ID           string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
	FailureError string
}

// InvoiceObject is the invoice carried by invoice.* events.
type InvoiceObject struct {
	ID              string
	AmountPaidMinor int64
	Currency        string
	SubscriptionID  string
	CustomerID      string
}

// SubscriptionObject is the subscription carried by customer.subscription.* events.
type SubscriptionObject struct {
	ID         string
	CustomerID string
	Status     string
}

// Event is a verified webhook notification. At most one of the typed objects is
// populated, depending on Type; Raw always holds the undecoded data object.
type Event struct {
	ID            string
	Type          EventType
	PaymentIntent *PaymentIntentObject
	Invoice       *InvoiceObject
	Subscription  *SubscriptionObject
	Raw           json.RawMessage
}

// Gateway abstracts the operations required from the upstream payment processor.
type Gateway interface {
	CreateCustomer(ctx context.Context, profile CustomerProfile) (string, error)
	CreateSubscription(ctx context.Context, customerID string, price PriceSpec, metadata map[string]string) (Subscription, error)
	CreatePaymentIntent(ctx context.Context, spec IntentSpec) (Intent, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (IntentStatus, error)
	VerifyWebhookSignature(payload []byte, signature, secret string) (Event, error)
}
