package donation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/donation-api/internal/payment"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	customers     []payment.CustomerProfile
	subscriptions []fakeSubscriptionCall
	intents       []payment.IntentSpec

	customerErr error
	subErr      error
	intentErr   error
	retrieveErr error
	verifyErr   error

	status payment.IntentStatus
	event  payment.Event
}

type fakeSubscriptionCall struct {
	CustomerID string
	Price      payment.PriceSpec
	Metadata   map[string]string
}

func (f *fakeGateway) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) CreateCustomer(_ context.Context, profile payment.CustomerProfile) (string, error) {
	f.record("CreateCustomer")
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.customers = append(f.customers, profile)
	return fmt.Sprintf("cus_%d", len(f.customers)), nil
}

func (f *fakeGateway) CreateSubscription(_ context.Context, customerID string, price payment.PriceSpec, metadata map[string]string) (payment.Subscription, error) {
	f.record("CreateSubscription")
	if f.subErr != nil {
		return payment.Subscription{}, f.subErr
	}
	f.subscriptions = append(f.subscriptions, fakeSubscriptionCall{CustomerID: customerID, Price: price, Metadata: metadata})
	return payment.Subscription{ID: "sub_1", CustomerID: customerID, ClientSecret: "pi_sub_secret_1"}, nil
}

func (f *fakeGateway) CreatePaymentIntent(_ context.Context, spec payment.IntentSpec) (payment.Intent, error) {
	f.record("CreatePaymentIntent")
	if f.intentErr != nil {
		return payment.Intent{}, f.intentErr
	}
	f.intents = append(f.intents, spec)
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_x"}, nil
}

func (f *fakeGateway) RetrievePaymentIntent(_ context.Context, intentID string) (payment.IntentStatus, error) {
	f.record("RetrievePaymentIntent")
	if f.retrieveErr != nil {
		return payment.IntentStatus{}, f.retrieveErr
	}
	st := f.status
	st.ID = intentID
	return st, nil
}

func (f *fakeGateway) VerifyWebhookSignature(_ []byte, signature, secret string) (payment.Event, error) {
	f.record("VerifyWebhookSignature")
	if f.verifyErr != nil {
		if errors.Is(f.verifyErr, payment.ErrEventDecode) {
			return f.event, f.verifyErr
		}
		return payment.Event{}, f.verifyErr
	}
	if signature != "sig:"+secret {
		return payment.Event{}, fmt.Errorf("%w: no signatures found matching the expected signature for payload", payment.ErrVerification)
	}
	return f.event, nil
}

type recordingHooks struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (h *recordingHooks) add(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, name)
	return h.err
}

func (h *recordingHooks) PaymentSucceeded(_ context.Context, pi payment.PaymentIntentObject) error {
	return h.add("succeeded:" + pi.ID)
}

func (h *recordingHooks) PaymentFailed(_ context.Context, pi payment.PaymentIntentObject) error {
	return h.add("failed:" + pi.ID)
}

func (h *recordingHooks) InvoicePaid(_ context.Context, inv payment.InvoiceObject) error {
	return h.add("invoice:" + inv.ID)
}

func (h *recordingHooks) SubscriptionCreated(_ context.Context, sub payment.SubscriptionObject) error {
	return h.add("sub_created:" + sub.ID)
}

func (h *recordingHooks) SubscriptionCanceled(_ context.Context, sub payment.SubscriptionObject) error {
	return h.add("sub_deleted:" + sub.ID)
}

func newTestService(gw payment.Gateway) *Service {
	return &Service{
		Gateway:      gw,
		Organization: "Animal Rights & Protection",
		Source:       "Animal Rights Website",
		Logger:       zerolog.Nop(),
	}
}

func mustValidate(v *Validator, req Request) ValidDonation {
	d, err := v.Validate(req)
	if err != nil {
		panic(err)
	}
	return d
}

var fixedCreated = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
