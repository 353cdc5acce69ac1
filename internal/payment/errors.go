package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v81"
)

var (
	// ErrVerification is returned when a webhook signature does not match its payload.
	ErrVerification = errors.New("webhook signature verification failed")
	// ErrWebhookSecretMissing is returned when no webhook secret is configured.
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")
	// ErrNotConfigured is returned when the gateway has no credential.
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrEventDecode is returned alongside a verified Event whose data object
	// could not be decoded. The signature was valid; Event.Raw is still set.
	ErrEventDecode = errors.New("webhook event object could not be decoded")
)

// DefaultErrorType is reported when the gateway gives no error category.
const DefaultErrorType = "api_error"

// GatewayError carries a processor failure through to the caller unmodified.
type GatewayError struct {
	Message    string
	Type       string
	Code       string
	HTTPStatus int
	Err        error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s/%s)", e.Message, e.Type, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Type)
}

// Unwrap exposes the underlying SDK or transport error.
func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NotFound reports whether the gateway said the resource does not exist.
func (e *GatewayError) NotFound() bool {
	return e != nil && (e.HTTPStatus == http.StatusNotFound || e.Code == string(stripe.ErrorCodeResourceMissing))
}

// AsGatewayError normalises any error returned by the SDK into a GatewayError.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		errType := string(stripeErr.Type)
		if errType == "" {
			errType = DefaultErrorType
		}
		msg := stripeErr.Msg
		if msg == "" {
			msg = http.StatusText(stripeErr.HTTPStatusCode)
		}
		return &GatewayError{
			Message:    msg,
			Type:       errType,
			Code:       string(stripeErr.Code),
			HTTPStatus: stripeErr.HTTPStatusCode,
			Err:        err,
		}
	}
	if errors.Is(err, ErrNotConfigured) {
		return &GatewayError{Message: "Payment gateway is not configured.", Type: DefaultErrorType, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &GatewayError{Message: err.Error(), Type: "api_connection_error", HTTPStatus: http.StatusGatewayTimeout, Err: err}
	}
	return &GatewayError{Message: err.Error(), Type: DefaultErrorType, Err: err}
}
