package donation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/donation-api/internal/common"
)

// Amount bounds in major currency units.
const (
	MinAmount = 1
	MaxAmount = 50000
)

// Validation messages shown to donors.
const (
	MsgInvalidAmount   = "Invalid amount. Must be between $1 and $50,000."
	MsgDonorRequired   = "Customer information is required."
	MsgInvalidCurrency = "Invalid currency. Must be a three-letter ISO code."

	errTypeValidation = "validation_error"
)

// Request is the wire shape of POST /create-payment-intent.
type Request struct {
	Amount    json.RawMessage `json:"amount"`
	Currency  string          `json:"currency"`
	IsMonthly bool            `json:"isMonthly"`
	Donor     *Donor          `json:"customerInfo"`
}

// Donor identifies the person giving. Phone and Message are optional.
type Donor struct {
	Email     string `json:"email" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Phone     string `json:"phone,omitempty"`
	Message   string `json:"message,omitempty"`
}

// FullName joins first and last name.
func (d Donor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// ValidDonation is a request that passed validation. Only Validator.Validate
// produces one; the orchestrator refuses the zero value.
type ValidDonation struct {
	Amount    float64
	Currency  string
	Recurring bool
	Donor     Donor

	validated bool
}

// AmountMinor converts Amount into minor units (cents), rounding to the nearest unit.
func (d ValidDonation) AmountMinor() int64 {
	return MinorUnits(d.Amount)
}

// MinorUnits converts a major-unit amount into minor units, rounding half away from zero.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// MajorUnits converts minor units back into major units for display.
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// ValidationError reports malformed donor input. Its message is safe to show.
type ValidationError struct {
	Field   string
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AppError renders the validation failure for the HTTP layer.
func (e *ValidationError) AppError() *common.AppError {
	appErr := common.NewAppError(errTypeValidation, e.Message, http.StatusBadRequest, e)
	if len(e.Missing) > 0 {
		appErr.Details = map[string]any{"missing": e.Missing}
	}
	return appErr
}

type donationInput struct {
	Amount   float64 `json:"amount" validate:"donation_amount"`
	Currency string  `json:"currency" validate:"required,alpha,len=3"`
	Donor    Donor   `json:"customerInfo"`
}

// Validator checks donation requests before any gateway call is made.
type Validator struct {
	validate        *validator.Validate
	defaultCurrency string
}

// NewValidator builds a Validator. defaultCurrency applies when a request omits currency.
func NewValidator(defaultCurrency string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterAlias("donation_amount", fmt.Sprintf("gte=%d,lte=%d", MinAmount, MaxAmount))
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	currency := strings.ToLower(strings.TrimSpace(defaultCurrency))
	if currency == "" {
		currency = "usd"
	}
	return &Validator{validate: v, defaultCurrency: currency}
}

// Validate returns a ValidDonation or a *ValidationError. Amount rules are
// checked before donor rules.
func (v *Validator) Validate(req Request) (ValidDonation, error) {
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return ValidDonation{}, &ValidationError{Field: "amount", Message: MsgInvalidAmount}
	}

	in := donationInput{
		Amount:   amount,
		Currency: strings.ToLower(strings.TrimSpace(req.Currency)),
	}
	if in.Currency == "" {
		in.Currency = v.defaultCurrency
	}
	if req.Donor != nil {
		in.Donor = Donor{
			Email:     strings.TrimSpace(req.Donor.Email),
			FirstName: strings.TrimSpace(req.Donor.FirstName),
			LastName:  strings.TrimSpace(req.Donor.LastName),
			Phone:     strings.TrimSpace(req.Donor.Phone),
			Message:   strings.TrimSpace(req.Donor.Message),
		}
	}

	if err := v.validate.Struct(in); err != nil {
		return ValidDonation{}, translate(err)
	}
	return ValidDonation{
		Amount:    in.Amount,
		Currency:  in.Currency,
		Recurring: req.IsMonthly,
		Donor:     in.Donor,
		validated: true,
	}, nil
}

// ValidateIntentID checks a path-supplied payment intent identifier.
func (v *Validator) ValidateIntentID(id string) error {
	if err := v.validate.Var(id, "required,max=255,printascii,excludesall=/?#% "); err != nil {
		return &ValidationError{Field: "intentId", Message: "Invalid payment intent id."}
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Message: err.Error()}
	}
	var missing []string
	for _, fe := range verrs {
		switch fe.Field() {
		case "amount":
			return &ValidationError{Field: "amount", Message: MsgInvalidAmount}
		case "currency":
			return &ValidationError{Field: "currency", Message: MsgInvalidCurrency}
		default:
			missing = append(missing, fe.Field())
		}
	}
	return &ValidationError{
		Field:   "customerInfo",
		Message: fmt.Sprintf("%s Missing: %s.", MsgDonorRequired, strings.Join(missing, ", ")),
		Missing: missing,
	}
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	} else {
		text = string(raw)
	}
	amount, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	return amount, true
}
