package donation

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func donor() *Donor {
	return &Donor{Email: "a@b.com", FirstName: "Ann", LastName: "Lee"}
}

func TestValidateAmountBounds(t *testing.T) {
	v := NewValidator("usd")
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"minimum", `1`, true},
		{"maximum", `50000`, true},
		{"below minimum", `0.99`, false},
		{"above maximum", `50000.01`, false},
		{"negative", `-5`, false},
		{"numeric string", `"25.50"`, true},
		{"word", `"ten"`, false},
		{"nan string", `"NaN"`, false},
		{"null", `null`, false},
		{"missing", ``, false},
		{"object", `{}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(Request{Amount: json.RawMessage(tc.raw), Donor: donor()})
			if tc.ok {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, "amount", verr.Field)
			require.Equal(t, MsgInvalidAmount, verr.Message)
		})
	}
}

func TestValidateDonorRequired(t *testing.T) {
	v := NewValidator("usd")

	_, err := v.Validate(Request{Amount: json.RawMessage(`25`)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "customerInfo", verr.Field)
	require.ElementsMatch(t, []string{"email", "firstName", "lastName"}, verr.Missing)

	for _, d := range []*Donor{
		{FirstName: "Ann", LastName: "Lee"},
		{Email: "a@b.com", LastName: "Lee"},
		{Email: "a@b.com", FirstName: "Ann"},
		{Email: "   ", FirstName: "Ann", LastName: "Lee"},
	} {
		_, err := v.Validate(Request{Amount: json.RawMessage(`25`), Donor: d})
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Message, MsgDonorRequired)
		require.Len(t, verr.Missing, 1)
	}
}

func TestValidateAmountCheckedBeforeDonor(t *testing.T) {
	v := NewValidator("usd")
	_, err := v.Validate(Request{Amount: json.RawMessage(`0`)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, MsgInvalidAmount, verr.Message)
}

func TestValidateCurrency(t *testing.T) {
	v := NewValidator("")
	d, err := v.Validate(Request{Amount: json.RawMessage(`10`), Donor: donor()})
	require.NoError(t, err)
	require.Equal(t, "usd", d.Currency)

	d, err = v.Validate(Request{Amount: json.RawMessage(`10`), Currency: " EUR ", Donor: donor()})
	require.NoError(t, err)
	require.Equal(t, "eur", d.Currency)

	_, err = v.Validate(Request{Amount: json.RawMessage(`10`), Currency: "euro", Donor: donor()})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, MsgInvalidCurrency, verr.Message)
}

func TestValidationErrorRendersAsBadRequest(t *testing.T) {
	verr := &ValidationError{Field: "customerInfo", Message: "m", Missing: []string{"email"}}
	appErr := verr.AppError()
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, "validation_error", appErr.Type)
	require.True(t, errors.Is(appErr, verr))
}

func TestMinorUnitsRounding(t *testing.T) {
	require.Equal(t, int64(2000), MinorUnits(19.999))
	require.Equal(t, int64(2550), MinorUnits(25.5))
	require.Equal(t, int64(100), MinorUnits(1))
	require.Equal(t, int64(5000000), MinorUnits(50000))
	require.InDelta(t, 25.5, MajorUnits(2550), 1e-9)
}

func TestValidateIntentID(t *testing.T) {
	v := NewValidator("usd")
	require.NoError(t, v.ValidateIntentID("pi_3Nabc123"))
	require.Error(t, v.ValidateIntentID(""))
	require.Error(t, v.ValidateIntentID("pi_1/../customers"))
	require.Error(t, v.ValidateIntentID("pi 1"))
}
