// Package siteconfig provides the non-secret display configuration consumed by
// the donation front end: currency, preset amounts, payment method metadata.
package siteconfig

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/donation-api/internal/common"
	"github.com/noah-isme/donation-api/internal/donation"
)

// Config is the public configuration document. Nothing in here is secret.
type Config struct {
	Stripe         StripeConfig             `yaml:"stripe" json:"stripe"`
	UPI            UPIConfig                `yaml:"upi" json:"upi"`
	API            APIConfig                `yaml:"api" json:"api"`
	UI             UIConfig                 `yaml:"ui" json:"ui"`
	PaymentMethods map[string]PaymentMethod `yaml:"payment_methods" json:"paymentMethods"`
}

type StripeConfig struct {
	PublishableKey string `yaml:"publishable_key" json:"publishableKey"`
	Currency       string `yaml:"currency" json:"currency"`
}

type UPIConfig struct {
	ID           string  `yaml:"id" json:"id"`
	DisplayName  string  `yaml:"display_name" json:"displayName"`
	Currency     string  `yaml:"currency" json:"currency"`
	USDToINRRate float64 `yaml:"usd_to_inr_rate" json:"usdToInrRate"`
}

type APIConfig struct {
	CreatePayment string `yaml:"create_payment" json:"createPayment"`
	PaymentStatus string `yaml:"payment_status" json:"paymentStatus"`
	Webhook       string `yaml:"webhook" json:"webhook"`
}

type UIConfig struct {
	QRCodeSize       string `yaml:"qr_code_size" json:"qrCodeSize"`
	DonationAmounts  []int  `yaml:"donation_amounts" json:"donationAmounts"`
	OrganizationName string `yaml:"organization_name" json:"organizationName"`
}

// PaymentMethod describes how a payment option is rendered.
type PaymentMethod struct {
	Name    string `yaml:"name" json:"name"`
	Icon    string `yaml:"icon" json:"icon"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Stripe: StripeConfig{
			PublishableKey: "pk_test_YOUR_PUBLISHABLE_KEY_HERE",
			Currency:       "usd",
		},
		UPI: UPIConfig{
			ID:           "donations@upi",
			DisplayName:  "Animal Rights Protection",
			Currency:     "INR",
			USDToINRRate: 83,
		},
		API: APIConfig{
			CreatePayment: "/create-payment-intent",
			PaymentStatus: "/payment-status",
			Webhook:       "/webhook",
		},
		UI: UIConfig{
			QRCodeSize:       "250x250",
			DonationAmounts:  []int{25, 50, 100, 250, 500},
			OrganizationName: "Animal Rights & Protection",
		},
		PaymentMethods: map[string]PaymentMethod{
			"stripe":        {Name: "Credit Card", Icon: "fas fa-credit-card", Enabled: true},
			"paypal":        {Name: "PayPal", Icon: "fab fa-paypal", Enabled: true},
			"google_pay":    {Name: "Google Pay", Icon: "fab fa-google-pay", Enabled: true},
			"upi":           {Name: "UPI/QR", Icon: "fas fa-mobile-alt", Enabled: true},
			"bank_transfer": {Name: "Bank Transfer", Icon: "fas fa-university", Enabled: true},
		},
	}
}

// Load returns the defaults overlaid with the YAML document at path. An empty
// path yields the defaults. publishableKey, when set, wins over the file.
func Load(path, publishableKey string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read site config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse site config: %w", err)
		}
	}
	if key := strings.TrimSpace(publishableKey); key != "" {
		cfg.Stripe.PublishableKey = key
	}
	cfg.Stripe.Currency = strings.ToLower(strings.TrimSpace(cfg.Stripe.Currency))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid site config: %w", err)
	}
	return cfg, nil
}

// Validate checks the document for values the front end cannot render.
func (c Config) Validate() error {
	if c.Stripe.Currency == "" {
		return errors.New("stripe currency is required")
	}
	if strings.HasPrefix(strings.TrimSpace(c.Stripe.PublishableKey), "sk_") {
		return errors.New("publishable key must not be a secret key")
	}
	for _, amount := range c.UI.DonationAmounts {
		if amount < donation.MinAmount || amount > donation.MaxAmount {
			return fmt.Errorf("donation preset %d outside [%d, %d]", amount, donation.MinAmount, donation.MaxAmount)
		}
	}
	if c.UPI.USDToINRRate < 0 {
		return errors.New("usd_to_inr_rate must not be negative")
	}
	return nil
}

// Handler serves the configuration document as JSON.
type Handler struct {
	Config Config
}

// Get writes the public configuration.
func (h Handler) Get(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	common.JSON(w, http.StatusOK, h.Config)
}
