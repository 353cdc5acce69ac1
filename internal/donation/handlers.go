package donation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donation-api/internal/common"
	"github.com/noah-isme/donation-api/internal/payment"
)

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "Stripe-Signature"

const defaultWebhookBodyLimit int64 = 64 << 10

// Handler exposes donation creation and status polling over HTTP.
type Handler struct {
	Svc           *Service
	Validator     *Validator
	ExposeDetails bool
}

// CreateIntent handles POST /create-payment-intent.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Validator == nil {
		common.JSONError(w, http.StatusInternalServerError, payment.DefaultErrorType, "donation handler unavailable", nil)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, errTypeValidation, "invalid body", nil)
		return
	}
	donation, err := h.Validator.Validate(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Svc.CreateDonation(r.Context(), donation)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// Status handles GET /payment-status/{intentID}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Validator == nil {
		common.JSONError(w, http.StatusInternalServerError, payment.DefaultErrorType, "donation handler unavailable", nil)
		return
	}
	intentID := strings.TrimSpace(chi.URLParam(r, "intentID"))
	if err := h.Validator.ValidateIntentID(intentID); err != nil {
		h.writeError(w, err)
		return
	}
	st, err := h.Svc.GetStatus(r.Context(), intentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, st)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		common.WriteError(w, verr.AppError(), h.ExposeDetails)
		return
	}
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		status := http.StatusBadRequest
		if gwErr.NotFound() {
			status = http.StatusNotFound
		}
		common.JSONError(w, status, gwErr.Type, gwErr.Message, nil)
		return
	}
	common.WriteError(w, err, h.ExposeDetails)
}

// WebhookHandler exposes the Dispatcher at POST /webhook. The body is read raw so
// the signature is checked over the exact bytes the gateway sent.
type WebhookHandler struct {
	Dispatcher *Dispatcher
	MaxBytes   int64
}

// Handle verifies and acknowledges one webhook delivery. Failures are answered
// with plain text.
func (h WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBytes
	if limit <= 0 {
		limit = defaultWebhookBodyLimit
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		http.Error(w, "Webhook Error: unable to read payload", http.StatusBadRequest)
		return
	}
	ack, err := h.Dispatcher.Handle(r.Context(), body, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		common.JSON(w, http.StatusOK, ack)
	case errors.Is(err, payment.ErrWebhookSecretMissing):
		zerolog.Ctx(r.Context()).Error().Msg("webhook_secret_missing")
		http.Error(w, "Webhook secret not configured", http.StatusBadRequest)
	default:
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("webhook_signature_rejected")
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
	}
}
