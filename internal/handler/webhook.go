package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/service"
)

// maxWebhookBody caps gateway webhook payloads.
const maxWebhookBody = 65536

// WebhookHandler receives payment gateway events.
type WebhookHandler struct {
	payments service.PaymentService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(payments service.PaymentService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are public; the gateway signature authenticates them.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies and applies one Stripe event. Verified events
// are acknowledged even when they change nothing so Stripe stops retrying.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.payments.Enabled() {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err = h.payments.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if domain.ErrorCode(err) == domain.EINVALID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
