package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/service"
)

// PlanHandler serves plan status, the trial and Pro purchases.
type PlanHandler struct {
	subscriptions service.SubscriptionService
	payments      service.PaymentService
	logger        *slog.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(subscriptions service.SubscriptionService, payments service.PaymentService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		subscriptions: subscriptions,
		payments:      payments,
		logger:        logger,
	}
}

// RegisterRoutes registers plan routes on the provided mux.
func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux, requireSession func(http.Handler) http.Handler) {
	mux.Handle("GET /api/plan", requireSession(http.HandlerFunc(h.Status)))
	mux.Handle("POST /api/plan/start-trial", requireSession(http.HandlerFunc(h.StartTrial)))
	mux.Handle("POST /api/plan/create-order", requireSession(http.HandlerFunc(h.CreateOrder)))
	mux.Handle("POST /api/plan/verify-payment", requireSession(http.HandlerFunc(h.VerifyPayment)))
}

// Status returns the plan resolved at request time.
func (h *PlanHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	status, err := h.subscriptions.Status(r.Context(), sess.BusinessID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Plan retrieved", status)
}

// StartTrial applies the one-time free to pro-trial transition.
func (h *PlanHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	status, err := h.subscriptions.StartTrial(r.Context(), sess)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Pro trial started", status)
}

// CreateOrder opens a gateway order for one Pro period.
func (h *PlanHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.payments.CreateOrder(r.Context(), sess)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusCreated, "Payment order created", orderView{
		OrderID:      order.GatewayOrderID,
		AmountCents:  order.AmountCents,
		Currency:     order.Currency,
		ClientSecret: order.ClientSecret,
	})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// VerifyPayment checks the client callback and activates Pro.
func (h *PlanHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		ErrorResponse(w, r, h.logger, domain.PaymentVerificationFailed("payment.verify"))
		return
	}

	status, err := h.payments.VerifyPayment(r.Context(), sess, domain.VerifyPaymentParams{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Payment verified, Pro plan active", status)
}
