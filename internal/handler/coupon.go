package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/service"
	"github.com/google/uuid"
)

// CouponHandler serves coupon attachment, listing and redemption.
type CouponHandler struct {
	coupons service.CouponService
	logger  *slog.Logger
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(coupons service.CouponService, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		coupons: coupons,
		logger:  logger,
	}
}

// RegisterRoutes registers coupon routes on the provided mux.
func (h *CouponHandler) RegisterRoutes(mux *http.ServeMux, requireSession func(http.Handler) http.Handler) {
	mux.Handle("GET /api/coupons", requireSession(http.HandlerFunc(h.ListAvailable)))
	mux.Handle("POST /api/invoices/{id}/coupon", requireSession(http.HandlerFunc(h.Attach)))
	mux.Handle("DELETE /api/coupons", requireSession(http.HandlerFunc(h.Redeem)))
}

// ListAvailable returns the unused, unexpired coupons of the business.
func (h *CouponHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	coupons, err := h.coupons.ListAvailable(r.Context(), sess.BusinessID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if coupons == nil {
		coupons = []domain.AvailableCoupon{}
	}
	SuccessResponse(w, http.StatusOK, "Coupons retrieved", coupons)
}

// Attach stores a coupon on an invoice. An empty code is generated.
func (h *CouponHandler) Attach(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger, "id")
	if !ok {
		return
	}

	var req couponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	inv, err := h.coupons.Attach(r.Context(), sess.BusinessID, id, req.spec())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Coupon attached", newInvoiceView(inv))
}

type redeemRequest struct {
	InvoiceID string `json:"invoiceId"`
}

// Redeem consumes one use of the coupon on the given invoice.
func (h *CouponHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.InvoiceNotFound("coupon.redeem"))
		return
	}

	inv, err := h.coupons.Redeem(r.Context(), sess.BusinessID, invoiceID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Coupon redeemed", newInvoiceView(inv))
}
