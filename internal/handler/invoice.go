package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/service"
)

// InvoiceHandler serves invoice upload, listing and the upload counter.
type InvoiceHandler struct {
	invoices service.InvoiceService
	quota    service.QuotaService
	logger   *slog.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoices service.InvoiceService, quota service.QuotaService, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoices: invoices,
		quota:    quota,
		logger:   logger,
	}
}

// RegisterRoutes registers invoice routes on the provided mux.
func (h *InvoiceHandler) RegisterRoutes(mux *http.ServeMux, requireSession func(http.Handler) http.Handler) {
	mux.Handle("GET /api/usage/upload-count", requireSession(http.HandlerFunc(h.UploadCount)))
	mux.Handle("GET /api/usage", requireSession(http.HandlerFunc(h.ListUsage)))
	mux.Handle("POST /api/invoices", requireSession(http.HandlerFunc(h.Upload)))
	mux.Handle("GET /api/invoices", requireSession(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/invoices/{id}", requireSession(http.HandlerFunc(h.Get)))
	mux.Handle("GET /api/invoices/{id}/pdf", requireSession(http.HandlerFunc(h.PDF)))
	mux.Handle("DELETE /api/invoices/{id}", requireSession(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/data/reset", requireSession(http.HandlerFunc(h.ResetData)))
}

// =============================================================================
// Usage
// =============================================================================

// UploadCount reports the invoice upload counter after any due reset.
func (h *InvoiceHandler) UploadCount(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	snap, err := h.quota.Usage(r.Context(), sess.BusinessID, domain.UsageTypeInvoiceUpload)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	SuccessResponse(w, http.StatusOK, "Upload count retrieved", uploadCountView{
		DailyUploadCount: snap.DailyCount,
		DailyLimit:       snap.DailyLimit,
		TimeLeft:         snap.TimeLeftHours,
	})
}

// ListUsage reports every usage counter of the business.
func (h *InvoiceHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	snaps, err := h.quota.ListUsage(r.Context(), sess.BusinessID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	views := make([]usageView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, newUsageView(s))
	}
	SuccessResponse(w, http.StatusOK, "Usage retrieved", views)
}

// =============================================================================
// Invoices
// =============================================================================

type couponRequest struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	ExpiryDate  time.Time `json:"expiryDate"`
	MaxUsage    int       `json:"maxUsage"`
}

func (c *couponRequest) spec() domain.CouponSpec {
	return domain.CouponSpec{
		Code:        c.Code,
		Description: c.Description,
		ExpiryDate:  c.ExpiryDate,
		MaxUsage:    c.MaxUsage,
	}
}

type uploadInvoiceRequest struct {
	InvoiceNumber string            `json:"invoiceNumber"`
	Customer      domain.Customer   `json:"customer"`
	LineItems     []domain.LineItem `json:"lineItems"`
	Currency      string            `json:"currency"`
	Coupon        *couponRequest    `json:"coupon"`
}

// Upload stores a new invoice. A reached ceiling answers 429 with the hours
// left in the window.
func (h *InvoiceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	var req uploadInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params := domain.UploadInvoiceParams{
		InvoiceNumber: req.InvoiceNumber,
		Customer:      req.Customer,
		LineItems:     req.LineItems,
		Currency:      req.Currency,
	}
	if req.Coupon != nil {
		spec := req.Coupon.spec()
		params.Coupon = &spec
	}

	inv, err := h.invoices.Upload(r.Context(), sess, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusCreated, "Invoice uploaded", newInvoiceView(inv))
}

// List returns a page of invoices, newest first.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	limit, offset := pageParams(r)
	result, err := h.invoices.List(r.Context(), domain.ListInvoicesParams{
		BusinessID: sess.BusinessID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	views := make([]invoiceView, 0, len(result.Invoices))
	for i := range result.Invoices {
		views = append(views, newInvoiceView(&result.Invoices[i]))
	}
	SuccessResponse(w, http.StatusOK, "Invoices retrieved", invoiceListView{
		Invoices:   views,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
		HasMore:    result.HasMore(),
	})
}

// Get returns one invoice of the business.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.Get(r.Context(), sess.BusinessID, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Invoice retrieved", newInvoiceView(inv))
}

// PDF streams a freshly rendered copy of the invoice.
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger, "id")
	if !ok {
		return
	}

	// Rendered into a buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.invoices.RenderPDF(r.Context(), sess.BusinessID, id, &buf); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="invoice.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Delete removes one invoice.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger, "id")
	if !ok {
		return
	}

	if err := h.invoices.Delete(r.Context(), sess.BusinessID, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Invoice deleted", nil)
}

// ResetData deletes every invoice and feedback row of the business.
func (h *InvoiceHandler) ResetData(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.invoices.ResetData(r.Context(), sess); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "All data has been reset", nil)
}
