package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/service"
)

// FeedbackHandler serves the public feedback form and the owner views.
type FeedbackHandler struct {
	feedback service.FeedbackService
	logger   *slog.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedback service.FeedbackService, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
		logger:   logger,
	}
}

// RegisterRoutes registers feedback routes. The public routes go through
// limit instead of a session.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux, requireSession, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /api/feedback", requireSession(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/feedback/summary", requireSession(http.HandlerFunc(h.Summary)))
	mux.Handle("GET /api/public/check-invoice", limit(http.HandlerFunc(h.CheckInvoice)))
	mux.Handle("POST /api/public/feedback", limit(http.HandlerFunc(h.Submit)))
}

// List returns a page of feedback, newest first.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	limit, offset := pageParams(r)
	result, err := h.feedback.List(r.Context(), sess.BusinessID, limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if result.Entries == nil {
		result.Entries = []domain.FeedbackEntry{}
	}
	SuccessResponse(w, http.StatusOK, "Feedback retrieved", result)
}

// Summary returns the rating averages with the recent trend.
func (h *FeedbackHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.feedback.Summary(r.Context(), sess.BusinessID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Summary retrieved", summary)
}

// CheckInvoice tells the public form whether it may render.
func (h *FeedbackHandler) CheckInvoice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	check, err := h.feedback.CheckInvoice(r.Context(), q.Get("username"), q.Get("invoiceNumber"), q.Get("couponCode"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Invoice is open for feedback", check)
}

type submitFeedbackRequest struct {
	Username      string         `json:"username"`
	InvoiceNumber string         `json:"invoiceNumber"`
	CouponCode    string         `json:"couponCode"`
	Ratings       domain.Ratings `json:"ratings"`
	Comment       string         `json:"comment"`
}

// Submit stores one anonymous rating.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitFeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	fb, err := h.feedback.Submit(r.Context(), domain.SubmitFeedbackParams{
		Username:      req.Username,
		InvoiceNumber: req.InvoiceNumber,
		CouponCode:    req.CouponCode,
		Ratings:       req.Ratings,
		Comment:       req.Comment,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusCreated, "Thank you for your feedback", fb)
}
