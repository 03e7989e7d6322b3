package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/service"
)

// InsightHandler serves AI feedback insights.
type InsightHandler struct {
	insights service.InsightService
	logger   *slog.Logger
}

// NewInsightHandler creates a new InsightHandler.
func NewInsightHandler(insights service.InsightService, logger *slog.Logger) *InsightHandler {
	return &InsightHandler{
		insights: insights,
		logger:   logger,
	}
}

// RegisterRoutes registers insight routes on the provided mux.
func (h *InsightHandler) RegisterRoutes(mux *http.ServeMux, requireSession func(http.Handler) http.Handler) {
	mux.Handle("POST /api/insights", requireSession(http.HandlerFunc(h.Request)))
	mux.Handle("GET /api/insights/latest", requireSession(http.HandlerFunc(h.Latest)))
}

// Request takes an insight slot and queues generation.
func (h *InsightHandler) Request(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.insights.Request(r.Context(), sess)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusAccepted, "Insight generation queued", newQuotaView(result))
}

// Latest returns the most recent insight.
func (h *InsightHandler) Latest(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireBusiness(w, r, h.logger)
	if !ok {
		return
	}

	insight, err := h.insights.Latest(r.Context(), sess.BusinessID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	SuccessResponse(w, http.StatusOK, "Insight retrieved", insight)
}
