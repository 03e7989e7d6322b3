package jobs

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/service"
	"github.com/DukeRupert/rateflow/internal/worker"
)

// GenerateInsightsHandler runs one AI insight request taken from the quota.
type GenerateInsightsHandler struct {
	insights service.InsightService
	logger   *slog.Logger
}

// NewGenerateInsightsHandler creates a new handler for insight jobs.
func NewGenerateInsightsHandler(insights service.InsightService, logger *slog.Logger) *GenerateInsightsHandler {
	return &GenerateInsightsHandler{
		insights: insights,
		logger:   logger,
	}
}

// Type returns the job type identifier.
func (h *GenerateInsightsHandler) Type() string {
	return worker.JobTypeGenerateInsights
}

// Handle executes the insight job. The service refunds the quota slot on a
// provider failure, so every failure is permanent.
func (h *GenerateInsightsHandler) Handle(ctx context.Context, payload []byte) error {
	p, err := worker.DecodePayload[worker.GenerateInsightsPayload](payload)
	if err != nil {
		return err
	}

	insight, err := h.insights.Generate(ctx, p.BusinessID, p.ConsumedAt)
	if err != nil {
		h.logger.Warn("Insight generation failed",
			"business_id", p.BusinessID,
			"code", domain.ErrorCode(err),
			"error", err,
		)
		return worker.Permanentf("generate insights: %w", err)
	}

	h.logger.Info("Insight stored", "business_id", p.BusinessID, "insight_id", insight.ID)
	return nil
}
