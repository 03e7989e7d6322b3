package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/rateflow/internal/ai"
	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/worker"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// InsightService turns recent feedback into AI improvement suggestions.
type InsightService interface {
	// Request consumes an ai-insight slot and queues generation.
	Request(ctx context.Context, sess *auth.Session) (*domain.QuotaResult, error)

	// Generate runs the provider for a queued request. On failure the slot
	// is refunded if it belongs to the current quota window.
	Generate(ctx context.Context, businessID uuid.UUID, consumedAt time.Time) (*domain.Insight, error)

	Latest(ctx context.Context, businessID uuid.UUID) (*domain.Insight, error)
}

// insightDetails is the jsonb payload stored with an insight.
type insightDetails struct {
	Strengths    []string `json:"strengths"`
	Suggestions  []string `json:"suggestions"`
	SampleSize   int      `json:"sampleSize"`
	InputTokens  int      `json:"inputTokens"`
	OutputTokens int      `json:"outputTokens"`
	CostCents    int      `json:"costCents"`
}

// =============================================================================
// Implementation
// =============================================================================

type insightService struct {
	store    repository.Store
	quota    QuotaService
	provider ai.Provider
	clock    clock.Clock
	logger   *slog.Logger
}

// NewInsightService creates a new InsightService.
func NewInsightService(store repository.Store, quota QuotaService, provider ai.Provider, clk clock.Clock, logger *slog.Logger) InsightService {
	return &insightService{
		store:    store,
		quota:    quota,
		provider: provider,
		clock:    clk,
		logger:   logger,
	}
}

func (s *insightService) Request(ctx context.Context, sess *auth.Session) (*domain.QuotaResult, error) {
	const op = "insights.request"

	business, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, domain.Errorf(domain.ENOTIMPL, op, "AI insights are not configured")
	}

	count, err := s.store.CountFeedbackByBusinessID(ctx, business.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count feedback")
	}
	if count == 0 {
		return nil, domain.Invalid(op, "There is no feedback to analyze yet")
	}

	consumedAt := s.clock.Now()
	result, err := s.quota.CheckAndConsume(ctx, business.ID, domain.UsageTypeAIInsight)
	if err != nil {
		return nil, err
	}

	if _, err := worker.EnqueueGenerateInsights(ctx, s.store, business.ID, consumedAt); err != nil {
		if relErr := s.quota.Release(ctx, business.ID, domain.UsageTypeAIInsight); relErr != nil {
			s.logger.Error("failed to release insight quota", "business_id", business.ID, "error", relErr)
		}
		return nil, domain.Internal(err, op, "failed to queue insight generation")
	}

	s.logger.Info("Insight requested", "business_id", business.ID, "remaining", result.Remaining)
	return result, nil
}

func (s *insightService) Generate(ctx context.Context, businessID uuid.UUID, consumedAt time.Time) (*domain.Insight, error) {
	const op = "insights.generate"

	business, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.BusinessNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to load business")
	}

	rows, err := s.store.ListRecentFeedback(ctx, repository.ListRecentFeedbackParams{
		BusinessID: businessID,
		Limit:      domain.InsightFeedbackWindow,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load feedback")
	}

	samples := make([]ai.FeedbackSample, 0, len(rows))
	for _, f := range rows {
		samples = append(samples, ai.FeedbackSample{
			Satisfaction:     int(f.Satisfaction),
			Communication:    int(f.Communication),
			QualityOfService: int(f.QualityOfService),
			ValueForMoney:    int(f.ValueForMoney),
			Recommend:        int(f.Recommend),
			OverAll:          int(f.Overall),
			Comment:          f.Comment,
			SubmittedAt:      f.CreatedAt,
		})
	}

	out, err := s.provider.SuggestImprovements(ctx, ai.SuggestParams{
		BusinessID:   businessID,
		BusinessName: business.Name,
		Feedback:     samples,
	})
	if err != nil {
		metrics.AICall(metrics.ResultError, 0, 0, 0)
		s.refund(ctx, businessID, consumedAt)
		return nil, domain.ExternalServiceFailure(err, op, "AI provider")
	}
	metrics.AICall(metrics.ResultOK, out.Usage.InputTokens, out.Usage.OutputTokens, out.Usage.CostCents)

	details, err := encodeJSON(insightDetails{
		Strengths:    out.Strengths,
		Suggestions:  out.Suggestions,
		SampleSize:   len(samples),
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		CostCents:    out.Usage.CostCents,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode insight")
	}

	row, err := s.store.CreateInsight(ctx, repository.CreateInsightParams{
		BusinessID: businessID,
		Summary:    out.Summary,
		Details:    details,
		Model:      out.Usage.Model,
		CreatedAt:  s.clock.Now(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to store insight")
	}

	s.logger.Info("Insight generated",
		"business_id", businessID,
		"samples", len(samples),
		"model", out.Usage.Model,
		"cost_cents", out.Usage.CostCents,
	)
	return repoInsightToDomain(row), nil
}

// refund releases the slot only while the window it was taken from is still
// current. After a reset the counter no longer includes it.
func (s *insightService) refund(ctx context.Context, businessID uuid.UUID, consumedAt time.Time) {
	tracker, err := s.store.GetUsageTracker(ctx, repository.GetUsageTrackerParams{
		BusinessID: businessID,
		UsageType:  string(domain.UsageTypeAIInsight),
	})
	if err != nil {
		s.logger.Error("failed to read insight tracker for refund", "business_id", businessID, "error", err)
		return
	}
	if tracker.LastReset.After(consumedAt) {
		s.logger.Info("Insight slot not refunded, window already reset", "business_id", businessID)
		return
	}
	if err := s.quota.Release(ctx, businessID, domain.UsageTypeAIInsight); err != nil {
		s.logger.Error("failed to refund insight slot", "business_id", businessID, "error", err)
	}
}

func (s *insightService) Latest(ctx context.Context, businessID uuid.UUID) (*domain.Insight, error) {
	const op = "insights.latest"

	row, err := s.store.GetLatestInsight(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "insight", businessID.String())
		}
		return nil, domain.Internal(err, op, "failed to load insight")
	}
	return repoInsightToDomain(row), nil
}

func repoInsightToDomain(row repository.Insight) *domain.Insight {
	out := &domain.Insight{
		ID:         row.ID,
		BusinessID: row.BusinessID,
		Summary:    row.Summary,
		Model:      row.Model,
		CreatedAt:  row.CreatedAt,
	}
	if row.Details.Valid {
		var d insightDetails
		if err := json.Unmarshal(row.Details.RawMessage, &d); err == nil {
			out.Strengths = d.Strengths
			out.Suggestions = d.Suggestions
		}
	}
	return out
}
