// Package service contains the business logic layer.
//
// This file implements the quota engine. Each business has one counter per
// usage type, reset lazily once a rolling 24-hour window has elapsed. Every
// counter mutation is a single conditional statement, so concurrent requests
// can never push a counter past its ceiling.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService enforces rolling daily ceilings per usage type.
type QuotaService interface {
	// CheckAndConsume takes one slot, or fails with quota_exceeded without
	// changing the counter.
	CheckAndConsume(ctx context.Context, businessID uuid.UUID, usageType domain.UsageType) (*domain.QuotaResult, error)

	// Usage returns the counter after applying any due reset.
	Usage(ctx context.Context, businessID uuid.UUID, usageType domain.UsageType) (*domain.UsageSnapshot, error)

	// ListUsage returns a snapshot for every usage type.
	ListUsage(ctx context.Context, businessID uuid.UUID) ([]domain.UsageSnapshot, error)

	// Release gives back a slot after the consuming operation failed.
	Release(ctx context.Context, businessID uuid.UUID, usageType domain.UsageType) error
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	store  repository.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(store repository.Store, clk clock.Clock, logger *slog.Logger) QuotaService {
	return &quotaService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// CheckAndConsume implements the ensure, reset, resolve, increment sequence.
func (s *quotaService) CheckAndConsume(ctx context.Context, businessID uuid.UUID, usageType domain.UsageType) (*domain.QuotaResult, error) {
	const op = "quota.check_and_consume"
	now := s.clock.Now()

	limit, err := s.prepare(ctx, op, businessID, usageType)
	if err != nil {
		metrics.QuotaChecked(string(usageType), metrics.ResultError)
		return nil, err
	}

	tracker, err := s.store.IncrementUsageIfBelow(ctx, repository.IncrementUsageIfBelowParams{
		BusinessID: businessID,
		UsageType:  string(usageType),
		DailyLimit: int32(limit),
	})
	if err == nil {
		used := int(tracker.DailyCount)
		metrics.QuotaChecked(string(usageType), metrics.ResultOK)
		return &domain.QuotaResult{
			Allowed:    true,
			Used:       used,
			Remaining:  max(limit-used, 0),
			DailyLimit: limit,
		}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		metrics.QuotaChecked(string(usageType), metrics.ResultError)
		return nil, domain.Internal(err, op, "failed to consume quota")
	}

	// At the ceiling. Re-read for the reporting fields only.
	current, err := s.store.GetUsageTracker(ctx, repository.GetUsageTrackerParams{
		BusinessID: businessID,
		UsageType:  string(usageType),
	})
	if err != nil {
		metrics.QuotaChecked(string(usageType), metrics.ResultError)
		return nil, domain.Internal(err, op, "failed to read usage tracker")
	}

	timeLeft := domain.HoursUntilReset(current.LastReset, now)
	metrics.QuotaChecked(string(usageType), metrics.ResultRejected)
	s.logger.Info("Quota exceeded",
		"business_id", businessID,
		"usage_type", usageType,
		"used", current.DailyCount,
		"limit", limit,
		"time_left_hours", timeLeft,
	)
	return nil, domain.QuotaExceeded(op, usageType, int(current.DailyCount), limit, timeLeft)
}

// Usage is the read path. It applies the same idempotent reset but never increments.
func (s *quotaService) Usage(ctx context.Context, businessID uuid.UUID, usageType domain.UsageType) (*domain.UsageSnapshot, error) {
	const op = "quota.usage"
	now := s.clock.Now()

	limit, err := s.prepare(ctx, op, businessID, usageType)
	if err != nil {
		return nil, err
	}

	tracker, err := s.store.GetUsageTracker(ctx, repository.GetUsageTrackerParams{
		BusinessID: businessID,
		UsageType:  string(usageType),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read usage tracker")
	}

	snapshot := &domain.UsageSnapshot{
		UsageType:  usageType,
		DailyCount: int(tracker.DailyCount),
		DailyLimit: limit,
		LastReset:  tracker.LastReset,
	}
	if snapshot.DailyCount >= limit {
		left := domain.HoursUntilReset(tracker.LastReset, now)
		snapshot.TimeLeftHours = &left
	}
	return snapshot, nil
}

// ListUsage returns snapshots for all usage types in a stable order.
func (s *quotaService) ListUsage(ctx context.Context, businessID uuid.UUID) ([]domain.UsageSnapshot, error) {
	types := []domain.UsageType{domain.UsageTypeInvoiceUpload, domain.UsageTypeAIInsight}
	out := make([]domain.UsageSnapshot, 0, len(types))
	for _, t := range types {
		snap, err := s.Usage(ctx, businessID, t)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

// Release is a compensating decrement guarded by daily_count > 0.
func (s *quotaService) Release(ctx context.Context, businessID uuid.UUID, usageType domain.UsageType) error {
	const op = "quota.release"

	n, err := s.store.DecrementUsage(ctx, repository.DecrementUsageParams{
		BusinessID: businessID,
		UsageType:  string(usageType),
	})
	if err != nil {
		return domain.Internal(err, op, "failed to release quota")
	}
	if n == 0 {
		s.logger.Warn("Quota release found nothing to release", "business_id", businessID, "usage_type", usageType)
	}
	return nil
}

// prepare ensures the tracker exists, applies a due reset, and resolves the
// ceiling from the business plan.
func (s *quotaService) prepare(ctx context.Context, op string, businessID uuid.UUID, usageType domain.UsageType) (int, error) {
	now := s.clock.Now()

	if _, ok := domain.ParseUsageType(string(usageType)); !ok {
		return 0, domain.Invalid(op, "unknown usage type")
	}

	business, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.BusinessNotFound(op)
		}
		return 0, domain.Internal(err, op, "failed to load business")
	}

	if err := s.store.EnsureUsageTracker(ctx, repository.EnsureUsageTrackerParams{
		BusinessID: businessID,
		UsageType:  string(usageType),
		LastReset:  now,
	}); err != nil {
		return 0, domain.Internal(err, op, "failed to create usage tracker")
	}

	reset, err := s.store.ResetUsageTrackerIfElapsed(ctx, repository.ResetUsageTrackerIfElapsedParams{
		BusinessID: businessID,
		UsageType:  string(usageType),
		Now:        now,
		Cutoff:     domain.ResetCutoff(now),
	})
	if err != nil {
		return 0, domain.Internal(err, op, "failed to reset usage tracker")
	}
	if reset > 0 {
		s.logger.Debug("Usage window reset", "business_id", businessID, "usage_type", usageType)
	}

	resolved := domain.ResolvePlan(repoPlan(business), now)
	return resolved.LimitFor(usageType), nil
}
