package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
)

// errTransitionRejected signals that a guarded plan UPDATE matched no row.
var errTransitionRejected = errors.New("plan transition rejected")

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService owns the free, pro-trial and pro state machine.
type SubscriptionService interface {
	// Status returns the plan resolved at the current time.
	Status(ctx context.Context, businessID uuid.UUID) (*domain.PlanStatus, error)

	// StartTrial moves a business onto the one-time Pro trial.
	StartTrial(ctx context.Context, sess *auth.Session) (*domain.PlanStatus, error)

	// ActivatePro starts a paid Pro period.
	ActivatePro(ctx context.Context, businessID uuid.UUID, orderID string) (*domain.PlanStatus, error)
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	store  repository.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(store repository.Store, clk clock.Clock, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Status resolves the stored plan. Expired plans read as free without being rewritten.
func (s *subscriptionService) Status(ctx context.Context, businessID uuid.UUID) (*domain.PlanStatus, error) {
	const op = "subscription.status"

	b, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.BusinessNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to load business")
	}
	return planStatus(b, s.clock.Now()), nil
}

// StartTrial runs the guarded trial UPDATE and records the transition in the
// same transaction.
func (s *subscriptionService) StartTrial(ctx context.Context, sess *auth.Session) (*domain.PlanStatus, error) {
	const op = "subscription.start_trial"

	if _, err := requireOwnedBusiness(ctx, s.store, op, sess); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		updated  repository.Business
		fromTier string
	)

	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		before, err := q.GetBusinessByID(ctx, sess.BusinessID)
		if err != nil {
			return err
		}
		fromTier = before.PlanTier

		updated, err = q.StartProTrial(ctx, repository.StartProTrialParams{
			ID:      sess.BusinessID,
			Now:     now,
			EndDate: now.Add(domain.ProTrialDuration),
		})
		if errors.Is(err, sql.ErrNoRows) {
			return errTransitionRejected
		}
		if err != nil {
			return err
		}

		return q.CreatePlanEvent(ctx, repository.CreatePlanEventParams{
			BusinessID: sess.BusinessID,
			FromTier:   fromTier,
			ToTier:     string(domain.PlanTierProTrial),
			CreatedAt:  now,
		})
	})
	if errors.Is(err, errTransitionRejected) {
		return nil, s.trialRejection(ctx, op, sess.BusinessID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.BusinessNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to start trial")
	}

	metrics.PlanTransitioned(fromTier, string(domain.PlanTierProTrial))
	s.logger.Info("Pro trial started", "business_id", sess.BusinessID, "ends_at", updated.PlanEndDate.Time)
	return planStatus(updated, now), nil
}

// trialRejection re-reads the business to report why the guard failed. An
// active Pro plan is reported ahead of a spent trial.
func (s *subscriptionService) trialRejection(ctx context.Context, op string, businessID uuid.UUID) error {
	b, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BusinessNotFound(op)
		}
		return domain.Internal(err, op, "failed to load business")
	}
	if domain.ResolvePlan(repoPlan(b), s.clock.Now()).IsActivePro() {
		return domain.AlreadyOnProPlan(op)
	}
	return domain.TrialAlreadyUsed(op)
}

// ActivatePro starts a 30-day Pro period in its own transaction.
func (s *subscriptionService) ActivatePro(ctx context.Context, businessID uuid.UUID, orderID string) (*domain.PlanStatus, error) {
	const op = "subscription.activate_pro"

	var status *domain.PlanStatus
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		status, err = activatePro(ctx, q, s.clock, op, businessID, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Pro plan activated", "business_id", businessID, "order_id", orderID, "ends_at", status.EndDate)
	return status, nil
}

// activatePro performs the guarded transition on q, which may be a
// transaction owned by the caller.
func activatePro(ctx context.Context, q repository.Querier, clk clock.Clock, op string, businessID uuid.UUID, orderID string) (*domain.PlanStatus, error) {
	now := clk.Now()

	before, err := q.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.BusinessNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to load business")
	}

	updated, err := q.ActivatePro(ctx, repository.ActivateProParams{
		ID:      businessID,
		Now:     now,
		EndDate: now.Add(domain.ProPlanDuration),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.AlreadyOnProPlan(op)
		}
		return nil, domain.Internal(err, op, "failed to activate pro plan")
	}

	if err := q.CreatePlanEvent(ctx, repository.CreatePlanEventParams{
		BusinessID: businessID,
		FromTier:   before.PlanTier,
		ToTier:     string(domain.PlanTierPro),
		OrderID:    domain.ToNullString(orderID),
		CreatedAt:  now,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to record plan event")
	}

	metrics.PlanTransitioned(before.PlanTier, string(domain.PlanTierPro))
	return planStatus(updated, now), nil
}

func planStatus(b repository.Business, now time.Time) *domain.PlanStatus {
	plan := repoPlan(b)
	resolved := domain.ResolvePlan(plan, now)
	return &domain.PlanStatus{
		Tier:          plan.Tier,
		EffectiveTier: resolved.EffectiveTier,
		IsActive:      resolved.IsActive,
		StartDate:     plan.StartDate,
		EndDate:       plan.EndDate,
		ProTrialUsed:  b.ProTrialUsed,
		DailyLimit:    resolved.DailyLimit,
	}
}

// requireOwnedBusiness rejects missing sessions before any store access and
// checks the session subject owns the bound business.
func requireOwnedBusiness(ctx context.Context, q repository.Querier, op string, sess *auth.Session) (repository.Business, error) {
	if sess == nil || sess.Subject == "" {
		return repository.Business{}, domain.Unauthorized(op, "A verified session is required")
	}
	if !sess.HasBusiness() {
		return repository.Business{}, domain.BusinessNotFound(op)
	}

	b, err := q.GetBusinessByID(ctx, sess.BusinessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Business{}, domain.BusinessNotFound(op)
		}
		return repository.Business{}, domain.Internal(err, op, "failed to load business")
	}
	if b.Subject != sess.Subject {
		return repository.Business{}, domain.Forbidden(op, "Session does not own this business")
	}
	return b, nil
}
