package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/rateflow/internal/cache"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/google/uuid"
)

// logoURLExpiry is how long a presigned logo link on the feedback form lives.
const logoURLExpiry = time.Hour

var errFeedbackTaken = errors.New("feedback already submitted")

// =============================================================================
// Interface Definition
// =============================================================================

// FeedbackService is the public invoice gate and the owner-facing feedback views.
type FeedbackService interface {
	// CheckInvoice tells the public form whether feedback can be left.
	CheckInvoice(ctx context.Context, username, invoiceNumber, couponCode string) (*domain.InvoiceCheck, error)

	// Submit stores one anonymous rating. Each invoice accepts exactly one.
	Submit(ctx context.Context, params domain.SubmitFeedbackParams) (*domain.Feedback, error)

	// Summary aggregates every rating of the business with a 30-day trend.
	Summary(ctx context.Context, businessID uuid.UUID) (*domain.RatingSummary, error)

	List(ctx context.Context, businessID uuid.UUID, limit, offset int32) (*domain.ListFeedbackResult, error)
}

// =============================================================================
// Implementation
// =============================================================================

type feedbackService struct {
	store     repository.Store
	usernames *cache.UsernameCache
	storage   storage.Storage
	clock     clock.Clock
	logger    *slog.Logger
}

// NewFeedbackService creates a new FeedbackService. objects may be nil, in
// which case logos are not linked.
func NewFeedbackService(store repository.Store, usernames *cache.UsernameCache, objects storage.Storage, clk clock.Clock, logger *slog.Logger) FeedbackService {
	if usernames == nil {
		usernames = cache.NewUsernameCache(0, 0)
	}
	return &feedbackService{
		store:     store,
		usernames: usernames,
		storage:   objects,
		clock:     clk,
		logger:    logger,
	}
}

// resolveBusiness goes through the username cache. A cached ID whose row is
// gone is evicted and the username looked up again.
func (s *feedbackService) resolveBusiness(ctx context.Context, op, username string) (repository.Business, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return repository.Business{}, domain.BusinessNotFound(op)
	}

	if id, ok := s.usernames.Get(username); ok {
		b, err := s.store.GetBusinessByID(ctx, id)
		if err == nil && b.Username == username {
			return b, nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return repository.Business{}, domain.Internal(err, op, "failed to load business")
		}
		s.usernames.Remove(username)
	}

	b, err := s.store.GetBusinessByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Business{}, domain.BusinessNotFound(op)
		}
		return repository.Business{}, domain.Internal(err, op, "failed to load business")
	}
	s.usernames.Add(username, b.ID)
	return b, nil
}

// resolveInvoice applies the gate in order: business, invoice and coupon
// match, then the submitted flag.
func (s *feedbackService) resolveInvoice(ctx context.Context, op, username, invoiceNumber, couponCode string) (repository.Business, *domain.Invoice, error) {
	business, err := s.resolveBusiness(ctx, op, username)
	if err != nil {
		return repository.Business{}, nil, err
	}

	row, err := s.store.GetInvoiceByNumber(ctx, repository.GetInvoiceByNumberParams{
		BusinessID:    business.ID,
		InvoiceNumber: strings.TrimSpace(invoiceNumber),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Business{}, nil, domain.InvoiceNotFound(op)
		}
		return repository.Business{}, nil, domain.Internal(err, op, "failed to load invoice")
	}
	inv := repoInvoiceToDomain(row)

	if strings.TrimSpace(couponCode) != "" {
		if inv.Coupon == nil || !inv.Coupon.Matches(couponCode) {
			return repository.Business{}, nil, domain.InvoiceNotFound(op)
		}
	}

	if inv.IsFeedbackSubmitted {
		return repository.Business{}, nil, domain.FeedbackAlreadySubmitted(op)
	}
	return business, inv, nil
}

func (s *feedbackService) CheckInvoice(ctx context.Context, username, invoiceNumber, couponCode string) (*domain.InvoiceCheck, error) {
	const op = "feedback.check_invoice"

	business, inv, err := s.resolveInvoice(ctx, op, username, invoiceNumber, couponCode)
	if err != nil {
		return nil, err
	}

	check := &domain.InvoiceCheck{
		BusinessName:  business.Name,
		Username:      business.Username,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.Customer.Name,
	}
	if business.LogoKey != "" && s.storage != nil {
		url, err := s.storage.URL(ctx, business.LogoKey, logoURLExpiry)
		if err != nil {
			s.logger.Warn("logo URL unavailable", "business_id", business.ID, "error", err)
		} else {
			check.LogoURL = url
		}
	}
	return check, nil
}

// Submit flips the submitted flag and inserts the row in one transaction. The
// flip is conditional, so of two racing submissions exactly one commits.
func (s *feedbackService) Submit(ctx context.Context, params domain.SubmitFeedbackParams) (*domain.Feedback, error) {
	const op = "feedback.submit"

	_, inv, err := s.resolveInvoice(ctx, op, params.Username, params.InvoiceNumber, params.CouponCode)
	if err != nil {
		metrics.FeedbackSubmitted(metrics.ResultRejected)
		return nil, err
	}

	ratings := params.Ratings
	if err := ratings.Validate(op); err != nil {
		metrics.FeedbackSubmitted(metrics.ResultRejected)
		return nil, err
	}

	comment := strings.TrimSpace(params.Comment)
	if len(comment) > domain.MaxFeedbackCommentLength {
		metrics.FeedbackSubmitted(metrics.ResultRejected)
		return nil, domain.NewValidationError(op, "comment", "Comment is too long")
	}

	var created repository.Feedback
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		n, err := q.MarkFeedbackSubmitted(ctx, inv.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return errFeedbackTaken
		}

		created, err = q.CreateFeedback(ctx, repository.CreateFeedbackParams{
			BusinessID:       inv.BusinessID,
			InvoiceID:        inv.ID,
			Satisfaction:     int16(ratings.Satisfaction),
			Communication:    int16(ratings.Communication),
			QualityOfService: int16(ratings.QualityOfService),
			ValueForMoney:    int16(ratings.ValueForMoney),
			Recommend:        int16(ratings.Recommend),
			Overall:          int16(ratings.OverAll),
			Comment:          comment,
			CreatedAt:        s.clock.Now(),
		})
		if repository.IsUniqueViolation(err) {
			return errFeedbackTaken
		}
		return err
	})
	if errors.Is(err, errFeedbackTaken) {
		metrics.FeedbackSubmitted(metrics.ResultRejected)
		return nil, domain.FeedbackAlreadySubmitted(op)
	}
	if err != nil {
		metrics.FeedbackSubmitted(metrics.ResultError)
		return nil, domain.Internal(err, op, "failed to store feedback")
	}

	metrics.FeedbackSubmitted(metrics.ResultOK)
	s.logger.Info("Feedback submitted", "business_id", inv.BusinessID, "invoice_id", inv.ID, "overall", ratings.OverAll)

	fb := repoFeedbackToDomain(created)
	return &fb, nil
}

func (s *feedbackService) Summary(ctx context.Context, businessID uuid.UUID) (*domain.RatingSummary, error) {
	const op = "feedback.summary"

	row, err := s.store.GetFeedbackSummary(ctx, businessID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to summarise feedback")
	}

	since := s.clock.Now().AddDate(0, 0, -domain.SummaryTrendDays)
	trend, err := s.store.GetFeedbackTrend(ctx, repository.GetFeedbackTrendParams{
		BusinessID: businessID,
		Since:      since,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load feedback trend")
	}

	summary := &domain.RatingSummary{
		Count:            row.Count,
		Satisfaction:     domain.RoundAverage(row.AvgSatisfaction),
		Communication:    domain.RoundAverage(row.AvgCommunication),
		QualityOfService: domain.RoundAverage(row.AvgQualityOfService),
		ValueForMoney:    domain.RoundAverage(row.AvgValueForMoney),
		Recommend:        domain.RoundAverage(row.AvgRecommend),
		OverAll:          domain.RoundAverage(row.AvgOverall),
		Trend:            make([]domain.TrendPoint, 0, len(trend)),
	}
	for _, p := range trend {
		summary.Trend = append(summary.Trend, domain.TrendPoint{
			Day:     p.Day,
			Count:   p.Count,
			OverAll: domain.RoundAverage(p.AvgOverall),
		})
	}
	return summary, nil
}

func (s *feedbackService) List(ctx context.Context, businessID uuid.UUID, limit, offset int32) (*domain.ListFeedbackResult, error) {
	const op = "feedback.list"

	limit, offset = domain.ClampPage(limit, offset)

	total, err := s.store.CountFeedbackByBusinessID(ctx, businessID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count feedback")
	}

	rows, err := s.store.ListFeedbackByBusinessID(ctx, repository.ListFeedbackByBusinessIDParams{
		BusinessID: businessID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list feedback")
	}

	entries := make([]domain.FeedbackEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.FeedbackEntry{
			Feedback: repoFeedbackToDomain(repository.Feedback{
				ID:               row.ID,
				BusinessID:       row.BusinessID,
				InvoiceID:        row.InvoiceID,
				Satisfaction:     row.Satisfaction,
				Communication:    row.Communication,
				QualityOfService: row.QualityOfService,
				ValueForMoney:    row.ValueForMoney,
				Recommend:        row.Recommend,
				Overall:          row.Overall,
				Comment:          row.Comment,
				CreatedAt:        row.CreatedAt,
			}),
			InvoiceNumber: row.InvoiceNumber,
			CustomerName:  row.CustomerName,
		})
	}

	return &domain.ListFeedbackResult{
		Entries:    entries,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}
