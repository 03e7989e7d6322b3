package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Querier is the full query surface. Services depend on it rather than on
// *Queries so tests can substitute an in-memory store.
type Querier interface {
	// Businesses
	ActivatePro(ctx context.Context, arg ActivateProParams) (Business, error)
	CountPlansByTier(ctx context.Context, now time.Time) ([]CountPlansByTierRow, error)
	CreateBusiness(ctx context.Context, arg CreateBusinessParams) (Business, error)
	CreatePlanEvent(ctx context.Context, arg CreatePlanEventParams) error
	DeleteBusiness(ctx context.Context, id uuid.UUID) (int64, error)
	GetBusinessByID(ctx context.Context, id uuid.UUID) (Business, error)
	GetBusinessBySubject(ctx context.Context, subject string) (Business, error)
	GetBusinessByUsername(ctx context.Context, username string) (Business, error)
	MarkBusinessEmailVerified(ctx context.Context, arg MarkBusinessEmailVerifiedParams) error
	SetBusinessTaxID(ctx context.Context, arg SetBusinessTaxIDParams) error
	StartProTrial(ctx context.Context, arg StartProTrialParams) (Business, error)
	UpdateBusinessLogo(ctx context.Context, arg UpdateBusinessLogoParams) error
	UpdateBusinessProfile(ctx context.Context, arg UpdateBusinessProfileParams) (Business, error)

	// Usage
	DecrementUsage(ctx context.Context, arg DecrementUsageParams) (int64, error)
	DeleteUsageTrackers(ctx context.Context, businessID uuid.UUID) error
	EnsureUsageTracker(ctx context.Context, arg EnsureUsageTrackerParams) error
	GetUsageTracker(ctx context.Context, arg GetUsageTrackerParams) (UsageTracker, error)
	IncrementUsageIfBelow(ctx context.Context, arg IncrementUsageIfBelowParams) (UsageTracker, error)
	ListUsageTrackers(ctx context.Context, businessID uuid.UUID) ([]UsageTracker, error)
	ResetUsageTrackerIfElapsed(ctx context.Context, arg ResetUsageTrackerIfElapsedParams) (int64, error)

	// Invoices
	AttachCoupon(ctx context.Context, arg AttachCouponParams) (Invoice, error)
	CountInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error)
	CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error)
	DeleteInvoice(ctx context.Context, arg DeleteInvoiceParams) (Invoice, error)
	DeleteInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) ([]string, error)
	FilterUnreferencedFileKeys(ctx context.Context, keys []string) ([]string, error)
	GetInvoiceByIDAndBusinessID(ctx context.Context, arg GetInvoiceByIDAndBusinessIDParams) (Invoice, error)
	GetInvoiceByNumber(ctx context.Context, arg GetInvoiceByNumberParams) (Invoice, error)
	ListAvailableCoupons(ctx context.Context, arg ListAvailableCouponsParams) ([]Invoice, error)
	ListInvoicesByBusinessID(ctx context.Context, arg ListInvoicesByBusinessIDParams) ([]Invoice, error)
	MarkFeedbackSubmitted(ctx context.Context, id uuid.UUID) (int64, error)
	RedeemCoupon(ctx context.Context, arg RedeemCouponParams) (Invoice, error)
	SetInvoicePDFKey(ctx context.Context, arg SetInvoicePDFKeyParams) error

	// Feedback
	CountFeedbackByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error)
	CreateFeedback(ctx context.Context, arg CreateFeedbackParams) (Feedback, error)
	GetFeedbackSummary(ctx context.Context, businessID uuid.UUID) (GetFeedbackSummaryRow, error)
	GetFeedbackTrend(ctx context.Context, arg GetFeedbackTrendParams) ([]GetFeedbackTrendRow, error)
	ListFeedbackByBusinessID(ctx context.Context, arg ListFeedbackByBusinessIDParams) ([]ListFeedbackByBusinessIDRow, error)
	ListRecentFeedback(ctx context.Context, arg ListRecentFeedbackParams) ([]Feedback, error)

	// Payments
	CreatePaymentOrder(ctx context.Context, arg CreatePaymentOrderParams) (PaymentOrder, error)
	GetPaymentOrderByGatewayID(ctx context.Context, gatewayOrderID string) (PaymentOrder, error)
	MarkPaymentOrderPaid(ctx context.Context, arg MarkPaymentOrderPaidParams) (PaymentOrder, error)

	// Verification codes
	ConsumeVerificationCode(ctx context.Context, arg ConsumeVerificationCodeParams) (int64, error)
	DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error)
	GetVerificationCode(ctx context.Context, businessID uuid.UUID) (VerificationCode, error)
	UpsertVerificationCode(ctx context.Context, arg UpsertVerificationCodeParams) error

	// Insights
	CreateInsight(ctx context.Context, arg CreateInsightParams) (Insight, error)
	GetLatestInsight(ctx context.Context, businessID uuid.UUID) (Insight, error)

	// Jobs
	DequeueJob(ctx context.Context) (Job, error)
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error)
	UpdateJobCompleted(ctx context.Context, id uuid.UUID) error
	UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error
	UpdateJobStarted(ctx context.Context, id uuid.UUID) error
}

var _ Querier = (*Queries)(nil)
