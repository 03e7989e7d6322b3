package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GeneratedCouponCodeLength is the length of codes generated from a ULID.
const GeneratedCouponCodeLength = 10

// =============================================================================
// Interface Definition
// =============================================================================

// CouponService manages promotional coupons embedded in invoices.
type CouponService interface {
	// Attach validates spec and stores it on the invoice. An empty code is
	// replaced with a generated one.
	Attach(ctx context.Context, businessID, invoiceID uuid.UUID, spec domain.CouponSpec) (*domain.Invoice, error)

	// ListAvailable returns unused, unexpired coupons in invoice creation order.
	ListAvailable(ctx context.Context, businessID uuid.UUID) ([]domain.AvailableCoupon, error)

	// Redeem consumes one use of the coupon on the invoice.
	Redeem(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error)
}

// =============================================================================
// Implementation
// =============================================================================

type couponService struct {
	store  repository.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewCouponService creates a new CouponService.
func NewCouponService(store repository.Store, clk clock.Clock, logger *slog.Logger) CouponService {
	return &couponService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Attach stores the coupon on the invoice.
//
// A coupon can be replaced only while it has never been redeemed.
func (s *couponService) Attach(ctx context.Context, businessID, invoiceID uuid.UUID, spec domain.CouponSpec) (*domain.Invoice, error) {
	const op = "coupon.attach"

	return attachCoupon(ctx, s.store, s.clock, op, businessID, invoiceID, spec)
}

// attachCoupon is shared with invoice upload so both paths validate the same way.
func attachCoupon(ctx context.Context, q repository.Querier, clk clock.Clock, op string, businessID, invoiceID uuid.UUID, spec domain.CouponSpec) (*domain.Invoice, error) {
	params, err := normalizeCouponSpec(op, spec, clk)
	if err != nil {
		return nil, err
	}

	inv, err := q.AttachCoupon(ctx, repository.AttachCouponParams{
		ID:                invoiceID,
		BusinessID:        businessID,
		CouponCode:        sql.NullString{String: params.Code, Valid: true},
		CouponDescription: params.Description,
		CouponExpiry:      sql.NullTime{Time: params.ExpiryDate, Valid: true},
		CouponMaxUsage:    int32(params.MaxUsage),
	})
	if err == nil {
		return repoInvoiceToDomain(inv), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to attach coupon")
	}

	// Either the invoice is missing or its coupon has already been redeemed.
	if _, err := q.GetInvoiceByIDAndBusinessID(ctx, repository.GetInvoiceByIDAndBusinessIDParams{
		ID:         invoiceID,
		BusinessID: businessID,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.InvoiceNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to load invoice")
	}
	return nil, domain.CouponAlreadyUsed(op)
}

func normalizeCouponSpec(op string, spec domain.CouponSpec, clk clock.Clock) (domain.CouponSpec, error) {
	now := clk.Now()

	spec.Code = strings.TrimSpace(spec.Code)
	if spec.Code == "" {
		spec.Code = GenerateCouponCode(now)
	}
	if !domain.ValidateCouponCode(spec.Code) {
		return spec, domain.InvalidCouponCode(op, "Coupon code must contain only uppercase letters and digits")
	}

	spec.Description = strings.TrimSpace(spec.Description)
	if spec.ExpiryDate.IsZero() {
		return spec, domain.InvalidCouponCode(op, "Coupon expiry date is required")
	}
	if !spec.ExpiryDate.After(now) {
		return spec, domain.InvalidCouponCode(op, "Coupon expiry date must be in the future")
	}

	if spec.MaxUsage == 0 {
		spec.MaxUsage = domain.DefaultCouponMaxUsage
	}
	if spec.MaxUsage < 0 {
		return spec, domain.InvalidCouponCode(op, "Coupon max usage must be positive")
	}
	return spec, nil
}

// GenerateCouponCode returns an uppercase alphanumeric code derived from a
// ULID. The random tail is kept so codes issued in the same millisecond differ.
func GenerateCouponCode(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	s := id.String()
	return s[len(s)-GeneratedCouponCodeLength:]
}

// ListAvailable returns coupons that are neither used nor expired.
func (s *couponService) ListAvailable(ctx context.Context, businessID uuid.UUID) ([]domain.AvailableCoupon, error) {
	const op = "coupon.list_available"

	rows, err := s.store.ListAvailableCoupons(ctx, repository.ListAvailableCouponsParams{
		BusinessID: businessID,
		Now:        s.clock.Now(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list coupons")
	}

	out := make([]domain.AvailableCoupon, 0, len(rows))
	for _, row := range rows {
		inv := repoInvoiceToDomain(row)
		if inv.Coupon == nil {
			continue
		}
		out = append(out, domain.AvailableCoupon{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			CustomerName:  inv.Customer.Name,
			Code:          inv.Coupon.Code,
			Description:   inv.Coupon.Description,
			ExpiryDate:    inv.Coupon.ExpiryDate,
			UsageCount:    inv.Coupon.UsageCount,
			MaxUsage:      inv.Coupon.MaxUsage,
		})
	}
	return out, nil
}

// Redeem is a single conditional update. When it matches nothing the invoice
// is re-read only to pick the right error.
func (s *couponService) Redeem(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	const op = "coupon.redeem"

	inv, err := s.store.RedeemCoupon(ctx, repository.RedeemCouponParams{
		ID:         invoiceID,
		BusinessID: businessID,
	})
	if err == nil {
		metrics.CouponRedeemed(metrics.ResultOK)
		s.logger.Info("Coupon redeemed",
			"business_id", businessID,
			"invoice_id", invoiceID,
			"usage_count", inv.CouponUsageCount,
			"is_used", inv.CouponIsUsed,
		)
		return repoInvoiceToDomain(inv), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		metrics.CouponRedeemed(metrics.ResultError)
		return nil, domain.Internal(err, op, "failed to redeem coupon")
	}

	metrics.CouponRedeemed(metrics.ResultRejected)
	current, err := s.store.GetInvoiceByIDAndBusinessID(ctx, repository.GetInvoiceByIDAndBusinessIDParams{
		ID:         invoiceID,
		BusinessID: businessID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.InvoiceNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to load invoice")
	}
	if !current.CouponCode.Valid {
		return nil, domain.CouponNotFound(op)
	}
	return nil, domain.CouponAlreadyUsed(op)
}
