package service

import (
	"encoding/json"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// =============================================================================
// Repository to domain conversion
// =============================================================================

func repoBusinessToDomain(b repository.Business) *domain.Business {
	return &domain.Business{
		ID:            b.ID,
		Subject:       b.Subject,
		Username:      b.Username,
		Name:          b.Name,
		Email:         b.Email,
		EmailVerified: b.EmailVerified,
		TaxID:         b.TaxID,
		TaxIDVerified: b.TaxIDVerified,
		LogoKey:       b.LogoKey,
		Plan:          repoPlan(b),
		ProTrialUsed:  b.ProTrialUsed,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// repoPlan reads the stored plan. An unknown tier string is treated as free
// so a bad row degrades instead of panicking in the resolver.
func repoPlan(b repository.Business) domain.Plan {
	tier, err := domain.ParsePlanTier(b.PlanTier)
	if err != nil {
		tier = domain.PlanTierFree
	}
	return domain.Plan{
		Tier:      tier,
		StartDate: domain.NullTimeValue(b.PlanStartDate),
		EndDate:   domain.NullTimeValue(b.PlanEndDate),
	}
}

func repoInvoiceToDomain(inv repository.Invoice) *domain.Invoice {
	out := &domain.Invoice{
		ID:            inv.ID,
		BusinessID:    inv.BusinessID,
		InvoiceNumber: inv.InvoiceNumber,
		Customer: domain.Customer{
			Name:  inv.CustomerName,
			Email: inv.CustomerEmail,
			Phone: inv.CustomerPhone,
		},
		LineItems:           decodeLineItems(inv.LineItems),
		AmountCents:         inv.AmountCents,
		Currency:            inv.Currency,
		IsFeedbackSubmitted: inv.IsFeedbackSubmitted,
		PDFKey:              inv.PdfKey,
		CreatedAt:           inv.CreatedAt,
	}
	if inv.CouponCode.Valid {
		out.Coupon = &domain.Coupon{
			Code:        inv.CouponCode.String,
			Description: inv.CouponDescription,
			ExpiryDate:  inv.CouponExpiry.Time,
			IsUsed:      inv.CouponIsUsed,
			UsageCount:  int(inv.CouponUsageCount),
			MaxUsage:    int(inv.CouponMaxUsage),
		}
	}
	return out
}

func decodeLineItems(raw pqtype.NullRawMessage) []domain.LineItem {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil
	}
	var items []domain.LineItem
	if err := json.Unmarshal(raw.RawMessage, &items); err != nil {
		return nil
	}
	return items
}

func encodeJSON(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}

func repoFeedbackToDomain(f repository.Feedback) domain.Feedback {
	return domain.Feedback{
		ID:         f.ID,
		BusinessID: f.BusinessID,
		InvoiceID:  f.InvoiceID,
		Ratings: domain.Ratings{
			Satisfaction:     int(f.Satisfaction),
			Communication:    int(f.Communication),
			QualityOfService: int(f.QualityOfService),
			ValueForMoney:    int(f.ValueForMoney),
			Recommend:        int(f.Recommend),
			OverAll:          int(f.Overall),
		},
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}

func repoOrderToDomain(o repository.PaymentOrder) *domain.PaymentOrder {
	return &domain.PaymentOrder{
		ID:             o.ID,
		BusinessID:     o.BusinessID,
		GatewayOrderID: o.GatewayOrderID,
		AmountCents:    o.AmountCents,
		Currency:       o.Currency,
		Status:         domain.OrderStatus(o.Status),
		PaymentID:      o.PaymentID,
		CreatedAt:      o.CreatedAt,
		PaidAt:         domain.NullTimeValue(o.PaidAt),
	}
}

func repoTrackerToDomain(t repository.UsageTracker) domain.UsageTracker {
	return domain.UsageTracker{
		BusinessID: t.BusinessID,
		UsageType:  domain.UsageType(t.UsageType),
		DailyCount: int(t.DailyCount),
		LastReset:  t.LastReset,
	}
}
