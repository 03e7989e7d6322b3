package handler

import (
	"time"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Response Views
// =============================================================================

type couponView struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	ExpiryDate  time.Time `json:"expiryDate"`
	IsUsed      bool      `json:"isUsed"`
	UsageCount  int       `json:"usageCount"`
	MaxUsage    int       `json:"maxUsage"`
}

type invoiceView struct {
	ID                  uuid.UUID         `json:"id"`
	InvoiceNumber       string            `json:"invoiceNumber"`
	BusinessID          uuid.UUID         `json:"businessId"`
	Customer            domain.Customer   `json:"customer"`
	LineItems           []domain.LineItem `json:"lineItems"`
	AmountCents         int64             `json:"amountCents"`
	Currency            string            `json:"currency"`
	IsFeedbackSubmitted bool              `json:"isFeedbackSubmitted"`
	Coupon              *couponView       `json:"coupon"`
	HasPDF              bool              `json:"hasPdf"`
	CreatedAt           time.Time         `json:"createdAt"`
}

func newInvoiceView(inv *domain.Invoice) invoiceView {
	v := invoiceView{
		ID:                  inv.ID,
		InvoiceNumber:       inv.InvoiceNumber,
		BusinessID:          inv.BusinessID,
		Customer:            inv.Customer,
		LineItems:           inv.LineItems,
		AmountCents:         inv.AmountCents,
		Currency:            inv.Currency,
		IsFeedbackSubmitted: inv.IsFeedbackSubmitted,
		HasPDF:              inv.PDFKey != "",
		CreatedAt:           inv.CreatedAt,
	}
	if v.LineItems == nil {
		v.LineItems = []domain.LineItem{}
	}
	if c := inv.Coupon; c != nil {
		v.Coupon = &couponView{
			Code:        c.Code,
			Description: c.Description,
			ExpiryDate:  c.ExpiryDate,
			IsUsed:      c.IsUsed,
			UsageCount:  c.UsageCount,
			MaxUsage:    c.MaxUsage,
		}
	}
	return v
}

type invoiceListView struct {
	Invoices   []invoiceView `json:"invoices"`
	TotalCount int64         `json:"totalCount"`
	Limit      int32         `json:"limit"`
	Offset     int32         `json:"offset"`
	HasMore    bool          `json:"hasMore"`
}

type businessView struct {
	ID               uuid.UUID       `json:"id"`
	Username         string          `json:"username"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	EmailVerified    bool            `json:"emailVerified"`
	TaxID            string          `json:"taxId,omitempty"`
	TaxIDVerified    bool            `json:"taxIdVerified"`
	LogoURL          string          `json:"logoUrl,omitempty"`
	PlanTier         domain.PlanTier `json:"planTier"`
	PlanStartDate    *time.Time      `json:"planStartDate"`
	PlanEndDate      *time.Time      `json:"planEndDate"`
	ProTrialUsed     bool            `json:"proTrialUsed"`
	DailyUploadCount *int            `json:"dailyUploadCount,omitempty"`
	LastDailyReset   *time.Time      `json:"lastDailyReset,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func newBusinessView(b *domain.Business, logoURL string) businessView {
	return businessView{
		ID:            b.ID,
		Username:      b.Username,
		Name:          b.Name,
		Email:         b.Email,
		EmailVerified: b.EmailVerified,
		TaxID:         b.TaxID,
		TaxIDVerified: b.TaxIDVerified,
		LogoURL:       logoURL,
		PlanTier:      b.Plan.Tier,
		PlanStartDate: b.Plan.StartDate,
		PlanEndDate:   b.Plan.EndDate,
		ProTrialUsed:  b.ProTrialUsed,
		CreatedAt:     b.CreatedAt,
	}
}

// uploadCountView is the upload counter as the dashboard shows it. TimeLeft
// is only set while the ceiling is reached.
type uploadCountView struct {
	DailyUploadCount int  `json:"dailyUploadCount"`
	DailyLimit       int  `json:"dailyLimit"`
	TimeLeft         *int `json:"timeLeft"`
}

type usageView struct {
	UsageType     domain.UsageType `json:"usageType"`
	DailyCount    int              `json:"dailyCount"`
	DailyLimit    int              `json:"dailyLimit"`
	LastReset     time.Time        `json:"lastReset"`
	TimeLeftHours *int             `json:"timeLeftHours"`
}

func newUsageView(s domain.UsageSnapshot) usageView {
	return usageView{
		UsageType:     s.UsageType,
		DailyCount:    s.DailyCount,
		DailyLimit:    s.DailyLimit,
		LastReset:     s.LastReset,
		TimeLeftHours: s.TimeLeftHours,
	}
}

type quotaView struct {
	Used       int `json:"used"`
	Remaining  int `json:"remaining"`
	DailyLimit int `json:"dailyLimit"`
}

func newQuotaView(q *domain.QuotaResult) quotaView {
	return quotaView{Used: q.Used, Remaining: q.Remaining, DailyLimit: q.DailyLimit}
}

type orderView struct {
	OrderID      string `json:"orderId"`
	AmountCents  int64  `json:"amountCents"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"clientSecret"`
}
