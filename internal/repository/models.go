package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Business struct {
	ID            uuid.UUID    `json:"id"`
	Subject       string       `json:"subject"`
	Username      string       `json:"username"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	EmailVerified bool         `json:"email_verified"`
	TaxID         string       `json:"tax_id"`
	TaxIDVerified bool         `json:"tax_id_verified"`
	LogoKey       string       `json:"logo_key"`
	PlanTier      string       `json:"plan_tier"`
	PlanStartDate sql.NullTime `json:"plan_start_date"`
	PlanEndDate   sql.NullTime `json:"plan_end_date"`
	ProTrialUsed  bool         `json:"pro_trial_used"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type Feedback struct {
	ID               uuid.UUID `json:"id"`
	BusinessID       uuid.UUID `json:"business_id"`
	InvoiceID        uuid.UUID `json:"invoice_id"`
	Satisfaction     int16     `json:"satisfaction"`
	Communication    int16     `json:"communication"`
	QualityOfService int16     `json:"quality_of_service"`
	ValueForMoney    int16     `json:"value_for_money"`
	Recommend        int16     `json:"recommend"`
	Overall          int16     `json:"overall"`
	Comment          string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
}

type Insight struct {
	ID         uuid.UUID             `json:"id"`
	BusinessID uuid.UUID             `json:"business_id"`
	Summary    string                `json:"summary"`
	Details    pqtype.NullRawMessage `json:"details"`
	Model      string                `json:"model"`
	CreatedAt  time.Time             `json:"created_at"`
}

type Invoice struct {
	ID                  uuid.UUID             `json:"id"`
	BusinessID          uuid.UUID             `json:"business_id"`
	InvoiceNumber       string                `json:"invoice_number"`
	CustomerName        string                `json:"customer_name"`
	CustomerEmail       string                `json:"customer_email"`
	CustomerPhone       string                `json:"customer_phone"`
	LineItems           pqtype.NullRawMessage `json:"line_items"`
	AmountCents         int64                 `json:"amount_cents"`
	Currency            string                `json:"currency"`
	IsFeedbackSubmitted bool                  `json:"is_feedback_submitted"`
	PdfKey              string                `json:"pdf_key"`
	CouponCode          sql.NullString        `json:"coupon_code"`
	CouponDescription   string                `json:"coupon_description"`
	CouponExpiry        sql.NullTime          `json:"coupon_expiry"`
	CouponIsUsed        bool                  `json:"coupon_is_used"`
	CouponUsageCount    int32                 `json:"coupon_usage_count"`
	CouponMaxUsage      int32                 `json:"coupon_max_usage"`
	CreatedAt           time.Time             `json:"created_at"`
}

type Job struct {
	ID           uuid.UUID       `json:"id"`
	JobType      string          `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Priority     int32           `json:"priority"`
	Attempts     int32           `json:"attempts"`
	MaxAttempts  int32           `json:"max_attempts"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	StartedAt    sql.NullTime    `json:"started_at"`
	CompletedAt  sql.NullTime    `json:"completed_at"`
	ErrorMessage sql.NullString  `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
}

type PaymentOrder struct {
	ID             uuid.UUID    `json:"id"`
	BusinessID     uuid.UUID    `json:"business_id"`
	GatewayOrderID string       `json:"gateway_order_id"`
	AmountCents    int64        `json:"amount_cents"`
	Currency       string       `json:"currency"`
	Status         string       `json:"status"`
	PaymentID      string       `json:"payment_id"`
	CreatedAt      time.Time    `json:"created_at"`
	PaidAt         sql.NullTime `json:"paid_at"`
}

type PlanEvent struct {
	ID         uuid.UUID      `json:"id"`
	BusinessID uuid.UUID      `json:"business_id"`
	FromTier   string         `json:"from_tier"`
	ToTier     string         `json:"to_tier"`
	OrderID    sql.NullString `json:"order_id"`
	CreatedAt  time.Time      `json:"created_at"`
}

type UsageTracker struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	UsageType  string    `json:"usage_type"`
	DailyCount int32     `json:"daily_count"`
	LastReset  time.Time `json:"last_reset"`
}

type VerificationCode struct {
	BusinessID uuid.UUID `json:"business_id"`
	CodeHash   string    `json:"code_hash"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
