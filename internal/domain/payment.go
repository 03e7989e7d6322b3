package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle of a payment order.
type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
)

// PaymentOrder is a gateway order for one Pro period.
type PaymentOrder struct {
	ID             uuid.UUID
	BusinessID     uuid.UUID
	GatewayOrderID string
	AmountCents    int64
	Currency       string
	Status         OrderStatus
	PaymentID      string
	ClientSecret   string // Only populated on creation
	CreatedAt      time.Time
	PaidAt         *time.Time
}

// IsPaid returns true once the order has been settled.
func (o *PaymentOrder) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// VerifyPaymentParams is the client callback after checkout.
type VerifyPaymentParams struct {
	OrderID   string
	PaymentID string
	Signature string
}

// PlanEvent records one tier transition.
type PlanEvent struct {
	BusinessID uuid.UUID
	From       PlanTier
	To         PlanTier
	OrderID    string
	CreatedAt  time.Time
}
