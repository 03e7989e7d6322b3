// source: payments.sql

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createPaymentOrder = `-- name: CreatePaymentOrder :one
INSERT INTO payment_orders (business_id, gateway_order_id, amount_cents, currency, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, business_id, gateway_order_id, amount_cents, currency, status, payment_id, created_at, paid_at
`

type CreatePaymentOrderParams struct {
	BusinessID     uuid.UUID `json:"business_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
}

func (q *Queries) CreatePaymentOrder(ctx context.Context, arg CreatePaymentOrderParams) (PaymentOrder, error) {
	row := q.db.QueryRowContext(ctx, createPaymentOrder,
		arg.BusinessID,
		arg.GatewayOrderID,
		arg.AmountCents,
		arg.Currency,
		arg.CreatedAt,
	)
	return scanPaymentOrder(row)
}

const getPaymentOrderByGatewayID = `-- name: GetPaymentOrderByGatewayID :one
SELECT id, business_id, gateway_order_id, amount_cents, currency, status, payment_id, created_at, paid_at FROM payment_orders
WHERE gateway_order_id = $1
`

func (q *Queries) GetPaymentOrderByGatewayID(ctx context.Context, gatewayOrderID string) (PaymentOrder, error) {
	row := q.db.QueryRowContext(ctx, getPaymentOrderByGatewayID, gatewayOrderID)
	return scanPaymentOrder(row)
}

const markPaymentOrderPaid = `-- name: MarkPaymentOrderPaid :one
UPDATE payment_orders
SET status = 'paid', payment_id = $2, paid_at = $3
WHERE gateway_order_id = $1 AND status = 'created'
RETURNING id, business_id, gateway_order_id, amount_cents, currency, status, payment_id, created_at, paid_at
`

type MarkPaymentOrderPaidParams struct {
	GatewayOrderID string    `json:"gateway_order_id"`
	PaymentID      string    `json:"payment_id"`
	PaidAt         time.Time `json:"paid_at"`
}

func (q *Queries) MarkPaymentOrderPaid(ctx context.Context, arg MarkPaymentOrderPaidParams) (PaymentOrder, error) {
	row := q.db.QueryRowContext(ctx, markPaymentOrderPaid, arg.GatewayOrderID, arg.PaymentID, arg.PaidAt)
	return scanPaymentOrder(row)
}

func scanPaymentOrder(row rowScanner) (PaymentOrder, error) {
	var i PaymentOrder
	err := row.Scan(
		&i.ID,
		&i.BusinessID,
		&i.GatewayOrderID,
		&i.AmountCents,
		&i.Currency,
		&i.Status,
		&i.PaymentID,
		&i.CreatedAt,
		&i.PaidAt,
	)
	return i, err
}
