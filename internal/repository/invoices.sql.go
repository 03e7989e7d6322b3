// source: invoices.sql

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const attachCoupon = `-- name: AttachCoupon :one
UPDATE invoices
SET coupon_code = $3,
    coupon_description = $4,
    coupon_expiry = $5,
    coupon_max_usage = $6,
    coupon_is_used = FALSE,
    coupon_usage_count = 0
WHERE id = $1 AND business_id = $2
  AND (coupon_code IS NULL OR coupon_usage_count = 0)
RETURNING id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at
`

type AttachCouponParams struct {
	ID                uuid.UUID      `json:"id"`
	BusinessID        uuid.UUID      `json:"business_id"`
	CouponCode        sql.NullString `json:"coupon_code"`
	CouponDescription string         `json:"coupon_description"`
	CouponExpiry      sql.NullTime   `json:"coupon_expiry"`
	CouponMaxUsage    int32          `json:"coupon_max_usage"`
}

// AttachCoupon replaces the coupon on an invoice unless the current coupon
// has already been redeemed at least once.
func (q *Queries) AttachCoupon(ctx context.Context, arg AttachCouponParams) (Invoice, error) {
	row := q.db.QueryRowContext(ctx, attachCoupon,
		arg.ID,
		arg.BusinessID,
		arg.CouponCode,
		arg.CouponDescription,
		arg.CouponExpiry,
		arg.CouponMaxUsage,
	)
	return scanInvoice(row)
}

const countInvoicesByBusinessID = `-- name: CountInvoicesByBusinessID :one
SELECT COUNT(*) FROM invoices WHERE business_id = $1
`

func (q *Queries) CountInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countInvoicesByBusinessID, businessID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO invoices (
    business_id, invoice_number, customer_name, customer_email, customer_phone,
    line_items, amount_cents, currency, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at
`

type CreateInvoiceParams struct {
	BusinessID    uuid.UUID             `json:"business_id"`
	InvoiceNumber string                `json:"invoice_number"`
	CustomerName  string                `json:"customer_name"`
	CustomerEmail string                `json:"customer_email"`
	CustomerPhone string                `json:"customer_phone"`
	LineItems     pqtype.NullRawMessage `json:"line_items"`
	AmountCents   int64                 `json:"amount_cents"`
	Currency      string                `json:"currency"`
	CreatedAt     time.Time             `json:"created_at"`
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRowContext(ctx, createInvoice,
		arg.BusinessID,
		arg.InvoiceNumber,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CustomerPhone,
		arg.LineItems,
		arg.AmountCents,
		arg.Currency,
		arg.CreatedAt,
	)
	return scanInvoice(row)
}

const deleteInvoice = `-- name: DeleteInvoice :one
DELETE FROM invoices
WHERE id = $1 AND business_id = $2
RETURNING id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at
`

type DeleteInvoiceParams struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
}

func (q *Queries) DeleteInvoice(ctx context.Context, arg DeleteInvoiceParams) (Invoice, error) {
	row := q.db.QueryRowContext(ctx, deleteInvoice, arg.ID, arg.BusinessID)
	return scanInvoice(row)
}

const deleteInvoicesByBusinessID = `-- name: DeleteInvoicesByBusinessID :many
DELETE FROM invoices
WHERE business_id = $1
RETURNING pdf_key
`

// DeleteInvoicesByBusinessID removes every invoice of a business and returns
// their stored PDF keys. Feedback rows cascade.
func (q *Queries) DeleteInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, deleteInvoicesByBusinessID, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var pdfKey string
		if err := rows.Scan(&pdfKey); err != nil {
			return nil, err
		}
		items = append(items, pdfKey)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const filterUnreferencedFileKeys = `-- name: FilterUnreferencedFileKeys :many
SELECT k::text FROM unnest($1::text[]) AS k
WHERE NOT EXISTS (SELECT 1 FROM invoices WHERE pdf_key = k)
  AND NOT EXISTS (SELECT 1 FROM businesses WHERE logo_key = k)
`

// FilterUnreferencedFileKeys returns the subset of keys that no invoice or
// business row points at.
func (q *Queries) FilterUnreferencedFileKeys(ctx context.Context, keys []string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, filterUnreferencedFileKeys, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getInvoiceByIDAndBusinessID = `-- name: GetInvoiceByIDAndBusinessID :one
SELECT id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at FROM invoices
WHERE id = $1 AND business_id = $2
`

type GetInvoiceByIDAndBusinessIDParams struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
}

func (q *Queries) GetInvoiceByIDAndBusinessID(ctx context.Context, arg GetInvoiceByIDAndBusinessIDParams) (Invoice, error) {
	row := q.db.QueryRowContext(ctx, getInvoiceByIDAndBusinessID, arg.ID, arg.BusinessID)
	return scanInvoice(row)
}

const getInvoiceByNumber = `-- name: GetInvoiceByNumber :one
SELECT id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at FROM invoices
WHERE business_id = $1 AND invoice_number = $2
`

type GetInvoiceByNumberParams struct {
	BusinessID    uuid.UUID `json:"business_id"`
	InvoiceNumber string    `json:"invoice_number"`
}

func (q *Queries) GetInvoiceByNumber(ctx context.Context, arg GetInvoiceByNumberParams) (Invoice, error) {
	row := q.db.QueryRowContext(ctx, getInvoiceByNumber, arg.BusinessID, arg.InvoiceNumber)
	return scanInvoice(row)
}

const listAvailableCoupons = `-- name: ListAvailableCoupons :many
SELECT id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at FROM invoices
WHERE business_id = $1
  AND coupon_code IS NOT NULL
  AND coupon_is_used = FALSE
  AND coupon_expiry > $2
ORDER BY created_at, id
`

type ListAvailableCouponsParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	Now        time.Time `json:"now"`
}

func (q *Queries) ListAvailableCoupons(ctx context.Context, arg ListAvailableCouponsParams) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, listAvailableCoupons, arg.BusinessID, arg.Now)
	if err != nil {
		return nil, err
	}
	return scanInvoices(rows)
}

const listInvoicesByBusinessID = `-- name: ListInvoicesByBusinessID :many
SELECT id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at FROM invoices
WHERE business_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`

type ListInvoicesByBusinessIDParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	Limit      int32     `json:"limit"`
	Offset     int32     `json:"offset"`
}

func (q *Queries) ListInvoicesByBusinessID(ctx context.Context, arg ListInvoicesByBusinessIDParams) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, listInvoicesByBusinessID, arg.BusinessID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return scanInvoices(rows)
}

const markFeedbackSubmitted = `-- name: MarkFeedbackSubmitted :execrows
UPDATE invoices
SET is_feedback_submitted = TRUE
WHERE id = $1 AND is_feedback_submitted = FALSE
`

func (q *Queries) MarkFeedbackSubmitted(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, markFeedbackSubmitted, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const redeemCoupon = `-- name: RedeemCoupon :one
UPDATE invoices
SET coupon_usage_count = coupon_usage_count + 1,
    coupon_is_used = (coupon_usage_count + 1 >= coupon_max_usage)
WHERE id = $1 AND business_id = $2
  AND coupon_code IS NOT NULL
  AND coupon_is_used = FALSE
RETURNING id, business_id, invoice_number, customer_name, customer_email, customer_phone, line_items, amount_cents, currency, is_feedback_submitted, pdf_key, coupon_code, coupon_description, coupon_expiry, coupon_is_used, coupon_usage_count, coupon_max_usage, created_at
`

type RedeemCouponParams struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
}

func (q *Queries) RedeemCoupon(ctx context.Context, arg RedeemCouponParams) (Invoice, error) {
	row := q.db.QueryRowContext(ctx, redeemCoupon, arg.ID, arg.BusinessID)
	return scanInvoice(row)
}

const setInvoicePDFKey = `-- name: SetInvoicePDFKey :exec
UPDATE invoices SET pdf_key = $2 WHERE id = $1
`

type SetInvoicePDFKeyParams struct {
	ID     uuid.UUID `json:"id"`
	PdfKey string    `json:"pdf_key"`
}

func (q *Queries) SetInvoicePDFKey(ctx context.Context, arg SetInvoicePDFKeyParams) error {
	_, err := q.db.ExecContext(ctx, setInvoicePDFKey, arg.ID, arg.PdfKey)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.BusinessID,
		&i.InvoiceNumber,
		&i.CustomerName,
		&i.CustomerEmail,
		&i.CustomerPhone,
		&i.LineItems,
		&i.AmountCents,
		&i.Currency,
		&i.IsFeedbackSubmitted,
		&i.PdfKey,
		&i.CouponCode,
		&i.CouponDescription,
		&i.CouponExpiry,
		&i.CouponIsUsed,
		&i.CouponUsageCount,
		&i.CouponMaxUsage,
		&i.CreatedAt,
	)
	return i, err
}

func scanInvoices(rows *sql.Rows) ([]Invoice, error) {
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
