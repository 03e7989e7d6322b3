// source: feedback.sql

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const countFeedbackByBusinessID = `-- name: CountFeedbackByBusinessID :one
SELECT COUNT(*) FROM feedback WHERE business_id = $1
`

func (q *Queries) CountFeedbackByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countFeedbackByBusinessID, businessID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createFeedback = `-- name: CreateFeedback :one
INSERT INTO feedback (
    business_id, invoice_id, satisfaction, communication, quality_of_service,
    value_for_money, recommend, overall, comment, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, business_id, invoice_id, satisfaction, communication, quality_of_service, value_for_money, recommend, overall, comment, created_at
`

type CreateFeedbackParams struct {
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

func (q *Queries) CreateFeedback(ctx context.Context, arg CreateFeedbackParams) (Feedback, error) {
	row := q.db.QueryRowContext(ctx, createFeedback,
		arg.BusinessID,
		arg.InvoiceID,
		arg.Satisfaction,
		arg.Communication,
		arg.QualityOfService,
		arg.ValueForMoney,
		arg.Recommend,
		arg.Overall,
		arg.Comment,
		arg.CreatedAt,
	)
	var i Feedback
	err := row.Scan(
		&i.ID,
		&i.BusinessID,
		&i.InvoiceID,
		&i.Satisfaction,
		&i.Communication,
		&i.QualityOfService,
		&i.ValueForMoney,
		&i.Recommend,
		&i.Overall,
		&i.Comment,
		&i.CreatedAt,
	)
	return i, err
}

const getFeedbackSummary = `-- name: GetFeedbackSummary :one
SELECT COUNT(*)::bigint AS count,
       COALESCE(AVG(satisfaction), 0)::float8 AS avg_satisfaction,
       COALESCE(AVG(communication), 0)::float8 AS avg_communication,
       COALESCE(AVG(quality_of_service), 0)::float8 AS avg_quality_of_service,
       COALESCE(AVG(value_for_money), 0)::float8 AS avg_value_for_money,
       COALESCE(AVG(recommend), 0)::float8 AS avg_recommend,
       COALESCE(AVG(overall), 0)::float8 AS avg_overall
FROM feedback
WHERE business_id = $1
`

type GetFeedbackSummaryRow struct {
	Count               int64   `json:"count"`
	AvgSatisfaction     float64 `json:"avg_satisfaction"`
	AvgCommunication    float64 `json:"avg_communication"`
	AvgQualityOfService float64 `json:"avg_quality_of_service"`
	AvgValueForMoney    float64 `json:"avg_value_for_money"`
	AvgRecommend        float64 `json:"avg_recommend"`
	AvgOverall          float64 `json:"avg_overall"`
}

func (q *Queries) GetFeedbackSummary(ctx context.Context, businessID uuid.UUID) (GetFeedbackSummaryRow, error) {
	row := q.db.QueryRowContext(ctx, getFeedbackSummary, businessID)
	var i GetFeedbackSummaryRow
	err := row.Scan(
		&i.Count,
		&i.AvgSatisfaction,
		&i.AvgCommunication,
		&i.AvgQualityOfService,
		&i.AvgValueForMoney,
		&i.AvgRecommend,
		&i.AvgOverall,
	)
	return i, err
}

const getFeedbackTrend = `-- name: GetFeedbackTrend :many
SELECT date_trunc('day', created_at)::timestamptz AS day,
       COUNT(*)::bigint AS count,
       AVG(overall)::float8 AS avg_overall
FROM feedback
WHERE business_id = $1 AND created_at >= $2
GROUP BY 1
ORDER BY 1
`

type GetFeedbackTrendParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	Since      time.Time `json:"since"`
}

type GetFeedbackTrendRow struct {
	Day        time.Time `json:"day"`
	Count      int64     `json:"count"`
	AvgOverall float64   `json:"avg_overall"`
}

func (q *Queries) GetFeedbackTrend(ctx context.Context, arg GetFeedbackTrendParams) ([]GetFeedbackTrendRow, error) {
	rows, err := q.db.QueryContext(ctx, getFeedbackTrend, arg.BusinessID, arg.Since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetFeedbackTrendRow
	for rows.Next() {
		var i GetFeedbackTrendRow
		if err := rows.Scan(&i.Day, &i.Count, &i.AvgOverall); err != nil {
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

const listFeedbackByBusinessID = `-- name: ListFeedbackByBusinessID :many
SELECT f.id, f.business_id, f.invoice_id, f.satisfaction, f.communication, f.quality_of_service, f.value_for_money, f.recommend, f.overall, f.comment, f.created_at,
       i.invoice_number, i.customer_name
FROM feedback f
JOIN invoices i ON i.id = f.invoice_id
WHERE f.business_id = $1
ORDER BY f.created_at DESC, f.id
LIMIT $2 OFFSET $3
`

type ListFeedbackByBusinessIDParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	Limit      int32     `json:"limit"`
	Offset     int32     `json:"offset"`
}

type ListFeedbackByBusinessIDRow struct {
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
	InvoiceNumber    string    `json:"invoice_number"`
	CustomerName     string    `json:"customer_name"`
}

func (q *Queries) ListFeedbackByBusinessID(ctx context.Context, arg ListFeedbackByBusinessIDParams) ([]ListFeedbackByBusinessIDRow, error) {
	rows, err := q.db.QueryContext(ctx, listFeedbackByBusinessID, arg.BusinessID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListFeedbackByBusinessIDRow
	for rows.Next() {
		var i ListFeedbackByBusinessIDRow
		if err := rows.Scan(
			&i.ID,
			&i.BusinessID,
			&i.InvoiceID,
			&i.Satisfaction,
			&i.Communication,
			&i.QualityOfService,
			&i.ValueForMoney,
			&i.Recommend,
			&i.Overall,
			&i.Comment,
			&i.CreatedAt,
			&i.InvoiceNumber,
			&i.CustomerName,
		); err != nil {
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

const listRecentFeedback = `-- name: ListRecentFeedback :many
SELECT id, business_id, invoice_id, satisfaction, communication, quality_of_service, value_for_money, recommend, overall, comment, created_at FROM feedback
WHERE business_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListRecentFeedbackParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	Limit      int32     `json:"limit"`
}

func (q *Queries) ListRecentFeedback(ctx context.Context, arg ListRecentFeedbackParams) ([]Feedback, error) {
	rows, err := q.db.QueryContext(ctx, listRecentFeedback, arg.BusinessID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Feedback
	for rows.Next() {
		var i Feedback
		if err := rows.Scan(
			&i.ID,
			&i.BusinessID,
			&i.InvoiceID,
			&i.Satisfaction,
			&i.Communication,
			&i.QualityOfService,
			&i.ValueForMoney,
			&i.Recommend,
			&i.Overall,
			&i.Comment,
			&i.CreatedAt,
		); err != nil {
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
