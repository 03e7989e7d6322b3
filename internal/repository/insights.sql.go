// source: insights.sql

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const createInsight = `-- name: CreateInsight :one
INSERT INTO insights (business_id, summary, details, model, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, business_id, summary, details, model, created_at
`

type CreateInsightParams struct {
	BusinessID uuid.UUID             `json:"business_id"`
	Summary    string                `json:"summary"`
	Details    pqtype.NullRawMessage `json:"details"`
	Model      string                `json:"model"`
	CreatedAt  time.Time             `json:"created_at"`
}

func (q *Queries) CreateInsight(ctx context.Context, arg CreateInsightParams) (Insight, error) {
	row := q.db.QueryRowContext(ctx, createInsight,
		arg.BusinessID,
		arg.Summary,
		arg.Details,
		arg.Model,
		arg.CreatedAt,
	)
	var i Insight
	err := row.Scan(
		&i.ID,
		&i.BusinessID,
		&i.Summary,
		&i.Details,
		&i.Model,
		&i.CreatedAt,
	)
	return i, err
}

const getLatestInsight = `-- name: GetLatestInsight :one
SELECT id, business_id, summary, details, model, created_at FROM insights
WHERE business_id = $1
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetLatestInsight(ctx context.Context, businessID uuid.UUID) (Insight, error) {
	row := q.db.QueryRowContext(ctx, getLatestInsight, businessID)
	var i Insight
	err := row.Scan(
		&i.ID,
		&i.BusinessID,
		&i.Summary,
		&i.Details,
		&i.Model,
		&i.CreatedAt,
	)
	return i, err
}
