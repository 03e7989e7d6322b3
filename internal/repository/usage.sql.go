// source: usage.sql

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const decrementUsage = `-- name: DecrementUsage :execrows
UPDATE usage_trackers
SET daily_count = daily_count - 1
WHERE business_id = $1 AND usage_type = $2 AND daily_count > 0
`

type DecrementUsageParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	UsageType  string    `json:"usage_type"`
}

func (q *Queries) DecrementUsage(ctx context.Context, arg DecrementUsageParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, decrementUsage, arg.BusinessID, arg.UsageType)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteUsageTrackers = `-- name: DeleteUsageTrackers :exec
DELETE FROM usage_trackers WHERE business_id = $1
`

func (q *Queries) DeleteUsageTrackers(ctx context.Context, businessID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteUsageTrackers, businessID)
	return err
}

const ensureUsageTracker = `-- name: EnsureUsageTracker :exec
INSERT INTO usage_trackers (business_id, usage_type, daily_count, last_reset)
VALUES ($1, $2, 0, $3)
ON CONFLICT (business_id, usage_type) DO NOTHING
`

type EnsureUsageTrackerParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	UsageType  string    `json:"usage_type"`
	LastReset  time.Time `json:"last_reset"`
}

func (q *Queries) EnsureUsageTracker(ctx context.Context, arg EnsureUsageTrackerParams) error {
	_, err := q.db.ExecContext(ctx, ensureUsageTracker, arg.BusinessID, arg.UsageType, arg.LastReset)
	return err
}

const getUsageTracker = `-- name: GetUsageTracker :one
SELECT id, business_id, usage_type, daily_count, last_reset FROM usage_trackers
WHERE business_id = $1 AND usage_type = $2
`

type GetUsageTrackerParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	UsageType  string    `json:"usage_type"`
}

func (q *Queries) GetUsageTracker(ctx context.Context, arg GetUsageTrackerParams) (UsageTracker, error) {
	row := q.db.QueryRowContext(ctx, getUsageTracker, arg.BusinessID, arg.UsageType)
	var i UsageTracker
	err := row.Scan(
		&i.ID,
		&i.BusinessID,
		&i.UsageType,
		&i.DailyCount,
		&i.LastReset,
	)
	return i, err
}

const incrementUsageIfBelow = `-- name: IncrementUsageIfBelow :one
UPDATE usage_trackers
SET daily_count = daily_count + 1
WHERE business_id = $1 AND usage_type = $2 AND daily_count < $3
RETURNING id, business_id, usage_type, daily_count, last_reset
`

type IncrementUsageIfBelowParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	UsageType  string    `json:"usage_type"`
	DailyLimit int32     `json:"daily_limit"`
}

func (q *Queries) IncrementUsageIfBelow(ctx context.Context, arg IncrementUsageIfBelowParams) (UsageTracker, error) {
	row := q.db.QueryRowContext(ctx, incrementUsageIfBelow, arg.BusinessID, arg.UsageType, arg.DailyLimit)
	var i UsageTracker
	err := row.Scan(
		&i.ID,
		&i.BusinessID,
		&i.UsageType,
		&i.DailyCount,
		&i.LastReset,
	)
	return i, err
}

const listUsageTrackers = `-- name: ListUsageTrackers :many
SELECT id, business_id, usage_type, daily_count, last_reset FROM usage_trackers
WHERE business_id = $1
ORDER BY usage_type
`

func (q *Queries) ListUsageTrackers(ctx context.Context, businessID uuid.UUID) ([]UsageTracker, error) {
	rows, err := q.db.QueryContext(ctx, listUsageTrackers, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UsageTracker
	for rows.Next() {
		var i UsageTracker
		if err := rows.Scan(
			&i.ID,
			&i.BusinessID,
			&i.UsageType,
			&i.DailyCount,
			&i.LastReset,
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

const resetUsageTrackerIfElapsed = `-- name: ResetUsageTrackerIfElapsed :execrows
UPDATE usage_trackers
SET daily_count = 0, last_reset = $3
WHERE business_id = $1 AND usage_type = $2 AND last_reset < $4
`

type ResetUsageTrackerIfElapsedParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	UsageType  string    `json:"usage_type"`
	Now        time.Time `json:"now"`
	Cutoff     time.Time `json:"cutoff"`
}

func (q *Queries) ResetUsageTrackerIfElapsed(ctx context.Context, arg ResetUsageTrackerIfElapsedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, resetUsageTrackerIfElapsed,
		arg.BusinessID,
		arg.UsageType,
		arg.Now,
		arg.Cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
