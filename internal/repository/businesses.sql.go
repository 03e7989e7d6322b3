// source: businesses.sql

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const activatePro = `-- name: ActivatePro :one
UPDATE businesses
SET plan_tier = 'pro',
    plan_start_date = $2,
    plan_end_date = $3,
    updated_at = $2
WHERE id = $1
  AND NOT (plan_tier = 'pro' AND plan_end_date IS NOT NULL AND plan_end_date > $2)
RETURNING id, subject, username, name, email, email_verified, tax_id, tax_id_verified, logo_key, plan_tier, plan_start_date, plan_end_date, pro_trial_used, created_at, updated_at
`

type ActivateProParams struct {
	ID      uuid.UUID `json:"id"`
	Now     time.Time `json:"now"`
	EndDate time.Time `json:"end_date"`
}

func (q *Queries) ActivatePro(ctx context.Context, arg ActivateProParams) (Business, error) {
	row := q.db.QueryRowContext(ctx, activatePro, arg.ID, arg.Now, arg.EndDate)
	return scanBusiness(row)
}

const countPlansByTier = `-- name: CountPlansByTier :many
SELECT plan_tier,
       COUNT(*) FILTER (WHERE plan_tier = 'free' OR plan_end_date > $1)::bigint AS active,
       COUNT(*) FILTER (WHERE plan_tier <> 'free' AND plan_end_date <= $1)::bigint AS expired
FROM businesses
GROUP BY plan_tier
ORDER BY plan_tier
`

type CountPlansByTierRow struct {
	PlanTier string `json:"plan_tier"`
	Active   int64  `json:"active"`
	Expired  int64  `json:"expired"`
}

func (q *Queries) CountPlansByTier(ctx context.Context, now time.Time) ([]CountPlansByTierRow, error) {
	rows, err := q.db.QueryContext(ctx, countPlansByTier, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountPlansByTierRow
	for rows.Next() {
		var i CountPlansByTierRow
		if err := rows.Scan(&i.PlanTier, &i.Active, &i.Expired); err != nil {
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

const createBusiness = `-- name: CreateBusiness :one
INSERT INTO businesses (subject, username, name, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING id, subject, username, name, email, email_verified, tax_id, tax_id_verified, logo_key, plan_tier, plan_start_date, plan_end_date, pro_trial_used, created_at, updated_at
`

type CreateBusinessParams struct {
	Subject   string    `json:"subject"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (q *Queries) CreateBusiness(ctx context.Context, arg CreateBusinessParams) (Business, error) {
	row := q.db.QueryRowContext(ctx, createBusiness,
		arg.Subject,
		arg.Username,
		arg.Name,
		arg.Email,
		arg.CreatedAt,
	)
	return scanBusiness(row)
}

const createPlanEvent = `-- name: CreatePlanEvent :exec
INSERT INTO plan_events (business_id, from_tier, to_tier, order_id, created_at)
VALUES ($1, $2, $3, $4, $5)
`

type CreatePlanEventParams struct {
	BusinessID uuid.UUID      `json:"business_id"`
	FromTier   string         `json:"from_tier"`
	ToTier     string         `json:"to_tier"`
	OrderID    sql.NullString `json:"order_id"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (q *Queries) CreatePlanEvent(ctx context.Context, arg CreatePlanEventParams) error {
	_, err := q.db.ExecContext(ctx, createPlanEvent,
		arg.BusinessID,
		arg.FromTier,
		arg.ToTier,
		arg.OrderID,
		arg.CreatedAt,
	)
	return err
}

const deleteBusiness = `-- name: DeleteBusiness :execrows
DELETE FROM businesses WHERE id = $1
`

func (q *Queries) DeleteBusiness(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteBusiness, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getBusinessByID = `-- name: GetBusinessByID :one
SELECT id, subject, username, name, email, email_verified, tax_id, tax_id_verified, logo_key, plan_tier, plan_start_date, plan_end_date, pro_trial_used, created_at, updated_at FROM businesses
WHERE id = $1
`

func (q *Queries) GetBusinessByID(ctx context.Context, id uuid.UUID) (Business, error) {
	row := q.db.QueryRowContext(ctx, getBusinessByID, id)
	return scanBusiness(row)
}

const getBusinessBySubject = `-- name: GetBusinessBySubject :one
SELECT id, subject, username, name, email, email_verified, tax_id, tax_id_verified, logo_key, plan_tier, plan_start_date, plan_end_date, pro_trial_used, created_at, updated_at FROM businesses
WHERE subject = $1
`

func (q *Queries) GetBusinessBySubject(ctx context.Context, subject string) (Business, error) {
	row := q.db.QueryRowContext(ctx, getBusinessBySubject, subject)
	return scanBusiness(row)
}

const getBusinessByUsername = `-- name: GetBusinessByUsername :one
SELECT id, subject, username, name, email, email_verified, tax_id, tax_id_verified, logo_key, plan_tier, plan_start_date, plan_end_date, pro_trial_used, created_at, updated_at FROM businesses
WHERE username = $1
`

func (q *Queries) GetBusinessByUsername(ctx context.Context, username string) (Business, error) {
	row := q.db.QueryRowContext(ctx, getBusinessByUsername, username)
	return scanBusiness(row)
}

const markBusinessEmailVerified = `-- name: MarkBusinessEmailVerified :exec
UPDATE businesses
SET email_verified = TRUE, updated_at = $2
WHERE id = $1
`

type MarkBusinessEmailVerifiedParams struct {
	ID  uuid.UUID `json:"id"`
	Now time.Time `json:"now"`
}

func (q *Queries) MarkBusinessEmailVerified(ctx context.Context, arg MarkBusinessEmailVerifiedParams) error {
	_, err := q.db.ExecContext(ctx, markBusinessEmailVerified, arg.ID, arg.Now)
	return err
}

const setBusinessTaxID = `-- name: SetBusinessTaxID :exec
UPDATE businesses
SET tax_id = $2, tax_id_verified = $3, updated_at = $4
WHERE id = $1
`

type SetBusinessTaxIDParams struct {
	ID            uuid.UUID `json:"id"`
	TaxID         string    `json:"tax_id"`
	TaxIDVerified bool      `json:"tax_id_verified"`
	Now           time.Time `json:"now"`
}

func (q *Queries) SetBusinessTaxID(ctx context.Context, arg SetBusinessTaxIDParams) error {
	_, err := q.db.ExecContext(ctx, setBusinessTaxID,
		arg.ID,
		arg.TaxID,
		arg.TaxIDVerified,
		arg.Now,
	)
	return err
}

const startProTrial = `-- name: StartProTrial :one
UPDATE businesses
SET plan_tier = 'pro-trial',
    plan_start_date = $2,
    plan_end_date = $3,
    pro_trial_used = TRUE,
    updated_at = $2
WHERE id = $1
  AND pro_trial_used = FALSE
  AND NOT (plan_tier = 'pro' AND plan_end_date IS NOT NULL AND plan_end_date > $2)
RETURNING id, subject, username, name, email, email_verified, tax_id, tax_id_verified, logo_key, plan_tier, plan_start_date, plan_end_date, pro_trial_used, created_at, updated_at
`

type StartProTrialParams struct {
	ID      uuid.UUID `json:"id"`
	Now     time.Time `json:"now"`
	EndDate time.Time `json:"end_date"`
}

func (q *Queries) StartProTrial(ctx context.Context, arg StartProTrialParams) (Business, error) {
	row := q.db.QueryRowContext(ctx, startProTrial, arg.ID, arg.Now, arg.EndDate)
	return scanBusiness(row)
}

const updateBusinessLogo = `-- name: UpdateBusinessLogo :exec
UPDATE businesses
SET logo_key = $2, updated_at = $3
WHERE id = $1
`

type UpdateBusinessLogoParams struct {
	ID      uuid.UUID `json:"id"`
	LogoKey string    `json:"logo_key"`
	Now     time.Time `json:"now"`
}

func (q *Queries) UpdateBusinessLogo(ctx context.Context, arg UpdateBusinessLogoParams) error {
	_, err := q.db.ExecContext(ctx, updateBusinessLogo, arg.ID, arg.LogoKey, arg.Now)
	return err
}

const updateBusinessProfile = `-- name: UpdateBusinessProfile :one
UPDATE businesses
SET name = $2,
    email_verified = CASE WHEN email = $3 THEN email_verified ELSE FALSE END,
    email = $3,
    updated_at = $4
WHERE id = $1
RETURNING id, subject, username, name, email, email_verified, tax_id, tax_id_verified, logo_key, plan_tier, plan_start_date, plan_end_date, pro_trial_used, created_at, updated_at
`

type UpdateBusinessProfileParams struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Now   time.Time `json:"now"`
}

func (q *Queries) UpdateBusinessProfile(ctx context.Context, arg UpdateBusinessProfileParams) (Business, error) {
	row := q.db.QueryRowContext(ctx, updateBusinessProfile,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.Now,
	)
	return scanBusiness(row)
}

func scanBusiness(row rowScanner) (Business, error) {
	var i Business
	err := row.Scan(
		&i.ID,
		&i.Subject,
		&i.Username,
		&i.Name,
		&i.Email,
		&i.EmailVerified,
		&i.TaxID,
		&i.TaxIDVerified,
		&i.LogoKey,
		&i.PlanTier,
		&i.PlanStartDate,
		&i.PlanEndDate,
		&i.ProTrialUsed,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
