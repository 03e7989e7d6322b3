// source: verification.sql

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const consumeVerificationCode = `-- name: ConsumeVerificationCode :execrows
DELETE FROM verification_codes
WHERE business_id = $1 AND code_hash = $2
`

type ConsumeVerificationCodeParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	CodeHash   string    `json:"code_hash"`
}

// ConsumeVerificationCode deletes the pending code only if it is still the one
// that was checked, so a code can be used at most once.
func (q *Queries) ConsumeVerificationCode(ctx context.Context, arg ConsumeVerificationCodeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, consumeVerificationCode, arg.BusinessID, arg.CodeHash)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpiredVerificationCodes = `-- name: DeleteExpiredVerificationCodes :execrows
DELETE FROM verification_codes WHERE expires_at <= $1
`

func (q *Queries) DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredVerificationCodes, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getVerificationCode = `-- name: GetVerificationCode :one
SELECT business_id, code_hash, expires_at, created_at FROM verification_codes
WHERE business_id = $1
`

func (q *Queries) GetVerificationCode(ctx context.Context, businessID uuid.UUID) (VerificationCode, error) {
	row := q.db.QueryRowContext(ctx, getVerificationCode, businessID)
	var i VerificationCode
	err := row.Scan(
		&i.BusinessID,
		&i.CodeHash,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const upsertVerificationCode = `-- name: UpsertVerificationCode :exec
INSERT INTO verification_codes (business_id, code_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (business_id) DO UPDATE
SET code_hash = EXCLUDED.code_hash,
    expires_at = EXCLUDED.expires_at,
    created_at = EXCLUDED.created_at
`

type UpsertVerificationCodeParams struct {
	BusinessID uuid.UUID `json:"business_id"`
	CodeHash   string    `json:"code_hash"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (q *Queries) UpsertVerificationCode(ctx context.Context, arg UpsertVerificationCodeParams) error {
	_, err := q.db.ExecContext(ctx, upsertVerificationCode,
		arg.BusinessID,
		arg.CodeHash,
		arg.ExpiresAt,
		arg.CreatedAt,
	)
	return err
}
