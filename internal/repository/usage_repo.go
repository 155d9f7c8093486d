package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/shopcore/coupon-service/internal/models"
)

// uniqueViolation is the postgres error code for a unique-constraint hit.
const uniqueViolation = "23505"

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// CountForUser is the non-locking read used by the validator.
func (r *UsageRepo) CountForUser(ctx context.Context, couponID int64, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID,
	).Scan(&count)
	return count, err
}

// CountForUserTx is the same read inside the redemption transaction, so it
// sees the row inserted by InsertRedemption.
func (r *UsageRepo) CountForUserTx(ctx context.Context, tx *sql.Tx, couponID int64, userID string) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID,
	).Scan(&count)
	return count, err
}

// InsertRedemption records one redemption. The unique constraint on
// (coupon_id, order_id) makes redemption idempotent per order: a conflict
// comes back as models.ErrAlreadyRedeemed.
func (r *UsageRepo) InsertRedemption(ctx context.Context, tx *sql.Tx, couponID int64, userID, orderID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO coupon_redemptions (coupon_id, user_id, order_id, redeemed_at) VALUES ($1, $2, $3, $4)`,
		couponID, userID, orderID, time.Now().UTC(),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return models.ErrAlreadyRedeemed
	}
	return err
}

// IncrementUsage bumps the coupon's global redemption counter. Callers hold
// the coupon row lock, so the read-check-increment sequence is atomic.
func (r *UsageRepo) IncrementUsage(ctx context.Context, tx *sql.Tx, couponID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE coupons SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`,
		couponID,
	)
	return err
}
