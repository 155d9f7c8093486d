package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopcore/coupon-service/internal/logger"
	"github.com/shopcore/coupon-service/internal/models"
)

// TxRunner runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise. pkg/db provides the *sql.DB implementation; tests
// substitute one that hands fn a nil tx the fake stores ignore.
type TxRunner interface {
	RunTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error
}

// CouponLocker loads a coupon row FOR UPDATE inside the redemption
// transaction, or models.ErrCouponNotFound.
type CouponLocker interface {
	LockCoupon(ctx context.Context, tx *sql.Tx, code string) (*models.Coupon, error)
}

// RedemptionStore is the transactional usage store behind Redeem. Methods
// take the open transaction so the whole redemption commits or rolls back as
// one.
type RedemptionStore interface {
	// InsertRedemption records one redemption; models.ErrAlreadyRedeemed when
	// this (coupon, order) pair was already recorded.
	InsertRedemption(ctx context.Context, tx *sql.Tx, couponID int64, userID, orderID string) error
	CountForUserTx(ctx context.Context, tx *sql.Tx, couponID int64, userID string) (int, error)
	IncrementUsage(ctx context.Context, tx *sql.Tx, couponID int64) error
}

// Redeemer consumes coupon usage after payment succeeds. Redemption is
// idempotent per (coupon, order): replays return models.ErrAlreadyRedeemed
// without changing any counts.
type Redeemer struct {
	txs      TxRunner
	coupons  CouponLocker
	usage    RedemptionStore
	deadline time.Duration
	log      *logger.Logger
}

func NewRedeemer(txs TxRunner, coupons CouponLocker, usage RedemptionStore, deadline time.Duration, log *logger.Logger) *Redeemer {
	if deadline <= 0 {
		deadline = 8 * time.Second
	}
	return &Redeemer{txs: txs, coupons: coupons, usage: usage, deadline: deadline, log: log}
}

// Redeem atomically records one redemption and bumps the coupon's usage
// count. The coupon row lock makes the limit checks and the increment a
// single serializable step, so concurrent checkouts cannot over-redeem.
func (r *Redeemer) Redeem(ctx context.Context, code, userID, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	err := r.txs.RunTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx *sql.Tx) error {
		c, err := r.coupons.LockCoupon(ctx, tx, code)
		if err != nil {
			if errors.Is(err, models.ErrCouponNotFound) {
				return err
			}
			return fmt.Errorf("lock coupon %q: %w", code, err)
		}

		// Insert before the limit checks: a replay of an already-counted
		// redemption must come back as ErrAlreadyRedeemed, not as a limit hit
		// caused by its own earlier success.
		if err := r.usage.InsertRedemption(ctx, tx, c.ID, userID, orderID); err != nil {
			if errors.Is(err, models.ErrAlreadyRedeemed) {
				return err
			}
			return fmt.Errorf("insert redemption: %w", err)
		}

		if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
			return models.ErrUsageLimitReached
		}

		if c.PerUserLimit != nil {
			count, err := r.usage.CountForUserTx(ctx, tx, c.ID, userID)
			if err != nil {
				return fmt.Errorf("count redemptions: %w", err)
			}
			// count includes the row inserted above.
			if count > *c.PerUserLimit {
				return models.ErrPerUserLimitReached
			}
		}

		if err := r.usage.IncrementUsage(ctx, tx, c.ID); err != nil {
			return fmt.Errorf("increment usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Infow("coupon redeemed", "code", code, "user_id", userID, "order_id", orderID)
	return nil
}
