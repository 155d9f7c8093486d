package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shopcore/coupon-service/internal/models"
)

type CouponRepo struct {
	db *sql.DB
}

func NewCouponRepo(db *sql.DB) *CouponRepo {
	return &CouponRepo{db: db}
}

const couponColumns = `id, code, discount_type, discount_value, min_purchase_amount,
	max_discount_amount, start_date, end_date, usage_limit, usage_count,
	per_user_limit, is_active, created_at, updated_at`

func scanCoupon(row *sql.Row) (*models.Coupon, error) {
	var (
		c           models.Coupon
		maxDiscount decimal.NullDecimal
		usageLimit  sql.NullInt64
		perUser     sql.NullInt64
	)
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinPurchaseAmount,
		&maxDiscount,
		&c.StartDate,
		&c.EndDate,
		&usageLimit,
		&c.UsageCount,
		&perUser,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if maxDiscount.Valid {
		c.MaxDiscountAmount = &maxDiscount.Decimal
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		c.UsageLimit = &n
	}
	if perUser.Valid {
		n := int(perUser.Int64)
		c.PerUserLimit = &n
	}
	return &c, nil
}

// FindByCode loads a coupon and its applicability scopes. Returns nil, nil
// when the code does not exist.
func (r *CouponRepo) FindByCode(ctx context.Context, code string) (*models.CouponMeta, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	categories, err := r.scopeValues(ctx, `SELECT category_id FROM coupon_applicable_categories WHERE coupon_id = $1`, c.ID)
	if err != nil {
		return nil, err
	}
	products, err := r.scopeValues(ctx, `SELECT product_id FROM coupon_applicable_products WHERE coupon_id = $1`, c.ID)
	if err != nil {
		return nil, err
	}

	return &models.CouponMeta{
		Coupon:               *c,
		ApplicableCategories: categories,
		ApplicableProducts:   products,
	}, nil
}

func (r *CouponRepo) scopeValues(ctx context.Context, query string, couponID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, couponID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ListActiveCodes returns the codes of coupons whose is_active flag is set.
// Window and limit checks are left to the validator.
func (r *CouponRepo) ListActiveCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code FROM coupons WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// LockCoupon loads the coupon row FOR UPDATE inside the redemption
// transaction, serializing concurrent redemptions of the same coupon.
func (r *CouponRepo) LockCoupon(ctx context.Context, tx *sql.Tx, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`

	c, err := scanCoupon(tx.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrCouponNotFound
		}
		return nil, err
	}
	return c, nil
}

// Create inserts a coupon with its scopes in one transaction and returns the
// new coupon ID.
func (r *CouponRepo) Create(ctx context.Context, meta *models.CouponMeta) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	insert := `
		INSERT INTO coupons
			(code, discount_type, discount_value, min_purchase_amount, max_discount_amount,
			 start_date, end_date, usage_limit, usage_count, per_user_limit, is_active,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$10,NOW(),NOW())
		RETURNING id`

	var maxDiscount decimal.NullDecimal
	if meta.MaxDiscountAmount != nil {
		maxDiscount = decimal.NullDecimal{Decimal: *meta.MaxDiscountAmount, Valid: true}
	}
	var usageLimit, perUser sql.NullInt64
	if meta.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: int64(*meta.UsageLimit), Valid: true}
	}
	if meta.PerUserLimit != nil {
		perUser = sql.NullInt64{Int64: int64(*meta.PerUserLimit), Valid: true}
	}

	var id int64
	err = tx.QueryRowContext(ctx, insert,
		meta.Code,
		meta.DiscountType,
		meta.DiscountValue,
		meta.MinPurchaseAmount,
		maxDiscount,
		meta.StartDate,
		meta.EndDate,
		usageLimit,
		perUser,
		meta.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert coupon: %w", err)
	}

	for _, cat := range meta.ApplicableCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO coupon_applicable_categories (coupon_id, category_id) VALUES ($1, $2)`, id, cat); err != nil {
			return 0, fmt.Errorf("insert category scope: %w", err)
		}
	}
	for _, prod := range meta.ApplicableProducts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO coupon_applicable_products (coupon_id, product_id) VALUES ($1, $2)`, id, prod); err != nil {
			return 0, fmt.Errorf("insert product scope: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit coupon: %w", err)
	}
	committed = true
	return id, nil
}
