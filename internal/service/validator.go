package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopcore/coupon-service/internal/concurrency"
	"github.com/shopcore/coupon-service/internal/logger"
	"github.com/shopcore/coupon-service/internal/models"
)

// Stores required by the validator (interfaces to allow mocking).
type CouponStore interface {
	// FindByCode returns nil, nil when no coupon has the given code.
	FindByCode(ctx context.Context, code string) (*models.CouponMeta, error)
	ListActiveCodes(ctx context.Context) ([]string, error)
}

type UsageStore interface {
	CountForUser(ctx context.Context, couponID int64, userID string) (int, error)
}

// Clock abstracts time.Now so window checks are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Failure messages returned to callers verbatim.
const (
	MsgNotFound          = "Coupon not found"
	MsgNotActive         = "Coupon is not active"
	MsgNotYetValid       = "Coupon is not yet valid"
	MsgExpired           = "Coupon has expired"
	MsgUsageLimitReached = "Coupon usage limit reached"
	MsgPerUserLimit      = "You have already used this coupon the maximum number of times"
	MsgWrongCategory     = "Coupon not applicable to this category"
	MsgWrongProduct      = "Coupon not applicable to this product"
	MsgWrongScope        = "Coupon not applicable to this product or category"
	MsgApplied           = "Coupon applied successfully"
)

// Validator decides whether a coupon applies to an order and computes the
// discount. It is read-only: usage counts are mutated only by the Redeemer,
// after payment. Safe for concurrent use.
type Validator struct {
	coupons CouponStore
	usage   UsageStore
	clock   Clock
	log     *logger.Logger
}

func NewValidator(coupons CouponStore, usage UsageStore, clock Clock, log *logger.Logger) *Validator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Validator{coupons: coupons, usage: usage, clock: clock, log: log}
}

// Validate runs the rule chain in strict order, short-circuiting on the first
// failure. Business failures come back as negative results; only store faults
// surface as errors.
func (v *Validator) Validate(ctx context.Context, req models.ValidationRequest) (models.ValidationResult, error) {
	meta, err := v.coupons.FindByCode(ctx, req.Code)
	if err != nil {
		return models.ValidationResult{}, fmt.Errorf("find coupon %q: %w", req.Code, err)
	}
	if meta == nil {
		return models.Invalid(MsgNotFound), nil
	}

	if !meta.IsActive {
		return models.Invalid(MsgNotActive), nil
	}

	now := v.clock.Now()
	if now.Before(meta.StartDate) {
		return models.Invalid(MsgNotYetValid), nil
	}
	if now.After(meta.EndDate) {
		return models.Invalid(MsgExpired), nil
	}

	if meta.UsageLimit != nil && meta.UsageCount >= *meta.UsageLimit {
		return models.Invalid(MsgUsageLimitReached), nil
	}

	if meta.PerUserLimit != nil {
		used, err := v.usage.CountForUser(ctx, meta.ID, req.UserID)
		if err != nil {
			return models.ValidationResult{}, fmt.Errorf("count redemptions for user %s: %w", req.UserID, err)
		}
		if used >= *meta.PerUserLimit {
			return models.Invalid(MsgPerUserLimit), nil
		}
	}

	// A non-positive order amount always fails the minimum-purchase check,
	// even when the minimum is zero.
	if !req.OrderAmount.IsPositive() || req.OrderAmount.LessThan(meta.MinPurchaseAmount) {
		return models.Invalid(fmt.Sprintf("Minimum purchase amount of %s required", meta.MinPurchaseAmount)), nil
	}

	if msg, ok := matchScope(meta, req.CategoryID, req.ProductID); !ok {
		return models.Invalid(msg), nil
	}

	return models.ValidationResult{
		Valid:          true,
		DiscountAmount: meta.Discount(req.OrderAmount),
		Message:        MsgApplied,
	}, nil
}

// matchScope checks the coupon's applicability scopes. Category and product
// sets are alternative match paths: membership in either passes. The check is
// skipped when the coupon has no scopes or the caller supplied no identifiers.
func matchScope(meta *models.CouponMeta, categoryID, productID *string) (string, bool) {
	hasCats := len(meta.ApplicableCategories) > 0
	hasProds := len(meta.ApplicableProducts) > 0
	if !hasCats && !hasProds {
		return "", true
	}
	if categoryID == nil && productID == nil {
		return "", true
	}

	if hasCats && categoryID != nil && contains(meta.ApplicableCategories, *categoryID) {
		return "", true
	}
	if hasProds && productID != nil && contains(meta.ApplicableProducts, *productID) {
		return "", true
	}

	switch {
	case hasCats && hasProds:
		return MsgWrongScope, false
	case hasCats:
		return MsgWrongCategory, false
	default:
		return MsgWrongProduct, false
	}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// applicableWorkers bounds the fan-out when checking many codes at once.
const applicableWorkers = 4

// Applicable returns the codes of active coupons that would validate right
// now for the given user and order. Codes are checked concurrently; a store
// fault on one code drops that code rather than failing the whole listing.
func (v *Validator) Applicable(ctx context.Context, req models.ValidationRequest) ([]string, error) {
	codes, err := v.coupons.ListActiveCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active coupons: %w", err)
	}

	results := make([]bool, len(codes))
	concurrency.FanOut(ctx, applicableWorkers, len(codes), func(ctx context.Context, i int) {
		r := req
		r.Code = codes[i]
		res, err := v.Validate(ctx, r)
		if err != nil {
			v.log.Warnw("applicability check failed", "code", codes[i], "error", err)
			return
		}
		results[i] = res.Valid
	})

	applicable := make([]string, 0, len(codes))
	for i, ok := range results {
		if ok {
			applicable = append(applicable, codes[i])
		}
	}
	return applicable, nil
}
