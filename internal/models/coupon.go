package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType is a closed enum; Discount switches over it exhaustively.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED_AMOUNT"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

type Coupon struct {
	ID                int64
	Code              string // unique, case-sensitive
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal // percent (0-100] or currency amount
	MinPurchaseAmount decimal.Decimal
	MaxDiscountAmount *decimal.Decimal // cap for PERCENTAGE, ignored for FIXED_AMOUNT
	StartDate         time.Time        // validity window, inclusive
	EndDate           time.Time
	UsageLimit        *int // nil = unbounded
	UsageCount        int  // incremented by redemption only, never by validation
	PerUserLimit      *int // nil = unbounded
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CouponMeta is the read model for validation: the coupon row plus its
// applicability scopes. Empty scope slices mean the coupon applies everywhere.
type CouponMeta struct {
	Coupon
	ApplicableCategories []string
	ApplicableProducts   []string
}

var oneHundred = decimal.NewFromInt(100)

// Discount computes the discount for the given order amount, rounded half-up
// to 2 places. A fixed discount never exceeds the order amount; a percentage
// discount is capped by MaxDiscountAmount when set.
func (c *Coupon) Discount(orderAmount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		d = orderAmount.Mul(c.DiscountValue).Div(oneHundred)
		if c.MaxDiscountAmount != nil && d.GreaterThan(*c.MaxDiscountAmount) {
			d = *c.MaxDiscountAmount
		}
	case DiscountFixed:
		d = c.DiscountValue
		if d.GreaterThan(orderAmount) {
			d = orderAmount
		}
	}
	return d.Round(2)
}
