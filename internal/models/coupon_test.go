package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestCouponDiscount(t *testing.T) {
	tests := []struct {
		name   string
		dtype  DiscountType
		value  string
		cap    string // "" = no cap
		amount string
		want   string
	}{
		{"percentage plain", DiscountPercentage, "10", "", "100.00", "10.00"},
		{"percentage capped", DiscountPercentage, "50", "50.00", "200.00", "50.00"},
		{"percentage cap not reached", DiscountPercentage, "5", "50.00", "200.00", "10.00"},
		{"percentage rounds half up", DiscountPercentage, "12.5", "", "99.99", "12.50"},
		{"fixed below total", DiscountFixed, "50.00", "", "80.00", "50.00"},
		{"fixed clamped to total", DiscountFixed, "50.00", "", "30.00", "30.00"},
		{"fixed cap is ignored", DiscountFixed, "20.00", "5.00", "80.00", "20.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Coupon{DiscountType: tt.dtype, DiscountValue: mustDec(t, tt.value)}
			if tt.cap != "" {
				capAmount := mustDec(t, tt.cap)
				c.MaxDiscountAmount = &capAmount
			}
			got := c.Discount(mustDec(t, tt.amount))
			assert.True(t, got.Equal(mustDec(t, tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestDiscountTypeValid(t *testing.T) {
	assert.True(t, DiscountPercentage.Valid())
	assert.True(t, DiscountFixed.Valid())
	assert.False(t, DiscountType("BOGO").Valid())
}
