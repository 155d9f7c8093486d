package models

import "errors"

// Domain errors shared by the service and repository layers. Validation
// failures are never errors; these cover redemption and lookups only.
var (
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrAlreadyRedeemed     = errors.New("order already redeemed this coupon")
	ErrUsageLimitReached   = errors.New("coupon usage limit reached")
	ErrPerUserLimitReached = errors.New("per-user redemption limit reached")
)
