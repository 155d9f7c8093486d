package models

import "github.com/shopspring/decimal"

// ValidationRequest is the input to a single validation pass. CategoryID and
// ProductID are optional; when both are nil the applicability-scope check is
// skipped.
type ValidationRequest struct {
	Code        string
	UserID      string
	OrderAmount decimal.Decimal
	CategoryID  *string
	ProductID   *string
}

// ValidationResult is the outcome of a validation pass. Every business-rule
// failure is an ordinary negative result, never an error; DiscountAmount is
// zero unless Valid.
type ValidationResult struct {
	Valid          bool            `json:"valid"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Message        string          `json:"message"`
}

func Invalid(message string) ValidationResult {
	return ValidationResult{Valid: false, DiscountAmount: decimal.Zero, Message: message}
}
