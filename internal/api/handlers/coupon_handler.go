package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/shopcore/coupon-service/internal/cache"
	"github.com/shopcore/coupon-service/internal/logger"
	"github.com/shopcore/coupon-service/internal/models"
)

// Services consumed by the handler (interfaces to allow stubbing in tests).
type ValidationService interface {
	Validate(ctx context.Context, req models.ValidationRequest) (models.ValidationResult, error)
	Applicable(ctx context.Context, req models.ValidationRequest) ([]string, error)
}

type RedemptionService interface {
	Redeem(ctx context.Context, code, userID, orderID string) error
}

type CouponAdminStore interface {
	Create(ctx context.Context, meta *models.CouponMeta) (int64, error)
}

// --- Request / Response DTOs ---

type validateRequest struct {
	CouponCode  string          `json:"coupon_code" validate:"required"`
	UserID      string          `json:"user_id" validate:"required"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	CategoryID  *string         `json:"category_id,omitempty"`
	ProductID   *string         `json:"product_id,omitempty"`
}

type redeemRequest struct {
	CouponCode string `json:"coupon_code" validate:"required"`
	UserID     string `json:"user_id" validate:"required"`
	OrderID    string `json:"order_id" validate:"required"`
}

type createCouponRequest struct {
	Code              string           `json:"code" validate:"required"`
	DiscountType      string           `json:"discount_type" validate:"required"`
	DiscountValue     decimal.Decimal  `json:"discount_value"`
	MinPurchaseAmount decimal.Decimal  `json:"min_purchase_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	StartDate         time.Time        `json:"start_date" validate:"required"`
	EndDate           time.Time        `json:"end_date" validate:"required"`
	UsageLimit        *int             `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
	PerUserLimit      *int             `json:"per_user_limit,omitempty" validate:"omitempty,min=1"`
	IsActive          *bool            `json:"is_active,omitempty"`
	Categories        []string         `json:"applicable_categories,omitempty"`
	Products          []string         `json:"applicable_products,omitempty"`
}

type applicableResponse struct {
	ApplicableCoupons []string `json:"applicable_coupons"`
}

type CouponHandler struct {
	svc      ValidationService
	redeemer RedemptionService
	admin    CouponAdminStore
	cache    *cache.CouponCache
	validate *validator.Validate
	log      *logger.Logger
}

func NewCouponHandler(svc ValidationService, redeemer RedemptionService, admin CouponAdminStore, couponCache *cache.CouponCache, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		svc:      svc,
		redeemer: redeemer,
		admin:    admin,
		cache:    couponCache,
		validate: validator.New(),
		log:      log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (h *CouponHandler) decodeAndCheck(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// ValidateCoupon handles POST /coupons/validate. Business failures are 200
// responses with valid=false; 400 is reserved for malformed requests.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decodeAndCheck(w, r, &req) {
		return
	}
	if !req.OrderAmount.IsPositive() {
		writeError(w, http.StatusBadRequest, "order_amount must be positive")
		return
	}

	result, err := h.svc.Validate(r.Context(), models.ValidationRequest{
		Code:        req.CouponCode,
		UserID:      req.UserID,
		OrderAmount: req.OrderAmount,
		CategoryID:  req.CategoryID,
		ProductID:   req.ProductID,
	})
	if err != nil {
		h.log.Errorw("validate coupon", "code", req.CouponCode, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RedeemCoupon handles POST /coupons/redeem, called by checkout after
// payment succeeds. Replays of an already-recorded order are reported as
// success-shaped 200s so retrying callers don't treat them as faults.
func (h *CouponHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !h.decodeAndCheck(w, r, &req) {
		return
	}

	err := h.redeemer.Redeem(r.Context(), req.CouponCode, req.UserID, req.OrderID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "redeemed"})
	case errors.Is(err, models.ErrAlreadyRedeemed):
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_redeemed"})
	case errors.Is(err, models.ErrCouponNotFound):
		writeError(w, http.StatusNotFound, "coupon_not_found")
	case errors.Is(err, models.ErrUsageLimitReached), errors.Is(err, models.ErrPerUserLimitReached):
		writeError(w, http.StatusConflict, "usage_limit_reached")
	default:
		h.log.Errorw("redeem coupon", "code", req.CouponCode, "order_id", req.OrderID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// GetApplicableCoupons handles GET /coupons/applicable with query params
// user_id, order_amount, category_id, product_id.
func (h *CouponHandler) GetApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	amount, err := decimal.NewFromString(q.Get("order_amount"))
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "order_amount must be a positive number")
		return
	}

	req := models.ValidationRequest{UserID: userID, OrderAmount: amount}
	if v := q.Get("category_id"); v != "" {
		req.CategoryID = &v
	}
	if v := q.Get("product_id"); v != "" {
		req.ProductID = &v
	}

	codes, err := h.svc.Applicable(r.Context(), req)
	if err != nil {
		h.log.Errorw("list applicable coupons", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, applicableResponse{ApplicableCoupons: codes})
}

// CreateCoupon handles POST /admin/coupons.
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if !h.decodeAndCheck(w, r, &req) {
		return
	}

	discountType := models.DiscountType(req.DiscountType)
	if !discountType.Valid() {
		writeError(w, http.StatusBadRequest, "discount_type must be PERCENTAGE or FIXED_AMOUNT")
		return
	}
	if !req.DiscountValue.IsPositive() {
		writeError(w, http.StatusBadRequest, "discount_value must be positive")
		return
	}
	if discountType == models.DiscountPercentage && req.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, http.StatusBadRequest, "percentage discount cannot exceed 100")
		return
	}
	if !req.EndDate.After(req.StartDate) {
		writeError(w, http.StatusBadRequest, "end_date must be after start_date")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	meta := &models.CouponMeta{
		Coupon: models.Coupon{
			Code:              req.Code,
			DiscountType:      discountType,
			DiscountValue:     req.DiscountValue,
			MinPurchaseAmount: req.MinPurchaseAmount,
			MaxDiscountAmount: req.MaxDiscountAmount,
			StartDate:         req.StartDate,
			EndDate:           req.EndDate,
			UsageLimit:        req.UsageLimit,
			PerUserLimit:      req.PerUserLimit,
			IsActive:          isActive,
		},
		ApplicableCategories: req.Categories,
		ApplicableProducts:   req.Products,
	}

	id, err := h.admin.Create(r.Context(), meta)
	if err != nil {
		h.log.Errorw("create coupon", "code", req.Code, "error", err)
		writeError(w, http.StatusInternalServerError, "failed_create_coupon")
		return
	}

	// A stale entry could mask the new definition until TTL expiry.
	h.cache.Delete(req.Code)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "coupon_created",
		"coupon_id": id,
	})
}
