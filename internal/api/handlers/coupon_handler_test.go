package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/coupon-service/internal/cache"
	"github.com/shopcore/coupon-service/internal/logger"
	"github.com/shopcore/coupon-service/internal/models"
)

type stubValidation struct {
	result     models.ValidationResult
	err        error
	applicable []string
	lastReq    models.ValidationRequest
}

func (s *stubValidation) Validate(_ context.Context, req models.ValidationRequest) (models.ValidationResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubValidation) Applicable(_ context.Context, req models.ValidationRequest) ([]string, error) {
	s.lastReq = req
	return s.applicable, s.err
}

type stubRedemption struct {
	err error
}

func (s *stubRedemption) Redeem(_ context.Context, _, _, _ string) error { return s.err }

type stubAdmin struct {
	id   int64
	err  error
	meta *models.CouponMeta
}

func (s *stubAdmin) Create(_ context.Context, meta *models.CouponMeta) (int64, error) {
	s.meta = meta
	return s.id, s.err
}

func newTestHandler(v ValidationService, r RedemptionService, a CouponAdminStore) *CouponHandler {
	if v == nil {
		v = &stubValidation{}
	}
	if r == nil {
		r = &stubRedemption{}
	}
	if a == nil {
		a = &stubAdmin{}
	}
	return NewCouponHandler(v, r, a, cache.New(time.Minute), logger.NewNop())
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestValidateCouponResponseShape(t *testing.T) {
	svc := &stubValidation{result: models.ValidationResult{
		Valid:          true,
		DiscountAmount: decimal.RequireFromString("10.00"),
		Message:        "Coupon applied successfully",
	}}
	h := newTestHandler(svc, nil, nil)

	rec := postJSON(t, h.ValidateCoupon,
		`{"coupon_code":"SAVE10","user_id":"u1","order_amount":"100.00","category_id":"books"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Valid)
	assert.True(t, got.DiscountAmount.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, "Coupon applied successfully", got.Message)

	require.NotNil(t, svc.lastReq.CategoryID)
	assert.Equal(t, "books", *svc.lastReq.CategoryID)
	assert.Nil(t, svc.lastReq.ProductID)
}

func TestValidateCouponBusinessFailureIs200(t *testing.T) {
	svc := &stubValidation{result: models.Invalid("Coupon has expired")}
	h := newTestHandler(svc, nil, nil)

	rec := postJSON(t, h.ValidateCoupon,
		`{"coupon_code":"OLD","user_id":"u1","order_amount":"100.00"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Valid)
	assert.Equal(t, "Coupon has expired", got.Message)
}

func TestValidateCouponRejectsBadRequests(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing coupon code", `{"user_id":"u1","order_amount":"100.00"}`},
		{"missing user id", `{"coupon_code":"SAVE10","order_amount":"100.00"}`},
		{"zero amount", `{"coupon_code":"SAVE10","user_id":"u1","order_amount":"0"}`},
		{"negative amount", `{"coupon_code":"SAVE10","user_id":"u1","order_amount":"-5"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.ValidateCoupon, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRedeemCoupon(t *testing.T) {
	body := `{"coupon_code":"SAVE10","user_id":"u1","order_id":"ord-1"}`

	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus string
	}{
		{"success", nil, http.StatusOK, "redeemed"},
		{"idempotent replay", models.ErrAlreadyRedeemed, http.StatusOK, "already_redeemed"},
		{"usage limit", models.ErrUsageLimitReached, http.StatusConflict, ""},
		{"per-user limit", models.ErrPerUserLimitReached, http.StatusConflict, ""},
		{"unknown coupon", models.ErrCouponNotFound, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(nil, &stubRedemption{err: tt.err}, nil)
			rec := postJSON(t, h.RedeemCoupon, body)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantStatus != "" {
				var got map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, tt.wantStatus, got["status"])
			}
		})
	}
}

func TestGetApplicableCoupons(t *testing.T) {
	svc := &stubValidation{applicable: []string{"SAVE10", "FREESHIP"}}
	h := newTestHandler(svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/coupons/applicable?user_id=u1&order_amount=100.00&category_id=books", nil)
	rec := httptest.NewRecorder()
	h.GetApplicableCoupons(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got applicableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"SAVE10", "FREESHIP"}, got.ApplicableCoupons)

	require.NotNil(t, svc.lastReq.CategoryID)
	assert.Equal(t, "books", *svc.lastReq.CategoryID)
}

func TestGetApplicableCouponsRequiresUserAndAmount(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	for _, target := range []string{
		"/coupons/applicable?order_amount=100.00",
		"/coupons/applicable?user_id=u1",
		"/coupons/applicable?user_id=u1&order_amount=-3",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.GetApplicableCoupons(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCreateCoupon(t *testing.T) {
	admin := &stubAdmin{id: 42}
	h := newTestHandler(nil, nil, admin)

	rec := postJSON(t, h.CreateCoupon, `{
		"code": "SUMMER25",
		"discount_type": "PERCENTAGE",
		"discount_value": "25",
		"min_purchase_amount": "50.00",
		"max_discount_amount": "100.00",
		"start_date": "2026-06-01T00:00:00Z",
		"end_date": "2026-08-31T23:59:59Z",
		"usage_limit": 1000,
		"per_user_limit": 2,
		"applicable_categories": ["summer", "beach"]
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(42), got["coupon_id"])

	require.NotNil(t, admin.meta)
	assert.Equal(t, "SUMMER25", admin.meta.Code)
	assert.Equal(t, models.DiscountPercentage, admin.meta.DiscountType)
	assert.True(t, admin.meta.IsActive)
	assert.Equal(t, []string{"summer", "beach"}, admin.meta.ApplicableCategories)
	require.NotNil(t, admin.meta.UsageLimit)
	assert.Equal(t, 1000, *admin.meta.UsageLimit)
}

func TestCreateCouponRejectsBadRequests(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"unknown discount type", `{"code":"X","discount_type":"BOGO","discount_value":"5","start_date":"2026-01-01T00:00:00Z","end_date":"2026-02-01T00:00:00Z"}`},
		{"non-positive value", `{"code":"X","discount_type":"PERCENTAGE","discount_value":"0","start_date":"2026-01-01T00:00:00Z","end_date":"2026-02-01T00:00:00Z"}`},
		{"percentage over 100", `{"code":"X","discount_type":"PERCENTAGE","discount_value":"150","start_date":"2026-01-01T00:00:00Z","end_date":"2026-02-01T00:00:00Z"}`},
		{"window inverted", `{"code":"X","discount_type":"PERCENTAGE","discount_value":"10","start_date":"2026-02-01T00:00:00Z","end_date":"2026-01-01T00:00:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.CreateCoupon, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
