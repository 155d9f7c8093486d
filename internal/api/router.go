package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/coupon-service/internal/api/handlers"
	"github.com/shopcore/coupon-service/internal/api/middleware"
	"github.com/shopcore/coupon-service/internal/logger"
)

// NewRouter builds the HTTP router for the coupon service.
func NewRouter(h *handlers.CouponHandler, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))

	r.Route("/coupons", func(r chi.Router) {
		r.Get("/applicable", h.GetApplicableCoupons)
		r.Post("/validate", h.ValidateCoupon)
		r.Post("/redeem", h.RedeemCoupon)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/coupons", h.CreateCoupon)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
