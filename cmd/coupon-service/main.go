package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/shopcore/coupon-service/internal/api"
	"github.com/shopcore/coupon-service/internal/api/handlers"
	"github.com/shopcore/coupon-service/internal/cache"
	"github.com/shopcore/coupon-service/internal/config"
	"github.com/shopcore/coupon-service/internal/logger"
	"github.com/shopcore/coupon-service/internal/repository"
	"github.com/shopcore/coupon-service/internal/service"
	"github.com/shopcore/coupon-service/pkg/db"
)

func main() {
	log, err := logger.New()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("load config", "error", err)
	}

	conn, err := db.NewPostgresConnection(cfg.DB)
	if err != nil {
		log.Fatalw("db connect", "error", err)
	}
	defer conn.Close()

	couponRepo := repository.NewCouponRepo(conn)
	usageRepo := repository.NewUsageRepo(conn)

	couponCache := cache.New(cfg.CouponCacheTTL)
	couponStore := cache.NewCachingCouponStore(couponRepo, couponCache)

	validator := service.NewValidator(couponStore, usageRepo, service.SystemClock{}, log)
	redeemer := service.NewRedeemer(db.NewTxRunner(conn), couponRepo, usageRepo, cfg.RedeemDeadline, log)

	handler := handlers.NewCouponHandler(validator, redeemer, couponRepo, couponCache, log)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(handler, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorw("http shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	log.Infow("starting coupon-service", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalw("listen", "error", err)
	}

	<-idleConnsClosed
	log.Infow("server stopped")
}
