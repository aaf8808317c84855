package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pompom/go-box-store/internal/config"
	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/handler"
	"github.com/pompom/go-box-store/internal/middleware"
	"github.com/pompom/go-box-store/internal/payments"
	"github.com/pompom/go-box-store/internal/rarity"
	"github.com/pompom/go-box-store/internal/router"
	"github.com/pompom/go-box-store/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Load config failed")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Connect to database failed")
	}
	defer db.Close()
	logger.Info().Msg("Connected to database")

	picker, err := rarity.NewPicker(rarity.Weights{
		Common:   cfg.Box.WeightCommon,
		Uncommon: cfg.Box.WeightUncommon,
		Rare:     cfg.Box.WeightRare,
		Ultra:    cfg.Box.WeightUltra,
	}, rand.NewSource(time.Now().UnixNano()))
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid rarity weights")
	}

	stripeClient := payments.NewClient(cfg.Stripe.SecretKey)

	boxCfg := store.BoxConfig{
		Price:  cfg.Box.Price,
		Picker: picker,
	}

	mux := router.New(router.Config{
		BoxHandler:      handler.NewBoxHandler(db, boxCfg, logger),
		AccountHandler:  handler.NewAccountHandler(db, logger),
		CatalogHandler:  handler.NewCatalogHandler(db, logger),
		CheckoutHandler: handler.NewCheckoutHandler(db, picker, stripeClient, cfg.Box, cfg.Stripe.AppBaseURL, logger),
		WebhookHandler:  handler.NewWebhookHandler(db, cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance, logger),
		HealthHandler:   handler.NewHealthHandler(db),
		JWTSecret:       cfg.Auth.JWTSecret,
		TopupLimiter:    middleware.NewUserRateLimiter(cfg.Box.TopupPerMinute),
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
