package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/pompom/go-box-store/internal/handler"
	"github.com/pompom/go-box-store/internal/middleware"
	"github.com/rs/zerolog"
)

// Config holds the configuration for creating a router.
type Config struct {
	BoxHandler      *handler.BoxHandler
	AccountHandler  *handler.AccountHandler
	CatalogHandler  *handler.CatalogHandler
	CheckoutHandler *handler.CheckoutHandler
	WebhookHandler  *handler.WebhookHandler
	HealthHandler   *handler.HealthHandler
	JWTSecret       string
	TopupLimiter    *middleware.UserRateLimiter
	Logger          zerolog.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes. The webhook authenticates by provider signature, not
	// by bearer token.
	r.Get("/health", cfg.HealthHandler.Health)
	r.Post("/webhooks/stripe", cfg.WebhookHandler.HandleStripe)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", cfg.CatalogHandler.List)
		r.Post("/checkout", cfg.CheckoutHandler.Checkout)

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authentication(cfg.JWTSecret, cfg.Logger))

			r.Post("/box/open", cfg.BoxHandler.Open)
			r.Post("/box/sellback", cfg.BoxHandler.SellBack)
			r.Get("/balance", cfg.AccountHandler.Balance)
			r.Get("/inventory", cfg.AccountHandler.Inventory)
			r.Get("/transactions", cfg.AccountHandler.Transactions)

			r.Group(func(r chi.Router) {
				r.Use(cfg.TopupLimiter.Middleware())
				r.Post("/topup/create-session", cfg.CheckoutHandler.TopupCreateSession)
			})
		})
	})

	return r
}
