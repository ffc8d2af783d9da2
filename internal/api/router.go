package api

import (
	"net/http"

	"github.com/ayo6706/ebanking-core/internal/api/handler"
	"github.com/ayo6706/ebanking-core/internal/api/middleware"
	"github.com/ayo6706/ebanking-core/internal/api/spec"
	"github.com/ayo6706/ebanking-core/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services groups the domain services the HTTP layer delegates to.
type Services struct {
	Accounts  handler.AccountService
	Transfers handler.TransferService
	History   handler.HistoryService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        handler.Pinger
	redis     redis.Cmdable
	idemStore middleware.IdempotencyStore
	auth      *middleware.Authenticator
	services  Services
}

// NewRouter wires handlers onto services. redis and idemStore may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, redis redis.Cmdable, idemStore middleware.IdempotencyStore, services Services) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		redis:     redis,
		idemStore: idemStore,
		auth:      middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		services:  services,
	}
}

// Authenticator exposes the token issuer/validator used by the router.
func (api *Router) Authenticator() *middleware.Authenticator {
	return api.auth
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	if len(api.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: api.cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader, middleware.TraceHeader},
			ExposedHeaders: []string{middleware.TraceHeader, "X-Idempotent-Replay", "Retry-After"},
			MaxAge:         300,
		}))
	}

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	accountHandler := handler.NewAccountHandler(api.services.Accounts)
	transferHandler := handler.NewTransferHandler(api.services.Transfers, api.services.Accounts)
	historyHandler := handler.NewHistoryHandler(api.services.History)

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/health/live", healthHandler.Live)
		r.Get("/health/ready", healthHandler.Ready)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(api.auth.Middleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Accounts
		r.Post("/v1/accounts", accountHandler.OpenAccount)
		r.Get("/v1/accounts/overview", accountHandler.Overview)
		r.Post("/v1/accounts/close", accountHandler.CloseAccount)
		r.Put("/v1/accounts/pin", accountHandler.UpdatePin)

		// Transfers
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).Post("/v1/transfers", transferHandler.MakeTransfer)
		r.Get("/v1/transactions/history", historyHandler.History)
		r.Get("/v1/transactions/statement", historyHandler.Statement)
	})

	return r
}
