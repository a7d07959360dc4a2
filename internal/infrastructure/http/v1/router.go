// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/app"
	"stockflow/internal/core/idempotency"
	"stockflow/internal/domain/auth"
	"stockflow/internal/infrastructure/http/v1/handlers"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/internal/infrastructure/metrics"
	"stockflow/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Verifier validates bearer tokens; the token carries the tenant.
	Verifier auth.TokenVerifier

	// Metrics is optional. When set, /metrics is exposed.
	Metrics *metrics.Metrics

	// Storage backs the readiness check. Nil for the memory driver.
	Storage app.Pinger
	Driver  string

	// IdempotencyStore enables X-Idempotency-Key handling when non-nil.
	IdempotencyStore idempotency.Store

	Services *app.Services

	// Release switches gin to release mode.
	Release bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.GinMiddleware())
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Storage, cfg.Driver)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.Verifier))
	if cfg.IdempotencyStore != nil {
		v1.Use(middleware.Idempotency(cfg.IdempotencyStore))
	}

	registerInventoryRoutes(v1, cfg)
	registerPurchasingRoutes(v1, cfg)

	return router
}

// registerInventoryRoutes registers ledger, balance and location endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	svc := cfg.Services

	inventory := handlers.NewInventoryHandler(base, svc.Ledger, svc.Balances, svc.Purchasing)
	inv := rg.Group("/inventory")
	{
		inv.GET("/balances", inventory.GetBalances)
		inv.GET("/movements", inventory.GetMovements)
		inv.POST("/movements", inventory.CreateMovement)
	}

	locationHandler := handlers.NewLocationHandler(base, svc.Locations)
	locations := rg.Group("/locations")
	{
		locations.GET("", locationHandler.List)
		locations.POST("", locationHandler.Create)
		locations.GET("/:id", locationHandler.Get)
	}
}

// registerPurchasingRoutes registers purchase order, receipt, delivery and
// shipment issue endpoints.
func registerPurchasingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	svc := cfg.Services
	handler := handlers.NewPurchasingHandler(handlers.NewBaseHandler(), svc.Purchasing, svc.Receiving, svc.Delivery, cfg.Metrics)

	rg.GET("/materials/:id", handler.GetMaterial)

	orders := rg.Group("/purchase-orders")
	{
		orders.GET("/:id", handler.GetOrder)
		orders.POST("/:id/receipts", handler.CreateReceipt)
		orders.POST("/:id/deliveries", handler.ConfirmDelivery)
	}

	rg.GET("/receipts/:id", handler.GetReceipt)

	issues := rg.Group("/shipment-issues")
	{
		issues.GET("", handler.ListIssues)
		issues.POST("/:id/resolve", handler.ResolveIssue)
	}
}
