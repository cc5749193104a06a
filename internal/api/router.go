// Package api is the operational HTTP surface of a long-running client:
// probes, metrics, API docs and a few session and cache controls.
//
// @title        Marketplace client ops API
// @version      1.0
// @BasePath     /
package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/servicehub/marketplace-client/internal/api/docs"
	"github.com/servicehub/marketplace-client/internal/api/handler"
	"github.com/servicehub/marketplace-client/internal/api/middleware"
	"github.com/servicehub/marketplace-client/internal/core/ports"
)

const metricsSubsystem = "ops"

// Deps are the collaborators the ops routes read from.
type Deps struct {
	Logger  zerolog.Logger
	Session handler.SessionSource
	Cache   ports.CacheInvalidator
	// Checks are the readiness probes by dependency name.
	Checks map[string]handler.Check
	// Token protects the /v1 routes when set.
	Token string
	// Registry receives the HTTP metrics; nil uses the default registry,
	// which also holds the client metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Logger))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: registerer,
	}))

	// --- Probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Session and cache controls ---
	v1 := e.Group("/v1", middleware.OpsAuth(deps.Token))
	if deps.Session != nil {
		v1.GET("/session", handler.NewSessionHandler(deps.Session).Show)
	}
	if deps.Cache != nil {
		v1.POST("/cache/invalidate", handler.NewCacheHandler(deps.Cache).Invalidate)
	}

	return e
}
