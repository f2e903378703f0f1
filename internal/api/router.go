package api

import (
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/kargonusa/freight-core/docs"
	"github.com/kargonusa/freight-core/internal/api/handler"
	"github.com/kargonusa/freight-core/internal/api/middleware"
	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Shipments ports.ShipmentService
	Tracking  ports.TrackingService
	Movements ports.MovementService
	Billing   ports.BillingService
	Events    handler.EventDispatcher
}

// Options configures the transport.
type Options struct {
	JWTSecret       string
	BillingLocation *time.Location
	// Readiness lists the dependencies pinged by /health/ready.
	Readiness map[string]handler.Pinger
	// Registerer and Gatherer default to the prometheus globals.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// @title                       Freight core API
// @version                     1.0
// @description                 Shipment note lifecycle, batch movements, termin billing and tracking.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(svc Services, opts Options, log zerolog.Logger) *echo.Echo {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "freight",
		Subsystem:  "http",
		Registerer: opts.Registerer,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/metrics" || strings.HasPrefix(p, "/health") || strings.HasPrefix(p, "/swagger")
		},
	}))

	// --- Probes, metrics and docs (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(opts.Readiness).Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: opts.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Handlers ---
	shipments := handler.NewShipmentHandler(svc.Shipments)
	tracking := handler.NewTrackingHandler(svc.Tracking)
	movements := handler.NewMovementHandler(svc.Movements)
	invoices := handler.NewInvoiceHandler(svc.Billing, opts.BillingLocation)
	events := handler.NewEventHandler(svc.Events)

	const (
		admin   = domain.RoleAdmin
		branch  = domain.RoleBranch
		courier = domain.RoleCourier
		finance = domain.RoleFinance
	)
	allow := middleware.RBAC

	v1 := e.Group("/v1", middleware.Auth(opts.JWTSecret))

	v1.POST("/shipments", shipments.Create, allow(admin, branch))
	v1.GET("/shipments/:id", shipments.Get, allow(admin, branch, courier, finance))
	v1.DELETE("/shipments/:id", shipments.Delete, allow(admin, branch))
	v1.PUT("/shipments/:id/forwarding-agent", shipments.AssignForwardingAgent, allow(admin, branch))
	v1.POST("/shipments/:id/transitions", shipments.Transition, allow(admin, branch, courier))

	v1.GET("/tracking/:tracking_number", tracking.Timeline, allow(admin, branch, courier, finance))

	v1.POST("/movements", movements.Run, allow(admin, branch))
	v1.POST("/movements/loading", movements.Preset(domain.MovementLoading), allow(admin, branch))
	v1.POST("/movements/departure", movements.Preset(domain.MovementDeparture), allow(admin, branch))
	v1.POST("/movements/local-delivery", movements.Preset(domain.MovementLocalDelivery), allow(admin, branch, courier))

	v1.POST("/returns", movements.CreateReturn, allow(admin, branch))
	v1.GET("/returns/:id", movements.GetReturn, allow(admin, branch))
	v1.POST("/returns/:id/receive", movements.ReceiveReturn, allow(admin, branch))

	v1.POST("/invoices", invoices.Create, allow(admin, finance, branch))
	v1.POST("/invoices/overdue-sweep", invoices.SweepOverdue, allow(admin, finance))
	v1.GET("/invoices/:id", invoices.Get, allow(admin, finance, branch))
	v1.GET("/invoices/:id/balance", invoices.Balance, allow(admin, finance, branch))
	v1.POST("/invoices/:id/payments", invoices.AddPayment, allow(admin, finance))
	v1.POST("/invoices/:id/overdue", invoices.MarkOverdue, allow(admin, finance))
	v1.POST("/invoices/:id/void", invoices.Void, allow(admin, finance))

	v1.POST("/events", events.Receive, allow(admin, branch, courier))
	v1.POST("/events/batch", events.ReceiveBatch, allow(admin, branch, courier))

	return e
}
