package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth         *handler.AuthHandler
	Purchase     *handler.PurchaseHandler
	Scan         *handler.ScanHandler
	Availability *handler.AvailabilityHandler
	Tickets      *handler.TicketHandler
}

// Limiters are the rate limit middlewares for the contended routes. A nil
// limiter is skipped.
type Limiters struct {
	Purchase echo.MiddlewareFunc
	Scan     echo.MiddlewareFunc
}

// RegisterRoutes registers routes that need no authentication: health,
// metrics and availability.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", metrics.Handler())

	e.GET("/v1/events/:id/availability", h.Availability.Event)
	e.GET("/v1/categories/:id/availability", h.Availability.Category)
}

// RegisterAuth registers the account endpoints. Register, login, refresh and
// logout-by-refresh-token live under /v1/auth without a session; /v1/me and
// /v1/logout require one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/logout", a.Logout)
}

// RegisterTicketing registers the authenticated ticketing endpoints.
// Purchases and listings accept any role; scanning is for door roles;
// cancellation and manual payment status are ADMIN only.
func RegisterTicketing(e *echo.Echo, h Handlers, l Limiters, jwtSecret string) {
	jwt := middleware.JWTAuth(jwtSecret)

	buyers := e.Group("/v1", jwt)
	buyers.POST("/events/:id/purchases", h.Purchase.Create, optional(l.Purchase)...)
	buyers.GET("/my-tickets", h.Tickets.Mine)

	door := e.Group("/v1", jwt, middleware.RequireRole(model.RoleStaff, model.RoleKiosk, model.RoleAdmin))
	door.POST("/scan", h.Scan.Scan, optional(l.Scan)...)

	admin := e.Group("/v1/admin", jwt, middleware.RequireRole(model.RoleAdmin))
	admin.POST("/tickets/:id/cancel", h.Tickets.Cancel)
	admin.POST("/orders/:id/payment", h.Tickets.ApplyPayment)
}

// Register wires every route and installs the request validator.
func Register(e *echo.Echo, h Handlers, l Limiters, jwtSecret string) {
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e, h)
	RegisterAuth(e, h.Auth, jwtSecret)
	RegisterTicketing(e, h, l, jwtSecret)
}

func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
