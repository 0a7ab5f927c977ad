package router // package router defines how HTTP routes are registered for the API

import (
	"context"

	"github.com/labstack/echo/v4"                             // echo web framework handles routing
	"github.com/prometheus/client_golang/prometheus/promhttp" // promhttp serves the default registry

	"github.com/iliyamo/restaurant-order-engine/internal/handler"    // handlers implementing the endpoints
	"github.com/iliyamo/restaurant-order-engine/internal/middleware" // JWT and role middleware
)

// Roles accepted on the staff-facing routes.
const (
	roleAdmin = "ADMIN"
	roleStaff = "STAFF"
)

// RegisterRoutes registers the unauthenticated operational routes:
// /healthz for load balancers and /metrics for Prometheus.
func RegisterRoutes(e *echo.Echo, probe func(ctx context.Context) error) {
	e.GET("/healthz", handler.Health(probe))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Protection bundles the middleware shared by the /v1 route groups.
type Protection struct {
	JWTSecret string
	// Limiter guards mutating routes; nil disables it.
	Limiter echo.MiddlewareFunc
	// BillCache fronts GET bill; nil disables it.
	BillCache echo.MiddlewareFunc
}

func (p Protection) limiter() echo.MiddlewareFunc {
	if p.Limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return p.Limiter
}

func (p Protection) billCache() echo.MiddlewareFunc {
	if p.BillCache == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return p.BillCache
}

// staffGroup returns a /v1 group that requires a valid token carrying one
// of roles.
func staffGroup(e *echo.Echo, p Protection, roles ...string) *echo.Group {
	return e.Group(
		"/v1",
		middleware.JWTAuth(p.JWTSecret),
		middleware.RequireRole(roles...),
	)
}
