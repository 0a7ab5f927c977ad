package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-order-engine/internal/handler"
)

// RegisterTables registers occupancy reconciliation and the status
// override used by the floor manager.
func RegisterTables(e *echo.Echo, h *handler.TableHandler, p Protection) {
	g := staffGroup(e, p, roleAdmin, roleStaff)
	g.POST("/tables/:id/reconcile", h.ReconcileTable)
	g.PUT("/tables/:id/status", h.SetTableStatus)
}
