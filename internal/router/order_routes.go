package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-order-engine/internal/handler"
)

// RegisterOrders registers the order lifecycle and billing endpoints.
// Staff terminals and admins share them; refunds are admin only.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, p Protection) {
	g := staffGroup(e, p, roleAdmin, roleStaff)
	limit := p.limiter()

	// ---- Orders ----
	g.POST("/orders", h.PlaceOrder, limit)
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)
	g.POST("/orders/:id/advance", h.AdvanceOrder, limit)
	g.POST("/orders/:id/done", h.MarkDone, limit)
	g.GET("/orders/:id/history", h.OrderHistory)

	// ---- Billing ----
	g.POST("/orders/:id/bill", h.GenerateBill, limit)
	g.GET("/orders/:id/bill", h.GetBill, p.billCache())

	admin := staffGroup(e, p, roleAdmin)
	admin.POST("/orders/:id/refund", h.RefundOrder, limit)
}
