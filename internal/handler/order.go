package handler // handler package contains the order and billing endpoints

import (
	"log/slog" // slog records unexpected failures
	"net/http" // http defines status code constants
	"strconv"  // strconv parses query parameters
	"strings"  // strings trims request text

	"github.com/labstack/echo/v4"   // echo framework supplies request context
	"github.com/shopspring/decimal" // decimal binds exact prices and rates

	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/service"
)

// OrderHandler exposes the order lifecycle and billing to staff terminals.
type OrderHandler struct {
	Orders  *service.OrderStateMachine // Orders owns status changes
	Billing *service.BillingEngine     // Billing generates invoices
	Log     *slog.Logger
}

// NewOrderHandler constructs an OrderHandler and panics if a dependency is nil.
func NewOrderHandler(engine *service.Engine, log *slog.Logger) *OrderHandler {
	if engine == nil || engine.Orders == nil || engine.Billing == nil || log == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: engine.Orders, Billing: engine.Billing, Log: log}
}

// PlaceOrder handles POST /v1/orders. The terminal supplies priced items;
// the order starts pending and its table becomes occupied.
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		TableID uint64 `json:"table_id"`
		Items   []struct {
			MenuItemID string          `json:"menu_item_id"`
			Name       string          `json:"name"`
			UnitPrice  decimal.Decimal `json:"unit_price"`
			Quantity   int             `json:"quantity"`
			Note       string          `json:"note"`
		} `json:"items"`
		TaxPercent *decimal.Decimal `json:"tax_percent"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	in := service.PlaceOrderInput{TableID: body.TableID, TaxPercent: body.TaxPercent}
	for _, it := range body.Items {
		in.Items = append(in.Items, service.ItemInput{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			Note:       it.Note,
		})
	}
	o, err := h.Orders.Place(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toOrder(o))
}

// GetOrder handles GET /v1/orders/:id.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	o, err := h.Orders.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

// ListOrders handles GET /v1/orders?status=pending,preparing&table_id=4&limit=50.
// Kitchen displays and waiter terminals poll it instead of holding a
// push connection. Without a status filter every order is returned,
// newest first.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	var f service.ListFilter
	for _, s := range splitList(c.QueryParams()["status"]) {
		if s == "active" {
			f.Statuses = append(f.Statuses, model.ActiveOrderStatuses()...)
			continue
		}
		st, err := model.ParseOrderStatus(s)
		if err != nil {
			return badRequest(c, err.Error())
		}
		f.Statuses = append(f.Statuses, st)
	}
	if v := c.QueryParam("table_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid table_id")
		}
		f.TableID = id
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return badRequest(c, "invalid limit")
		}
		f.Limit = n
	}
	orders, err := h.Orders.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrder(&orders[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out, "count": len(out)})
}

// AdvanceOrder handles POST /v1/orders/:id/advance. expected_status is
// optional; when given, a stale terminal gets 409 concurrent_modification
// instead of applying its change to newer state.
func (h *OrderHandler) AdvanceOrder(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Status         string `json:"status"`
		ExpectedStatus string `json:"expected_status"`
		Note           string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	o, err := h.Orders.Advance(c.Request().Context(), actor, service.AdvanceInput{
		OrderID:  c.Param("id"),
		Target:   model.OrderStatus(strings.ToLower(strings.TrimSpace(body.Status))),
		Expected: model.OrderStatus(strings.ToLower(strings.TrimSpace(body.ExpectedStatus))),
		Note:     strings.TrimSpace(body.Note),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

// GenerateBill handles POST /v1/orders/:id/bill. The first call computes
// and stores the bill (201); later calls replay it unchanged (200).
func (h *OrderHandler) GenerateBill(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		CouponCodes []string         `json:"coupon_codes"`
		CouponCode  string           `json:"coupon_code"` // single-code shorthand
		SGSTPercent *decimal.Decimal `json:"sgst_percent"`
		CGSTPercent *decimal.Decimal `json:"cgst_percent"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	codes := body.CouponCodes
	if body.CouponCode != "" {
		codes = append(codes, body.CouponCode)
	}
	bill, err := h.Billing.GenerateBill(c.Request().Context(), actor, service.BillRequest{
		OrderID:     c.Param("id"),
		CouponCodes: codes,
		SGSTPercent: body.SGSTPercent,
		CGSTPercent: body.CGSTPercent,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	status := http.StatusCreated
	if bill.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, toBill(bill))
}

// GetBill handles GET /v1/orders/:id/bill. A generated bill never changes,
// which is what lets the router put the Redis response cache in front.
func (h *OrderHandler) GetBill(c echo.Context) error {
	bill, err := h.Billing.GetBill(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBill(bill))
}

// MarkDone handles POST /v1/orders/:id/done with {"payment_mode": "card"}.
func (h *OrderHandler) MarkDone(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		PaymentMode string `json:"payment_mode"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	mode, err := model.ParsePaymentMode(body.PaymentMode)
	if err != nil {
		return badRequest(c, err.Error())
	}
	o, err := h.Orders.MarkDone(c.Request().Context(), actor, c.Param("id"), mode)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

// RefundOrder handles POST /v1/orders/:id/refund (ADMIN only).
func (h *OrderHandler) RefundOrder(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	o, err := h.Orders.Refund(c.Request().Context(), actor, c.Param("id"), strings.TrimSpace(body.Note))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

// OrderHistory handles GET /v1/orders/:id/history.
func (h *OrderHandler) OrderHistory(c echo.Context) error {
	entries, err := h.Orders.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": c.Param("id"), "history": toHistory(entries)})
}
