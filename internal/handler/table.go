package handler // handler package contains the table occupancy endpoints

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/service"
)

// TableHandler exposes occupancy reconciliation and the status override.
type TableHandler struct {
	Tables *service.TableTracker
	Log    *slog.Logger
}

// NewTableHandler constructs a TableHandler and panics if a dependency is nil.
func NewTableHandler(engine *service.Engine, log *slog.Logger) *TableHandler {
	if engine == nil || engine.Tables == nil || log == nil {
		panic("nil dependency passed to NewTableHandler")
	}
	return &TableHandler{Tables: engine.Tables, Log: log}
}

// ReconcileTable handles POST /v1/tables/:id/reconcile. Drift is repaired
// and reported in the response; it is never an error.
func (h *TableHandler) ReconcileTable(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseTableID(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	res, err := h.Tables.Reconcile(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	body := echo.Map{
		"table":            toTable(res.Table),
		"active_order_ids": res.ActiveOrderIDs,
		"corrected":        res.Corrected,
	}
	if res.Corrected {
		body["previous_status"] = string(res.Previous)
	}
	if res.ActiveOrderIDs == nil {
		body["active_order_ids"] = []string{}
	}
	return c.JSON(http.StatusOK, body)
}

// SetTableStatus handles PUT /v1/tables/:id/status with {"status": "reserved"}.
// It fails with 409 table_has_active_order while an order is open.
func (h *TableHandler) SetTableStatus(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseTableID(c)
	if !ok {
		return badRequest(c, "invalid table id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	st, err := model.ParseTableStatus(body.Status)
	if err != nil {
		return badRequest(c, err.Error())
	}
	tb, err := h.Tables.SetStatus(c.Request().Context(), actor, id, st)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toTable(*tb))
}
