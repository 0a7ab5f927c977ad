package handler // handler package contains the coupon endpoints

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-order-engine/internal/service"
)

// CouponHandler exposes redemption to staff and administration to admins.
type CouponHandler struct {
	Coupons *service.CouponLedger
	Log     *slog.Logger
}

// NewCouponHandler constructs a CouponHandler and panics if a dependency is nil.
func NewCouponHandler(engine *service.Engine, log *slog.Logger) *CouponHandler {
	if engine == nil || engine.Coupons == nil || log == nil {
		panic("nil dependency passed to NewCouponHandler")
	}
	return &CouponHandler{Coupons: engine.Coupons, Log: log}
}

// couponBody is shared by create and update. IsActive defaults to true
// when omitted; dates are RFC 3339 and inclusive.
type couponBody struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalUsageLimit *int            `json:"total_usage_limit"`
	IsActive        *bool           `json:"is_active"`
	StartDate       *time.Time      `json:"start_date"`
	EndDate         *time.Time      `json:"end_date"`
}

func (b couponBody) input() service.CouponInput {
	active := true
	if b.IsActive != nil {
		active = *b.IsActive
	}
	return service.CouponInput{
		Code:            b.Code,
		DiscountPercent: b.DiscountPercent,
		TotalUsageLimit: b.TotalUsageLimit,
		IsActive:        active,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
	}
}

// RedeemCoupon handles POST /v1/coupons/:code/redeem. It consumes one use
// and returns the discount percent; 409 coupon_limit_reached when the
// last use is already gone.
func (h *CouponHandler) RedeemCoupon(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	pct, err := h.Coupons.Redeem(c.Request().Context(), actor, c.Param("code"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"code": c.Param("code"), "discount_percent": pct.String()})
}

// CheckCoupon handles GET /v1/coupons/:code/check. A terminal asks before
// billing whether a guest's code is usable; no use is consumed.
func (h *CouponHandler) CheckCoupon(c echo.Context) error {
	cp, err := h.Coupons.Check(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"code": cp.Code, "discount_percent": cp.DiscountPercent.String(), "valid": true})
}

// CreateCoupon handles POST /v1/coupons (ADMIN).
func (h *CouponHandler) CreateCoupon(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body couponBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	cp, err := h.Coupons.Create(c.Request().Context(), actor, body.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toCoupon(cp))
}

// UpdateCoupon handles PUT /v1/coupons/:code (ADMIN). The usage counter
// is kept; a limit below it is rejected.
func (h *CouponHandler) UpdateCoupon(c echo.Context) error {
	actor, ok := actorOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body couponBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	cp, err := h.Coupons.Update(c.Request().Context(), actor, c.Param("code"), body.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toCoupon(cp))
}

// GetCoupon handles GET /v1/coupons/:code (ADMIN).
func (h *CouponHandler) GetCoupon(c echo.Context) error {
	cp, err := h.Coupons.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toCoupon(cp))
}
