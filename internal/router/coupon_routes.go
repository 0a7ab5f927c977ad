package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-order-engine/internal/handler"
)

// RegisterCoupons registers checking and redemption for staff and coupon
// administration for admins.
func RegisterCoupons(e *echo.Echo, h *handler.CouponHandler, p Protection) {
	staff := staffGroup(e, p, roleAdmin, roleStaff)
	staff.POST("/coupons/:code/redeem", h.RedeemCoupon, p.limiter())
	staff.GET("/coupons/:code/check", h.CheckCoupon)

	admin := staffGroup(e, p, roleAdmin)
	admin.POST("/coupons", h.CreateCoupon)
	admin.PUT("/coupons/:code", h.UpdateCoupon)
	admin.GET("/coupons/:code", h.GetCoupon)
}
