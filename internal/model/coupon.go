package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a discount code with an optional validity window and usage cap.
// UsageCount never exceeds TotalUsageLimit when a limit is set.
type Coupon struct {
	Code            string          // coupons.code (trimmed, upper-case)
	DiscountPercent decimal.Decimal // coupons.discount_percent
	TotalUsageLimit *int            // coupons.total_usage_limit (nullable = unlimited)
	UsageCount      int             // coupons.usage_count
	IsActive        bool            // coupons.is_active
	StartDate       *time.Time      // coupons.start_date (nullable)
	EndDate         *time.Time      // coupons.end_date (nullable)
	CreatedAt       time.Time       // coupons.created_at
	UpdatedAt       time.Time       // coupons.updated_at
}

// CouponState classifies whether a coupon can be redeemed right now.
type CouponState int

const (
	CouponRedeemable CouponState = iota
	CouponStateInactive
	CouponStateExpired
	CouponStateExhausted
)

// NormalizeCouponCode trims and upper-cases a user supplied code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// State reports why the coupon can or cannot be redeemed at now. The
// window is inclusive at both ends; a coupon that has not started yet
// reads as expired.
func (c *Coupon) State(now time.Time) CouponState {
	if !c.IsActive {
		return CouponStateInactive
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return CouponStateExpired
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return CouponStateExpired
	}
	if c.TotalUsageLimit != nil && c.UsageCount >= *c.TotalUsageLimit {
		return CouponStateExhausted
	}
	return CouponRedeemable
}

// Clone returns a deep copy of the coupon.
func (c *Coupon) Clone() *Coupon {
	cp := *c
	if c.TotalUsageLimit != nil {
		v := *c.TotalUsageLimit
		cp.TotalUsageLimit = &v
	}
	if c.StartDate != nil {
		t := *c.StartDate
		cp.StartDate = &t
	}
	if c.EndDate != nil {
		t := *c.EndDate
		cp.EndDate = &t
	}
	return &cp
}
