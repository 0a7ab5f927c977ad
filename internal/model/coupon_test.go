package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCouponState(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)
	one := 1

	cases := []struct {
		name string
		c    Coupon
		want CouponState
	}{
		{"open ended", Coupon{IsActive: true}, CouponRedeemable},
		{"inside window", Coupon{IsActive: true, StartDate: &yesterday, EndDate: &tomorrow}, CouponRedeemable},
		{"window edge", Coupon{IsActive: true, StartDate: &now, EndDate: &now}, CouponRedeemable},
		{"inactive wins", Coupon{IsActive: false, EndDate: &yesterday}, CouponStateInactive},
		{"ended", Coupon{IsActive: true, EndDate: &yesterday}, CouponStateExpired},
		{"not started", Coupon{IsActive: true, StartDate: &tomorrow}, CouponStateExpired},
		{"limit reached", Coupon{IsActive: true, TotalUsageLimit: &one, UsageCount: 1}, CouponStateExhausted},
		{"under limit", Coupon{IsActive: true, TotalUsageLimit: &one}, CouponRedeemable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.c.State(now))
		})
	}
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "DIWALI10", NormalizeCouponCode("  diwali10 "))
	assert.Equal(t, "", NormalizeCouponCode("   "))
}
