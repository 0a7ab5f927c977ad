package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
)

func window(days int) (*time.Time, *time.Time) {
	start := t0.Add(-time.Duration(days) * 24 * time.Hour)
	end := t0.Add(time.Duration(days) * 24 * time.Hour)
	return &start, &end
}

func TestGenerateBillSplitTaxWithCoupon(t *testing.T) {
	f := newFixture(t)
	start, end := window(7)
	f.coupon(t, CouponInput{Code: "save10", DiscountPercent: dec("10"), TotalUsageLimit: intPtr(5), IsActive: true, StartDate: start, EndDate: end})
	o := f.place(t, 1)
	f.serve(t, o.ID)

	req := BillRequest{OrderID: o.ID, CouponCodes: []string{" Save10 "}, SGSTPercent: decPtr("2.5"), CGSTPercent: decPtr("2.5")}
	bill, err := f.engine.Billing.GenerateBill(f.ctx, staff, req)
	require.NoError(t, err)
	assert.False(t, bill.Replayed)
	assert.Equal(t, "SAVE10", bill.CouponCode)
	assert.True(t, bill.Tax.Split)
	assert.Equal(t, "1000.00", bill.Figures.Subtotal.StringFixed(2))
	assert.Equal(t, "100.00", bill.Figures.DiscountAmount.StringFixed(2))
	assert.Equal(t, "900.00", bill.Figures.Discounted.StringFixed(2))
	assert.Equal(t, "22.50", bill.Figures.SGSTAmount.StringFixed(2))
	assert.Equal(t, "22.50", bill.Figures.CGSTAmount.StringFixed(2))
	assert.Equal(t, "45.00", bill.Figures.TaxAmount.StringFixed(2))
	assert.Equal(t, "945.00", bill.Figures.Total.StringFixed(2))

	c, err := f.engine.Coupons.Get(f.ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsageCount)
	assert.Len(t, f.pub.ofType(queue.EventBillGenerated), 1)
	assert.Len(t, f.pub.ofType(queue.EventCouponRedeemed), 1)
}

func TestGenerateBillReplaysStoredFigures(t *testing.T) {
	f := newFixture(t)
	start, end := window(1)
	f.coupon(t, CouponInput{Code: "SAVE10", DiscountPercent: dec("10"), IsActive: true, StartDate: start, EndDate: end})
	o := f.place(t, 1)
	f.serve(t, o.ID)

	first, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, CouponCodes: []string{"SAVE10"}})
	require.NoError(t, err)

	// a different request must not change a generated bill
	again, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, CouponCodes: []string{"SAVE10"}, SGSTPercent: decPtr("9")})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Figures.Total.StringFixed(2), again.Figures.Total.StringFixed(2))
	assert.Equal(t, first.CouponCode, again.CouponCode)
	assert.False(t, again.Tax.Split)

	c, err := f.engine.Coupons.Get(f.ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsageCount)
	assert.Len(t, f.pub.ofType(queue.EventBillGenerated), 1)

	stored, err := f.engine.Billing.GetBill(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "945.00", stored.Figures.Total.StringFixed(2))
}

func TestGenerateBillFlatDefaultTax(t *testing.T) {
	f := newFixture(t)
	o := f.orderAt(t, 1, model.OrderReady)
	f.advance(t, o.ID, model.OrderServed)

	bill, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID})
	require.NoError(t, err)
	assert.False(t, bill.Tax.Split)
	assert.Equal(t, "", bill.CouponCode)
	assert.Equal(t, "50.00", bill.Figures.TaxAmount.StringFixed(2))
	assert.Equal(t, "1050.00", bill.Figures.Total.StringFixed(2))
}

func TestGenerateBillRequiresServed(t *testing.T) {
	f := newFixture(t)
	o := f.orderAt(t, 1, model.OrderReady)
	_, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: "missing"})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.engine.Billing.GetBill(f.ctx, o.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGenerateBillRejectsBadTax(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, 1)
	f.serve(t, o.ID)
	_, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, SGSTPercent: decPtr("-1")})
	assert.ErrorIs(t, err, ErrValidation)

	// stored rates keep two places; a finer rate would not replay to the same total
	_, err = f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, SGSTPercent: decPtr("2.125"), CGSTPercent: decPtr("2.125")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sgst_percent", ve.Field)

	f.coupon(t, CouponInput{Code: "ONCE", DiscountPercent: dec("10"), IsActive: true, TotalUsageLimit: intPtr(1)})
	_, err = f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, CouponCodes: []string{"ONCE"}, CGSTPercent: decPtr("150")})
	assert.ErrorIs(t, err, ErrValidation)
	c, err := f.engine.Coupons.Get(f.ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, c.UsageCount)

	bill, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, SGSTPercent: decPtr("2.25"), CGSTPercent: decPtr("2.25")})
	require.NoError(t, err)
	assert.Equal(t, "1045.00", bill.Figures.Total.StringFixed(2))
}

func TestGenerateBillReplayIgnoresRequestRates(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, 1)
	f.serve(t, o.ID)
	first, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID})
	require.NoError(t, err)

	again, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, SGSTPercent: decPtr("150"), CGSTPercent: decPtr("-3")})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Figures.Total.StringFixed(2), again.Figures.Total.StringFixed(2))
	assert.False(t, again.Tax.Split)
	assert.Equal(t, first.Tax.TaxPercent.String(), again.Tax.TaxPercent.String())
}

func TestGenerateBillMultipleValidCoupons(t *testing.T) {
	f := newFixture(t)
	f.coupon(t, CouponInput{Code: "A10", DiscountPercent: dec("10"), IsActive: true})
	f.coupon(t, CouponInput{Code: "B20", DiscountPercent: dec("20"), IsActive: true})
	o := f.place(t, 1)
	f.serve(t, o.ID)

	_, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, CouponCodes: []string{"A10", "B20"}})
	assert.ErrorIs(t, err, ErrMultipleCouponsNotSupported)

	for _, code := range []string{"A10", "B20"} {
		c, err := f.engine.Coupons.Get(f.ctx, code)
		require.NoError(t, err)
		assert.Zero(t, c.UsageCount, code)
	}
	got, err := f.engine.Orders.Get(f.ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBillGenerated)
}

func TestGenerateBillSingleValidAmongInvalid(t *testing.T) {
	f := newFixture(t)
	f.coupon(t, CouponInput{Code: "OFF", DiscountPercent: dec("50"), IsActive: false})
	f.coupon(t, CouponInput{Code: "GOOD", DiscountPercent: dec("10"), IsActive: true})
	o := f.place(t, 1)
	f.serve(t, o.ID)

	bill, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, CouponCodes: []string{"NOPE", "OFF", "GOOD", "good"}})
	require.NoError(t, err)
	assert.Equal(t, "GOOD", bill.CouponCode)
	assert.Equal(t, "945.00", bill.Figures.Total.StringFixed(2))
}

func TestGenerateBillNoValidCouponReturnsFirstError(t *testing.T) {
	f := newFixture(t)
	past := t0.Add(-48 * time.Hour)
	f.coupon(t, CouponInput{Code: "OLD", DiscountPercent: dec("10"), IsActive: true, EndDate: &past})
	o := f.place(t, 1)
	f.serve(t, o.ID)

	_, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, CouponCodes: []string{"OLD", "NOPE"}})
	assert.ErrorIs(t, err, ErrCouponExpired)

	_, err = f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID, CouponCodes: []string{"NOPE", "OLD"}})
	assert.ErrorIs(t, err, ErrCouponNotFound)

	got, err := f.engine.Orders.Get(f.ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBillGenerated)
}

func TestGenerateBillExhaustedCoupon(t *testing.T) {
	f := newFixture(t)
	f.coupon(t, CouponInput{Code: "ONCE", DiscountPercent: dec("10"), TotalUsageLimit: intPtr(1), IsActive: true})

	first := f.place(t, 1)
	f.serve(t, first.ID)
	_, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: first.ID, CouponCodes: []string{"ONCE"}})
	require.NoError(t, err)

	second := f.place(t, 2)
	f.serve(t, second.ID)
	_, err = f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: second.ID, CouponCodes: []string{"ONCE"}})
	assert.ErrorIs(t, err, ErrCouponLimitReached)
}

func TestNormalizeCodes(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, normalizeCodes([]string{" a", "", "B", "A ", "  "}))
	assert.Empty(t, normalizeCodes(nil))
}
