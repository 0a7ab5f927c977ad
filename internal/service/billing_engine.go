package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-order-engine/internal/metrics"
	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
)

// BillingEngine computes and stores the invoice of a served order. A bill
// is generated at most once; later requests replay the stored figures.
type BillingEngine struct {
	*deps
	coupons *CouponLedger
}

// BillRequest asks for the bill of an order. Supplying either SGST or
// CGST switches the order to split tax (a missing side counts as zero);
// otherwise the flat rate captured at placement applies.
type BillRequest struct {
	OrderID     string
	CouponCodes []string
	SGSTPercent *decimal.Decimal
	CGSTPercent *decimal.Decimal
}

func (r BillRequest) taxModel(current model.TaxModel) (model.TaxModel, error) {
	if r.SGSTPercent == nil && r.CGSTPercent == nil {
		return current, nil
	}
	sgst, cgst := decimal.Zero, decimal.Zero
	if r.SGSTPercent != nil {
		sgst = *r.SGSTPercent
	}
	if r.CGSTPercent != nil {
		cgst = *r.CGSTPercent
	}
	if err := checkPercent("sgst_percent", sgst); err != nil {
		return model.TaxModel{}, err
	}
	if err := checkPercent("cgst_percent", cgst); err != nil {
		return model.TaxModel{}, err
	}
	return model.SplitTax(sgst, cgst), nil
}

// GenerateBill produces the invoice of a served order. At most one coupon
// may validate; it is redeemed in the same transaction that stores the
// bill, so a failed bill never consumes a coupon use. A replay ignores
// the request's rates and codes entirely.
func (b *BillingEngine) GenerateBill(ctx context.Context, actor Actor, req BillRequest) (model.Bill, error) {
	if err := actor.validate(); err != nil {
		return model.Bill{}, err
	}
	codes := normalizeCodes(req.CouponCodes)
	now := b.now()

	var bill model.Bill
	err := b.store.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := tx.GetOrder(ctx, req.OrderID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if o.IsBillGenerated {
			bill = o.Bill()
			bill.Replayed = true
			return nil
		}
		if o.Status != model.OrderServed {
			return fmt.Errorf("%w: bill requires a served order, status is %s", ErrInvalidState, o.Status)
		}

		tax, err := req.taxModel(o.Tax)
		if err != nil {
			return err
		}

		discount, code := decimal.Zero, ""
		if len(codes) > 0 {
			c, err := b.selectCouponTx(ctx, tx, codes, now)
			if err != nil {
				return err
			}
			redeemed, err := b.coupons.redeemTx(ctx, tx, c.Code, now)
			if err != nil {
				return err
			}
			discount, code = redeemed.DiscountPercent, redeemed.Code
		}

		o.Tax = tax
		o.ApplyFigures(model.ComputeBill(model.Subtotal(o.Items), discount, tax))
		o.CouponCode = code
		o.IsBillGenerated = true
		o.BillGeneratedAt = &now
		o.UpdatedAt = now
		if err := tx.SaveBill(ctx, o); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrConcurrentModification
			}
			return err
		}
		bill = o.Bill()
		return nil
	})
	if err != nil {
		if len(codes) > 0 && isCouponErr(err) {
			metrics.RecordRedemption(Code(err))
		}
		return model.Bill{}, err
	}

	metrics.RecordBill(bill.Replayed)
	if bill.Replayed {
		b.log.DebugContext(ctx, "bill replayed", "action", "bill_generate", "order_id", bill.OrderID)
		return bill, nil
	}
	b.log.InfoContext(ctx, "bill generated", "action", "bill_generate",
		"order_id", bill.OrderID, "coupon", bill.CouponCode,
		"total", bill.Figures.Total.StringFixed(2), "by", actor.ID)

	ev := b.event(queue.EventBillGenerated, actor, now)
	ev.OrderID = bill.OrderID
	ev.ShortID = bill.ShortID
	ev.TableID = bill.TableID
	ev.CouponCode = bill.CouponCode
	ev.TotalAmount = bill.Figures.Total.StringFixed(2)
	events := []queue.OrderEvent{ev}
	if bill.CouponCode != "" {
		metrics.RecordRedemption("success")
		cev := b.event(queue.EventCouponRedeemed, actor, now)
		cev.OrderID = bill.OrderID
		cev.CouponCode = bill.CouponCode
		events = append(events, cev)
	}
	b.emit(ctx, events...)
	return bill, nil
}

// selectCouponTx checks every code and returns the single valid one.
func (b *BillingEngine) selectCouponTx(ctx context.Context, tx repository.CouponTx, codes []string, now time.Time) (*model.Coupon, error) {
	var (
		valid    []*model.Coupon
		firstErr error
	)
	for _, code := range codes {
		c, err := b.coupons.checkTx(ctx, tx, code, now)
		if err != nil {
			if !isCouponErr(err) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		valid = append(valid, c)
	}
	switch len(valid) {
	case 0:
		return nil, firstErr
	case 1:
		return valid[0], nil
	default:
		return nil, ErrMultipleCouponsNotSupported
	}
}

// GetBill returns the stored bill of an order.
func (b *BillingEngine) GetBill(ctx context.Context, orderID string) (model.Bill, error) {
	var bill model.Bill
	err := b.store.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if !o.IsBillGenerated {
			return fmt.Errorf("%w: bill not generated", ErrInvalidState)
		}
		bill = o.Bill()
		return nil
	})
	return bill, err
}

// normalizeCodes trims, upper-cases and de-duplicates codes, keeping
// first-seen order and dropping blanks.
func normalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		n := model.NormalizeCouponCode(c)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
