package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-order-engine/internal/metrics"
	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
)

// CouponLedger validates and redeems discount codes. A redemption is a
// single conditional increment in the store, so the usage limit holds
// under any number of concurrent terminals.
type CouponLedger struct {
	*deps
}

// CouponInput carries the administrative fields of a coupon.
type CouponInput struct {
	Code            string
	DiscountPercent decimal.Decimal
	TotalUsageLimit *int
	IsActive        bool
	StartDate       *time.Time
	EndDate         *time.Time
}

func (in CouponInput) validate() error {
	if model.NormalizeCouponCode(in.Code) == "" {
		return invalid("code", "must not be empty")
	}
	if len(model.NormalizeCouponCode(in.Code)) > 64 {
		return invalid("code", "longer than 64 characters")
	}
	if err := checkPercent("discount_percent", in.DiscountPercent); err != nil {
		return err
	}
	if in.TotalUsageLimit != nil && *in.TotalUsageLimit < 0 {
		return invalid("total_usage_limit", "must be null or >= 0")
	}
	if in.StartDate != nil && in.EndDate != nil && in.StartDate.After(*in.EndDate) {
		return invalid("start_date", "after end_date")
	}
	return nil
}

// Redeem consumes one use of code and returns its discount percent.
func (l *CouponLedger) Redeem(ctx context.Context, actor Actor, code string) (decimal.Decimal, error) {
	if err := actor.validate(); err != nil {
		return decimal.Zero, err
	}
	code = model.NormalizeCouponCode(code)
	if code == "" {
		return decimal.Zero, invalid("code", "must not be empty")
	}
	now := l.now()
	var redeemed *model.Coupon
	err := l.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		redeemed, err = l.redeemTx(ctx, tx, code, now)
		return err
	})
	if err != nil {
		metrics.RecordRedemption(Code(err))
		return decimal.Zero, err
	}
	metrics.RecordRedemption("success")
	l.log.InfoContext(ctx, "coupon redeemed", "action", "coupon_redeem", "code", code, "usage_count", redeemed.UsageCount)
	ev := l.event(queue.EventCouponRedeemed, actor, now)
	ev.CouponCode = code
	l.emit(ctx, ev)
	return redeemed.DiscountPercent, nil
}

// redeemTx increments usage inside tx. A refused increment is classified
// by re-reading the coupon; if it now looks redeemable another writer
// changed it between the two statements.
func (l *CouponLedger) redeemTx(ctx context.Context, tx repository.CouponTx, code string, now time.Time) (*model.Coupon, error) {
	err := tx.IncrementCouponUsage(ctx, code, now)
	if err == nil {
		return tx.GetCoupon(ctx, code)
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, err
	}
	c, err := tx.GetCoupon(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := couponStateErr(c.State(now)); err != nil {
		return nil, err
	}
	// the coupon changed between the increment and the re-read and is
	// redeemable again; the caller retries
	return nil, ErrConcurrentModification
}

// checkTx validates code without consuming a use.
func (l *CouponLedger) checkTx(ctx context.Context, tx repository.CouponTx, code string, now time.Time) (*model.Coupon, error) {
	c, err := tx.GetCoupon(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := couponStateErr(c.State(now)); err != nil {
		return nil, err
	}
	return c, nil
}

// Check reports whether code could be redeemed now.
func (l *CouponLedger) Check(ctx context.Context, code string) (*model.Coupon, error) {
	code = model.NormalizeCouponCode(code)
	if code == "" {
		return nil, invalid("code", "must not be empty")
	}
	var c *model.Coupon
	err := l.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		c, err = l.checkTx(ctx, tx, code, l.now())
		return err
	})
	return c, err
}

// Get returns a coupon by code.
func (l *CouponLedger) Get(ctx context.Context, code string) (*model.Coupon, error) {
	code = model.NormalizeCouponCode(code)
	var c *model.Coupon
	err := l.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		c, err = tx.GetCoupon(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCouponNotFound
		}
		return err
	})
	return c, err
}

// Create registers a new coupon with zero usage.
func (l *CouponLedger) Create(ctx context.Context, actor Actor, in CouponInput) (*model.Coupon, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := l.now()
	c := &model.Coupon{
		Code:            model.NormalizeCouponCode(in.Code),
		DiscountPercent: in.DiscountPercent,
		TotalUsageLimit: in.TotalUsageLimit,
		IsActive:        in.IsActive,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := l.store.WithinTx(ctx, func(tx repository.Tx) error {
		err := tx.InsertCoupon(ctx, c)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrDuplicateCoupon
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.InfoContext(ctx, "coupon created", "action", "coupon_create", "code", c.Code, "by", actor.ID)
	return c, nil
}

// Update rewrites the administrative fields of an existing coupon. The
// usage counter is preserved and a limit below it is refused.
func (l *CouponLedger) Update(ctx context.Context, actor Actor, code string, in CouponInput) (*model.Coupon, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	in.Code = code
	if err := in.validate(); err != nil {
		return nil, err
	}
	code = model.NormalizeCouponCode(code)
	now := l.now()
	var out *model.Coupon
	err := l.store.WithinTx(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetCoupon(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCouponNotFound
		}
		if err != nil {
			return err
		}
		if in.TotalUsageLimit != nil && *in.TotalUsageLimit < cur.UsageCount {
			return invalid("total_usage_limit", "%d below current usage %d", *in.TotalUsageLimit, cur.UsageCount)
		}
		cur.DiscountPercent = in.DiscountPercent
		cur.TotalUsageLimit = in.TotalUsageLimit
		cur.IsActive = in.IsActive
		cur.StartDate = in.StartDate
		cur.EndDate = in.EndDate
		cur.UpdatedAt = now
		if err := tx.UpdateCoupon(ctx, cur); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCouponNotFound
			}
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.InfoContext(ctx, "coupon updated", "action", "coupon_update", "code", code, "by", actor.ID)
	return out, nil
}

func couponStateErr(s model.CouponState) error {
	switch s {
	case model.CouponStateInactive:
		return ErrCouponInactive
	case model.CouponStateExpired:
		return ErrCouponExpired
	case model.CouponStateExhausted:
		return ErrCouponLimitReached
	}
	return nil
}

func isCouponErr(err error) bool {
	return errors.Is(err, ErrCouponNotFound) || errors.Is(err, ErrCouponExpired) ||
		errors.Is(err, ErrCouponInactive) || errors.Is(err, ErrCouponLimitReached)
}
