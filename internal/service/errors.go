package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

// Sentinel errors returned by the engine. Wrapped variants still match
// with errors.Is.
var (
	ErrInvalidTransition           = errors.New("invalid status transition")
	ErrInvalidState                = errors.New("invalid order state")
	ErrOrderNotFound               = errors.New("order not found")
	ErrTableNotFound               = errors.New("table not found")
	ErrCouponNotFound              = errors.New("coupon not found")
	ErrCouponExpired               = errors.New("coupon expired")
	ErrCouponInactive              = errors.New("coupon inactive")
	ErrCouponLimitReached          = errors.New("coupon usage limit reached")
	ErrMultipleCouponsNotSupported = errors.New("multiple coupons not supported")
	ErrTableHasActiveOrder         = errors.New("table has an active order")
	ErrConcurrentModification      = errors.New("concurrent modification, please retry")
	ErrDuplicateCoupon             = errors.New("coupon code already exists")
	ErrValidation                  = errors.New("validation failed")
)

// TransitionError reports an illegal (From, To) pair.
type TransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func checkPercent(field string, p decimal.Decimal) error {
	if err := model.CheckPercent(p); err != nil {
		return invalid(field, "%v", err)
	}
	return nil
}

// IsRetryable reports whether the caller may retry the same request:
// the failure came from losing a race rather than from the request itself.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// Code returns the machine-readable code of an engine error, or
// "internal_error" for anything unknown.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrTableNotFound):
		return "table_not_found"
	case errors.Is(err, ErrCouponNotFound):
		return "coupon_not_found"
	case errors.Is(err, ErrCouponExpired):
		return "coupon_expired"
	case errors.Is(err, ErrCouponInactive):
		return "coupon_inactive"
	case errors.Is(err, ErrCouponLimitReached):
		return "coupon_limit_reached"
	case errors.Is(err, ErrMultipleCouponsNotSupported):
		return "multiple_coupons_not_supported"
	case errors.Is(err, ErrTableHasActiveOrder):
		return "table_has_active_order"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrDuplicateCoupon):
		return "duplicate_coupon"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	default:
		return "internal_error"
	}
}
