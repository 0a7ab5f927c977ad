package repository

import (
	"context"
	"time"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

// OrderFilter narrows ListOrders. Zero values mean "no filter".
type OrderFilter struct {
	Statuses []model.OrderStatus
	TableID  uint64
	Limit    int
}

// OrderTx is the order side of a store transaction. Status and bill
// writes are compare-and-set: they return ErrConflict when the stored
// row no longer matches the expected state.
type OrderTx interface {
	InsertOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error)
	// ActiveOrderIDs returns the ids of non-terminal orders bound to a table.
	ActiveOrderIDs(ctx context.Context, tableID uint64) ([]string, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error
	// CompleteOrder moves a billed served order to done and records payment.
	CompleteOrder(ctx context.Context, id string, mode model.PaymentMode, at time.Time) error
	// SaveBill persists the figures of o if the stored order is still
	// served and unbilled.
	SaveBill(ctx context.Context, o *model.Order) error
	UpdatePaymentStatus(ctx context.Context, id string, from, to model.PaymentStatus, at time.Time) error
	AppendStatusLog(ctx context.Context, e *model.StatusChange) error
	ListStatusLog(ctx context.Context, orderID string) ([]model.StatusChange, error)
}

// TableTx is the table side of a store transaction.
type TableTx interface {
	GetTable(ctx context.Context, id uint64) (*model.Table, error)
	// LockTable reads the table and holds its row lock until the
	// transaction ends.
	LockTable(ctx context.Context, id uint64) (*model.Table, error)
	UpdateTableStatus(ctx context.Context, id uint64, from, to model.TableStatus, at time.Time) error
}

// CouponTx is the coupon side of a store transaction.
type CouponTx interface {
	GetCoupon(ctx context.Context, code string) (*model.Coupon, error)
	InsertCoupon(ctx context.Context, c *model.Coupon) error
	// UpdateCoupon rewrites the administrative fields; usage_count is untouched.
	UpdateCoupon(ctx context.Context, c *model.Coupon) error
	// IncrementCouponUsage adds one use if the coupon is active, inside
	// its window at now and under its limit, else returns ErrConflict.
	IncrementCouponUsage(ctx context.Context, code string, now time.Time) error
}

// Tx groups every entity accessor available inside one transaction.
type Tx interface {
	OrderTx
	TableTx
	CouponTx
}

// Store runs fn inside a single all-or-nothing transaction. A non-nil
// error from fn rolls every write back.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
