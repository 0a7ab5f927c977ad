package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

var _ Store = (*MySQLStore)(nil)

// MySQLStore implements Store on top of database/sql. Each WithinTx call
// is one InnoDB transaction at READ COMMITTED, so plain reads taken after
// a row lock observe every commit that happened before the lock was
// granted.
type MySQLStore struct {
	db      *sql.DB
	orders  *OrderRepo
	tables  *TableRepo
	coupons *CouponRepo
	logs    *StatusLogRepo
}

// NewMySQLStore wires the repositories to db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:      db,
		orders:  NewOrderRepo(),
		tables:  NewTableRepo(),
		coupons: NewCouponRepo(),
		logs:    NewStatusLogRepo(),
	}
}

// WithinTx begins a transaction, runs fn and commits when fn succeeds.
// Any error, or a panic, rolls the transaction back.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// mysqlTx binds the repositories to one *sql.Tx.
type mysqlTx struct {
	tx *sql.Tx
	s  *MySQLStore
}

func (t *mysqlTx) InsertOrder(ctx context.Context, o *model.Order) error {
	return t.s.orders.CreateTx(ctx, t.tx, o)
}

func (t *mysqlTx) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return t.s.orders.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	return t.s.orders.ListTx(ctx, t.tx, f)
}

func (t *mysqlTx) ActiveOrderIDs(ctx context.Context, tableID uint64) ([]string, error) {
	return t.s.orders.ActiveIDsByTableTx(ctx, t.tx, tableID)
}

func (t *mysqlTx) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	return t.s.orders.UpdateStatusTx(ctx, t.tx, id, from, to, at)
}

func (t *mysqlTx) CompleteOrder(ctx context.Context, id string, mode model.PaymentMode, at time.Time) error {
	return t.s.orders.CompleteTx(ctx, t.tx, id, mode, at)
}

func (t *mysqlTx) SaveBill(ctx context.Context, o *model.Order) error {
	return t.s.orders.SaveBillTx(ctx, t.tx, o)
}

func (t *mysqlTx) UpdatePaymentStatus(ctx context.Context, id string, from, to model.PaymentStatus, at time.Time) error {
	return t.s.orders.UpdatePaymentStatusTx(ctx, t.tx, id, from, to, at)
}

func (t *mysqlTx) AppendStatusLog(ctx context.Context, e *model.StatusChange) error {
	return t.s.logs.AppendTx(ctx, t.tx, e)
}

func (t *mysqlTx) ListStatusLog(ctx context.Context, orderID string) ([]model.StatusChange, error) {
	return t.s.logs.ListByOrderTx(ctx, t.tx, orderID)
}

func (t *mysqlTx) GetTable(ctx context.Context, id uint64) (*model.Table, error) {
	return t.s.tables.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) LockTable(ctx context.Context, id uint64) (*model.Table, error) {
	return t.s.tables.LockByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateTableStatus(ctx context.Context, id uint64, from, to model.TableStatus, at time.Time) error {
	return t.s.tables.UpdateStatusTx(ctx, t.tx, id, from, to, at)
}

func (t *mysqlTx) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	return t.s.coupons.GetByCodeTx(ctx, t.tx, code)
}

func (t *mysqlTx) InsertCoupon(ctx context.Context, c *model.Coupon) error {
	return t.s.coupons.CreateTx(ctx, t.tx, c)
}

func (t *mysqlTx) UpdateCoupon(ctx context.Context, c *model.Coupon) error {
	return t.s.coupons.UpdateTx(ctx, t.tx, c)
}

func (t *mysqlTx) IncrementCouponUsage(ctx context.Context, code string, now time.Time) error {
	return t.s.coupons.IncrementUsageTx(ctx, t.tx, code, now)
}

// isDuplicateKey reports MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
