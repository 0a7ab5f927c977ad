package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db), mock
}

var orderRowColumns = []string{
	"id", "table_id", "subtotal", "discount_percent", "tax_split", "tax_percent", "sgst_percent", "cgst_percent",
	"discount_amount", "sgst_amount", "cgst_amount", "tax_amount", "total_amount", "coupon_code",
	"status", "payment_status", "payment_mode", "is_bill_generated", "placed_by",
	"created_at", "order_placed_at", "updated_at", "bill_generated_at", "completed_at",
}

func TestIncrementCouponUsageCommits(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons")).
		WithArgs(now, "DIWALI10", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx Tx) error {
		return tx.IncrementCouponUsage(context.Background(), "DIWALI10", now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusCompareAndSetConflictRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?")).
		WithArgs(model.OrderPreparing, now, "order-1", model.OrderPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx Tx) error {
		return tx.UpdateOrderStatus(context.Background(), "order-1", model.OrderPending, model.OrderPreparing, now)
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT .* FROM orders WHERE id = ").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderRowColumns))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx Tx) error {
		_, err := tx.GetOrder(context.Background(), "missing")
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderLoadsItems(t *testing.T) {
	store, mock := newMockStore(t)
	placed := time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT .* FROM orders WHERE id = ").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(
			"order-1", 4, "1000.00", "10.00", true, "0.00", "2.50", "2.50",
			"100.00", "22.50", "22.50", "45.00", "945.00", "DIWALI10",
			"served", "pending", nil, true, "staff-7",
			placed, placed, placed, placed, nil,
		))
	mock.ExpectQuery("(?s)SELECT .* FROM order_items WHERE order_id IN").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "menu_item_id", "name", "unit_price", "quantity", "note"}).
			AddRow(11, "order-1", "m-1", "Thali", "500.00", 2, ""))
	mock.ExpectCommit()

	var got *model.Order
	err := store.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		got, err = tx.GetOrder(context.Background(), "order-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderServed, got.Status)
	assert.True(t, got.Tax.Split)
	assert.True(t, got.IsBillGenerated)
	assert.Equal(t, "DIWALI10", got.CouponCode)
	assert.Equal(t, model.PaymentMode(""), got.PaymentMode)
	assert.NotNil(t, got.BillGeneratedAt)
	assert.Nil(t, got.CompletedAt)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)))
	assert.True(t, got.TotalAmount.Equal(got.Figures().Total))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCouponDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coupons")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'DIWALI10'"})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx Tx) error {
		return tx.InsertCoupon(context.Background(), &model.Coupon{Code: "DIWALI10", IsActive: true})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTableAndActiveOrders(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM restaurant_tables WHERE id = ? FOR UPDATE")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "capacity", "status", "updated_at"}).
			AddRow(4, "T4", 6, "occupied", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orders WHERE table_id = ? AND status IN (?, ?, ?, ?)")).
		WithArgs(4, model.OrderPending, model.OrderPreparing, model.OrderReady, model.OrderServed).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("order-1").AddRow("order-2"))
	mock.ExpectCommit()

	var (
		table *model.Table
		ids   []string
	)
	err := store.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		if table, err = tx.LockTable(context.Background(), 4); err != nil {
			return err
		}
		ids, err = tx.ActiveOrderIDs(context.Background(), 4)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.TableOccupied, table.Status)
	assert.Equal(t, []string{"order-1", "order-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCouponUnknownCode(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM coupons WHERE code = ?").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx Tx) error {
		return tx.UpdateCoupon(context.Background(), &model.Coupon{Code: "NOPE"})
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := store.WithinTx(context.Background(), func(tx Tx) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
