package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

// OrderRepo reads and writes the orders and order_items tables. Every
// method runs inside a caller supplied transaction; the caller commits
// or rolls back. All timestamps are stored in UTC.
type OrderRepo struct{}

// NewOrderRepo returns an OrderRepo.
func NewOrderRepo() *OrderRepo { return &OrderRepo{} }

const orderColumns = `id, table_id, subtotal, discount_percent, tax_split, tax_percent, sgst_percent, cgst_percent,
       discount_amount, sgst_amount, cgst_amount, tax_amount, total_amount, coupon_code,
       status, payment_status, payment_mode, is_bill_generated, placed_by,
       created_at, order_placed_at, updated_at, bill_generated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o           model.Order
		couponCode  sql.NullString
		paymentMode sql.NullString
		billAt      sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.TableID, &o.Subtotal, &o.DiscountPercent, &o.Tax.Split, &o.Tax.TaxPercent,
		&o.Tax.SGSTPercent, &o.Tax.CGSTPercent,
		&o.DiscountAmount, &o.SGSTAmount, &o.CGSTAmount, &o.TaxAmount, &o.TotalAmount, &couponCode,
		&o.Status, &o.PaymentStatus, &paymentMode, &o.IsBillGenerated, &o.PlacedBy,
		&o.CreatedAt, &o.OrderPlacedAt, &o.UpdatedAt, &billAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	o.CouponCode = couponCode.String
	o.PaymentMode = model.PaymentMode(paymentMode.String)
	if billAt.Valid {
		t := billAt.Time
		o.BillGeneratedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		o.CompletedAt = &t
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateTx inserts the order row and its items in one round trip each.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	const q = `INSERT INTO orders (id, table_id, subtotal, discount_percent, tax_split, tax_percent, sgst_percent, cgst_percent,
                    discount_amount, sgst_amount, cgst_amount, tax_amount, total_amount, coupon_code,
                    status, payment_status, payment_mode, is_bill_generated, placed_by,
                    created_at, order_placed_at, updated_at, bill_generated_at, completed_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		o.ID, o.TableID, o.Subtotal, o.DiscountPercent, o.Tax.Split, o.Tax.TaxPercent, o.Tax.SGSTPercent, o.Tax.CGSTPercent,
		o.DiscountAmount, o.SGSTAmount, o.CGSTAmount, o.TaxAmount, o.TotalAmount, nullString(o.CouponCode),
		o.Status, o.PaymentStatus, nullString(string(o.PaymentMode)), o.IsBillGenerated, o.PlacedBy,
		o.CreatedAt.UTC(), o.OrderPlacedAt.UTC(), o.UpdatedAt.UTC(), nullTime(o.BillGeneratedAt), nullTime(o.CompletedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return r.createItemsTx(ctx, tx, o)
}

func (r *OrderRepo) createItemsTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	if len(o.Items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity, note) VALUES `
	args := make([]any, 0, len(o.Items)*6)
	for i, it := range o.Items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, o.ID, it.MenuItemID, it.Name, it.UnitPrice, it.Quantity, it.Note)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	// MySQL reports the id of the first row of a multi-row insert; the
	// rest follow consecutively.
	if first, err := res.LastInsertId(); err == nil && first > 0 {
		for i := range o.Items {
			o.Items[i].ID = uint64(first) + uint64(i)
			o.Items[i].OrderID = o.ID
		}
	}
	return nil
}

// GetByIDTx loads one order with its items. It returns ErrNotFound when
// the id is unknown.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.itemsTx(ctx, tx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListTx returns orders matching f, newest first, with their items.
func (r *OrderRepo) ListTx(ctx context.Context, tx *sql.Tx, f OrderFilter) ([]model.Order, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if f.TableID != 0 {
		where = append(where, "table_id = ?")
		args = append(args, f.TableID)
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY order_placed_at DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		orders []model.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Order{}, nil
	}
	items, err := r.itemsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepo) itemsTx(ctx context.Context, tx *sql.Tx, orderIDs []string) (map[string][]model.OrderItem, error) {
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	q := `SELECT id, order_id, menu_item_id, name, unit_price, quantity, note
          FROM order_items WHERE order_id IN (` + placeholders(len(orderIDs)) + `) ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Note); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// ActiveIDsByTableTx returns the ids of non-terminal orders on a table.
func (r *OrderRepo) ActiveIDsByTableTx(ctx context.Context, tx *sql.Tx, tableID uint64) ([]string, error) {
	active := model.ActiveOrderStatuses()
	args := []any{tableID}
	for _, s := range active {
		args = append(args, s)
	}
	q := `SELECT id FROM orders WHERE table_id = ? AND status IN (` + placeholders(len(active)) + `) ORDER BY order_placed_at, id`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStatusTx moves an order from one status to another only if it is
// still in from. Zero affected rows means a concurrent writer got there
// first and ErrConflict is returned.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id string, from, to model.OrderStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, at.UTC(), id, from,
	)
	return expectOneRow(res, err)
}

// CompleteTx marks a billed, served order as done and paid.
func (r *OrderRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id string, mode model.PaymentMode, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders
            SET status = ?, payment_status = ?, payment_mode = ?, completed_at = ?, updated_at = ?
          WHERE id = ? AND status = ? AND is_bill_generated = 1`,
		model.OrderDone, model.PaymentPaid, nullString(string(mode)), at.UTC(), at.UTC(),
		id, model.OrderServed,
	)
	return expectOneRow(res, err)
}

// SaveBillTx writes the invoice figures of o. The update only applies
// while the order is served and has no bill yet, which makes bill
// generation happen at most once.
func (r *OrderRepo) SaveBillTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders
            SET subtotal = ?, discount_percent = ?, tax_split = ?, tax_percent = ?, sgst_percent = ?, cgst_percent = ?,
                discount_amount = ?, sgst_amount = ?, cgst_amount = ?, tax_amount = ?, total_amount = ?,
                coupon_code = ?, is_bill_generated = 1, bill_generated_at = ?, updated_at = ?
          WHERE id = ? AND status = ? AND is_bill_generated = 0`,
		o.Subtotal, o.DiscountPercent, o.Tax.Split, o.Tax.TaxPercent, o.Tax.SGSTPercent, o.Tax.CGSTPercent,
		o.DiscountAmount, o.SGSTAmount, o.CGSTAmount, o.TaxAmount, o.TotalAmount,
		nullString(o.CouponCode), nullTime(o.BillGeneratedAt), o.UpdatedAt.UTC(),
		o.ID, model.OrderServed,
	)
	return expectOneRow(res, err)
}

// UpdatePaymentStatusTx is the payment side compare-and-set.
func (r *OrderRepo) UpdatePaymentStatusTx(ctx context.Context, tx *sql.Tx, id string, from, to model.PaymentStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ? AND payment_status = ?`,
		to, at.UTC(), id, from,
	)
	return expectOneRow(res, err)
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
