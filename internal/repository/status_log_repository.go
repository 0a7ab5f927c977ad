package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

// StatusLogRepo appends to and reads the order_status_log audit table.
type StatusLogRepo struct{}

// NewStatusLogRepo returns a StatusLogRepo.
func NewStatusLogRepo() *StatusLogRepo { return &StatusLogRepo{} }

// AppendTx writes one audit row and sets its generated id.
func (r *StatusLogRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.StatusChange) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO order_status_log (order_id, from_status, to_status, changed_by, changed_by_role, note, changed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OrderID, nullString(string(e.From)), e.To, e.ActorID, e.ActorRole, e.Note, e.ChangedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListByOrderTx returns the audit trail of an order, oldest first.
func (r *StatusLogRepo) ListByOrderTx(ctx context.Context, tx *sql.Tx, orderID string) ([]model.StatusChange, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, order_id, from_status, to_status, changed_by, changed_by_role, note, changed_at
           FROM order_status_log WHERE order_id = ? ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.StatusChange{}
	for rows.Next() {
		var (
			e    model.StatusChange
			from sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &from, &e.To, &e.ActorID, &e.ActorRole, &e.Note, &e.ChangedAt); err != nil {
			return nil, err
		}
		e.From = model.OrderStatus(from.String)
		out = append(out, e)
	}
	return out, rows.Err()
}
