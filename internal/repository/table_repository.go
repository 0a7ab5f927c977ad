package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
)

// TableRepo provides access to the restaurant_tables table. Table
// records themselves are managed elsewhere; this repository only reads
// them and flips their occupancy status.
type TableRepo struct{}

// NewTableRepo returns a TableRepo.
func NewTableRepo() *TableRepo { return &TableRepo{} }

const tableColumns = `id, name, capacity, status, updated_at`

func scanTable(row rowScanner) (*model.Table, error) {
	var t model.Table
	if err := row.Scan(&t.ID, &t.Name, &t.Capacity, &t.Status, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetByIDTx reads a table without locking it.
func (r *TableRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Table, error) {
	return scanTable(tx.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables WHERE id = ?`, id))
}

// LockByIDTx reads a table with SELECT ... FOR UPDATE. Every order write
// that may occupy or release the table takes this lock first, so the
// check "does any active order remain" and the status flip that follows
// it are serialized per table.
func (r *TableRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Table, error) {
	return scanTable(tx.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM restaurant_tables WHERE id = ? FOR UPDATE`, id))
}

// UpdateStatusTx sets the table status if it still reads from.
func (r *TableRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.TableStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE restaurant_tables SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, at.UTC(), id, from,
	)
	return expectOneRow(res, err)
}
