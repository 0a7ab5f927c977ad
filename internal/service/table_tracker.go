package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-order-engine/internal/metrics"
	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
)

// TableTracker keeps table status consistent with the orders bound to it:
// a table is occupied exactly when it has a non-terminal order. It is the
// only component that writes table status.
type TableTracker struct {
	*deps
}

// ReconcileResult describes what Reconcile found and did.
type ReconcileResult struct {
	Table          model.Table
	ActiveOrderIDs []string
	Corrected      bool
	Previous       model.TableStatus
}

// Reconcile compares the table status with its active orders and repairs
// drift in either direction. Drift is reported through the log, metrics
// and a table.drift_corrected event; it is not an error.
func (t *TableTracker) Reconcile(ctx context.Context, actor Actor, tableID uint64) (ReconcileResult, error) {
	if err := actor.validate(); err != nil {
		return ReconcileResult{}, err
	}
	now := t.now()
	var res ReconcileResult
	err := t.store.WithinTx(ctx, func(tx repository.Tx) error {
		tb, err := t.lockTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		ids, err := tx.ActiveOrderIDs(ctx, tableID)
		if err != nil {
			return err
		}
		res = ReconcileResult{Table: *tb, ActiveOrderIDs: ids, Previous: tb.Status}

		want := tb.Status
		switch {
		case len(ids) > 0 && tb.Status != model.TableOccupied:
			want = model.TableOccupied
		case len(ids) == 0 && tb.Status == model.TableOccupied:
			want = model.TableAvailable
		}
		if want == tb.Status {
			return nil
		}
		if err := t.setTx(ctx, tx, tb, want, now); err != nil {
			return err
		}
		res.Table.Status = want
		res.Table.UpdatedAt = now
		res.Corrected = true
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	if res.Corrected {
		metrics.RecordDriftCorrection(string(res.Previous), string(res.Table.Status))
		t.log.InfoContext(ctx, "table occupancy drift corrected",
			"action", "table_reconcile", "table_id", tableID,
			"from", res.Previous, "to", res.Table.Status, "active_orders", len(res.ActiveOrderIDs))
		ev := t.event(queue.EventTableDriftCorrected, actor, now)
		ev.TableID = tableID
		ev.From = string(res.Previous)
		ev.To = string(res.Table.Status)
		ev.ActiveOrders = res.ActiveOrderIDs
		t.emit(ctx, ev)
	}
	return res, nil
}

// SetStatus is the external override of table status. It is refused
// while any non-terminal order is bound to the table, whatever the target.
// On an idle table occupied cannot be set by hand; it is derived from orders.
func (t *TableTracker) SetStatus(ctx context.Context, actor Actor, tableID uint64, status model.TableStatus) (*model.Table, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("status", "unknown table status %q", status)
	}
	now := t.now()
	var (
		out  *model.Table
		prev model.TableStatus
	)
	err := t.store.WithinTx(ctx, func(tx repository.Tx) error {
		tb, err := t.lockTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		ids, err := tx.ActiveOrderIDs(ctx, tableID)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			return ErrTableHasActiveOrder
		}
		if status == model.TableOccupied {
			return invalid("status", "occupied is set by placing an order")
		}
		prev = tb.Status
		if tb.Status != status {
			if err := t.setTx(ctx, tx, tb, status, now); err != nil {
				return err
			}
			tb.Status = status
			tb.UpdatedAt = now
		}
		out = tb
		return nil
	})
	if err != nil {
		return nil, err
	}
	if prev != status {
		t.log.InfoContext(ctx, "table status set", "action", "table_set_status", "table_id", tableID, "from", prev, "to", status, "by", actor.ID)
		ev := t.event(queue.EventTableStatusChanged, actor, now)
		ev.TableID = tableID
		ev.From = string(prev)
		ev.To = string(status)
		t.emit(ctx, ev)
	}
	return out, nil
}

// lockTx takes the table row lock, translating a missing row.
func (t *TableTracker) lockTx(ctx context.Context, tx repository.TableTx, tableID uint64) (*model.Table, error) {
	tb, err := tx.LockTable(ctx, tableID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTableNotFound
	}
	return tb, err
}

func (t *TableTracker) setTx(ctx context.Context, tx repository.TableTx, tb *model.Table, to model.TableStatus, now time.Time) error {
	err := tx.UpdateTableStatus(ctx, tb.ID, tb.Status, to, now)
	if errors.Is(err, repository.ErrConflict) {
		return ErrConcurrentModification
	}
	return err
}

// occupyTx marks the table occupied for a newly placed order. The table
// lock taken here serializes placement with release on the same table.
func (t *TableTracker) occupyTx(ctx context.Context, tx repository.Tx, tableID uint64, now time.Time) (*model.Table, error) {
	tb, err := t.lockTx(ctx, tx, tableID)
	if err != nil {
		return nil, err
	}
	if tb.Status != model.TableOccupied {
		if err := t.setTx(ctx, tx, tb, model.TableOccupied, now); err != nil {
			return nil, err
		}
		tb.Status = model.TableOccupied
		tb.UpdatedAt = now
	}
	return tb, nil
}

// releaseIfIdleTx frees the table when no non-terminal order remains. The
// caller has already locked the table and written the terminal status,
// so the active set read here is final for this transaction.
func (t *TableTracker) releaseIfIdleTx(ctx context.Context, tx repository.Tx, tableID uint64, now time.Time) (bool, error) {
	tb, err := t.lockTx(ctx, tx, tableID)
	if err != nil {
		return false, err
	}
	ids, err := tx.ActiveOrderIDs(ctx, tableID)
	if err != nil {
		return false, err
	}
	if len(ids) > 0 || tb.Status != model.TableOccupied {
		return false, nil
	}
	if err := t.setTx(ctx, tx, tb, model.TableAvailable, now); err != nil {
		return false, err
	}
	return true, nil
}
