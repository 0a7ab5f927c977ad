package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
)

func TestReconcileFreesTableWithoutOrders(t *testing.T) {
	f := newFixture(t)
	f.store.PutTable(model.Table{ID: 1, Name: "T1", Capacity: 4, Status: model.TableOccupied})

	res, err := f.engine.Tables.Reconcile(f.ctx, staff, 1)
	require.NoError(t, err)
	assert.True(t, res.Corrected)
	assert.Equal(t, model.TableOccupied, res.Previous)
	assert.Equal(t, model.TableAvailable, res.Table.Status)
	assert.Empty(t, res.ActiveOrderIDs)
	assert.Equal(t, model.TableAvailable, f.table(t, 1).Status)

	evs := f.pub.ofType(queue.EventTableDriftCorrected)
	require.Len(t, evs, 1)
	assert.Equal(t, "occupied", evs[0].From)
	assert.Equal(t, "available", evs[0].To)
}

func TestReconcileOccupiesTableWithOrders(t *testing.T) {
	f := newFixture(t)
	a := f.place(t, 2)
	b := f.place(t, 2)
	f.store.PutTable(model.Table{ID: 2, Name: "T2", Capacity: 4, Status: model.TableAvailable})

	res, err := f.engine.Tables.Reconcile(f.ctx, admin, 2)
	require.NoError(t, err)
	assert.True(t, res.Corrected)
	assert.Equal(t, model.TableOccupied, res.Table.Status)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, res.ActiveOrderIDs)
	assert.Equal(t, model.TableOccupied, f.table(t, 2).Status)
}

func TestReconcileNoDrift(t *testing.T) {
	f := newFixture(t)
	f.place(t, 1)
	f.store.PutTable(model.Table{ID: 3, Name: "T3", Capacity: 2, Status: model.TableReserved})

	for _, id := range []uint64{1, 2, 3} {
		res, err := f.engine.Tables.Reconcile(f.ctx, staff, id)
		require.NoError(t, err)
		assert.False(t, res.Corrected, id)
	}
	assert.Empty(t, f.pub.ofType(queue.EventTableDriftCorrected))

	_, err := f.engine.Tables.Reconcile(f.ctx, staff, 42)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestSetStatusRefusedWithActiveOrder(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, 1)

	for _, target := range []model.TableStatus{model.TableAvailable, model.TableReserved, model.TableOccupied} {
		_, err := f.engine.Tables.SetStatus(f.ctx, admin, 1, target)
		assert.ErrorIs(t, err, ErrTableHasActiveOrder, string(target))
		assert.Equal(t, "table_has_active_order", Code(err), string(target))
	}
	assert.Equal(t, model.TableOccupied, f.table(t, 1).Status)

	f.advance(t, o.ID, model.OrderCancelled)
	tb, err := f.engine.Tables.SetStatus(f.ctx, admin, 1, model.TableReserved)
	require.NoError(t, err)
	assert.Equal(t, model.TableReserved, tb.Status)
}

func TestSetStatusValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Tables.SetStatus(f.ctx, admin, 1, model.TableOccupied)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.engine.Tables.SetStatus(f.ctx, admin, 1, "broken")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.engine.Tables.SetStatus(f.ctx, admin, 77, model.TableReserved)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestPlaceOnReservedTableOccupiesIt(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Tables.SetStatus(f.ctx, admin, 1, model.TableReserved)
	require.NoError(t, err)

	f.place(t, 1)
	assert.Equal(t, model.TableOccupied, f.table(t, 1).Status)
}
