package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
	"github.com/iliyamo/restaurant-order-engine/internal/repository/memory"
)

var (
	staff = Actor{ID: "staff-7", Role: RoleStaff}
	admin = Actor{ID: "admin-1", Role: RoleAdmin}
	t0    = time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []queue.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.OrderEvent
	for _, ev := range p.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	engine *Engine
	store  *memory.Store
	pub    *recordingPublisher
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	for id := uint64(1); id <= 3; id++ {
		store.PutTable(model.Table{ID: id, Name: fmt.Sprintf("T%d", id), Capacity: 4, Status: model.TableAvailable})
	}
	pub := &recordingPublisher{}
	var (
		clockMu sync.Mutex
		clock   = t0
	)
	engine := NewEngine(store, Options{
		Clock: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
		Publisher:         pub,
		DefaultTaxPercent: decimal.NewFromInt(5),
	})
	return &fixture{engine: engine, store: store, pub: pub, ctx: context.Background()}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// place puts a 1000.00 order on tableID.
func (f *fixture) place(t *testing.T, tableID uint64) *model.Order {
	t.Helper()
	o, err := f.engine.Orders.Place(f.ctx, staff, PlaceOrderInput{
		TableID: tableID,
		Items: []ItemInput{
			{MenuItemID: "m-thali", Name: "Veg Thali", UnitPrice: dec("350"), Quantity: 2},
			{MenuItemID: "m-biryani", Name: "Biryani", UnitPrice: dec("300"), Quantity: 1},
		},
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) advance(t *testing.T, id string, to model.OrderStatus) *model.Order {
	t.Helper()
	o, err := f.engine.Orders.Advance(f.ctx, staff, AdvanceInput{OrderID: id, Target: to})
	require.NoError(t, err)
	return o
}

// serve walks an order from pending to served.
func (f *fixture) serve(t *testing.T, id string) *model.Order {
	t.Helper()
	f.advance(t, id, model.OrderPreparing)
	f.advance(t, id, model.OrderReady)
	return f.advance(t, id, model.OrderServed)
}

// orderAt returns an order sitting in status s. Orders brought to served
// or done carry a generated bill.
func (f *fixture) orderAt(t *testing.T, tableID uint64, s model.OrderStatus) *model.Order {
	t.Helper()
	o := f.place(t, tableID)
	switch s {
	case model.OrderPending:
		return o
	case model.OrderCancelled:
		return f.advance(t, o.ID, model.OrderCancelled)
	}
	path := []model.OrderStatus{model.OrderPreparing, model.OrderReady, model.OrderServed}
	for _, next := range path {
		o = f.advance(t, o.ID, next)
		if next == s {
			break
		}
	}
	if s == model.OrderServed || s == model.OrderDone {
		_, err := f.engine.Billing.GenerateBill(f.ctx, staff, BillRequest{OrderID: o.ID})
		require.NoError(t, err)
	}
	if s == model.OrderDone {
		var err error
		o, err = f.engine.Orders.MarkDone(f.ctx, staff, o.ID, model.PaymentModeCash)
		require.NoError(t, err)
	}
	return o
}

func (f *fixture) table(t *testing.T, id uint64) model.Table {
	t.Helper()
	var tb *model.Table
	require.NoError(t, f.store.WithinTx(f.ctx, func(tx repository.Tx) error {
		var err error
		tb, err = tx.GetTable(f.ctx, id)
		return err
	}))
	return *tb
}

func (f *fixture) coupon(t *testing.T, in CouponInput) *model.Coupon {
	t.Helper()
	c, err := f.engine.Coupons.Create(f.ctx, admin, in)
	require.NoError(t, err)
	return c
}

func intPtr(v int) *int { return &v }
