// Package memory is an in-process implementation of repository.Store.
// Transactions are serialized by a single mutex and rolled back by
// restoring a snapshot, which makes it suitable for tests and for
// running the service without MySQL (STORE_DRIVER=memory).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps every entity in maps guarded by mu.
type Store struct {
	mu      sync.Mutex
	state   state
	nextLog uint64
	nextRow uint64
}

type state struct {
	orders  map[string]*model.Order
	tables  map[uint64]*model.Table
	coupons map[string]*model.Coupon
	logs    []model.StatusChange
}

// New returns an empty store.
func New() *Store {
	return &Store{state: state{
		orders:  map[string]*model.Order{},
		tables:  map[uint64]*model.Table{},
		coupons: map[string]*model.Coupon{},
	}}
}

// PutTable inserts or overwrites a table record. It stands in for the
// external table management service and can introduce occupancy drift.
func (s *Store) PutTable(t model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.state.tables[t.ID] = &cp
}

// WithinTx runs fn with exclusive access to the store. When fn fails
// every change it made is discarded.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state.clone()
	nextLog, nextRow := s.nextLog, s.nextRow
	if err := fn(&memTx{s: s}); err != nil {
		s.state = snap
		s.nextLog, s.nextRow = nextLog, nextRow
		return err
	}
	return nil
}

func (st state) clone() state {
	out := state{
		orders:  make(map[string]*model.Order, len(st.orders)),
		tables:  make(map[uint64]*model.Table, len(st.tables)),
		coupons: make(map[string]*model.Coupon, len(st.coupons)),
		logs:    append([]model.StatusChange(nil), st.logs...),
	}
	for k, v := range st.orders {
		out.orders[k] = v.Clone()
	}
	for k, v := range st.tables {
		t := *v
		out.tables[k] = &t
	}
	for k, v := range st.coupons {
		out.coupons[k] = v.Clone()
	}
	return out
}

// memTx operates on the live state; the caller holds s.mu.
type memTx struct {
	s *Store
}

func (t *memTx) InsertOrder(_ context.Context, o *model.Order) error {
	if _, ok := t.s.state.orders[o.ID]; ok {
		return repository.ErrDuplicate
	}
	for i := range o.Items {
		t.s.nextRow++
		o.Items[i].ID = t.s.nextRow
		o.Items[i].OrderID = o.ID
	}
	t.s.state.orders[o.ID] = o.Clone()
	return nil
}

func (t *memTx) GetOrder(_ context.Context, id string) (*model.Order, error) {
	o, ok := t.s.state.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (t *memTx) ListOrders(_ context.Context, f repository.OrderFilter) ([]model.Order, error) {
	out := []model.Order{}
	for _, o := range t.s.state.orders {
		if f.TableID != 0 && o.TableID != f.TableID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderPlacedAt.Equal(out[j].OrderPlacedAt) {
			return out[i].OrderPlacedAt.After(out[j].OrderPlacedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (t *memTx) ActiveOrderIDs(_ context.Context, tableID uint64) ([]string, error) {
	var active []*model.Order
	for _, o := range t.s.state.orders {
		if o.TableID == tableID && !o.Status.Terminal() {
			active = append(active, o)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].OrderPlacedAt.Equal(active[j].OrderPlacedAt) {
			return active[i].OrderPlacedAt.Before(active[j].OrderPlacedAt)
		}
		return active[i].ID < active[j].ID
	})
	ids := make([]string, 0, len(active))
	for _, o := range active {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	o, ok := t.s.state.orders[id]
	if !ok || o.Status != from {
		return repository.ErrConflict
	}
	o.Status = to
	o.UpdatedAt = at
	return nil
}

func (t *memTx) CompleteOrder(_ context.Context, id string, mode model.PaymentMode, at time.Time) error {
	o, ok := t.s.state.orders[id]
	if !ok || o.Status != model.OrderServed || !o.IsBillGenerated {
		return repository.ErrConflict
	}
	o.Status = model.OrderDone
	o.PaymentStatus = model.PaymentPaid
	o.PaymentMode = mode
	completed := at
	o.CompletedAt = &completed
	o.UpdatedAt = at
	return nil
}

func (t *memTx) SaveBill(_ context.Context, b *model.Order) error {
	o, ok := t.s.state.orders[b.ID]
	if !ok || o.Status != model.OrderServed || o.IsBillGenerated {
		return repository.ErrConflict
	}
	o.Subtotal = b.Subtotal
	o.DiscountPercent = b.DiscountPercent
	o.Tax = b.Tax
	o.DiscountAmount = b.DiscountAmount
	o.SGSTAmount = b.SGSTAmount
	o.CGSTAmount = b.CGSTAmount
	o.TaxAmount = b.TaxAmount
	o.TotalAmount = b.TotalAmount
	o.CouponCode = b.CouponCode
	o.IsBillGenerated = true
	if b.BillGeneratedAt != nil {
		at := *b.BillGeneratedAt
		o.BillGeneratedAt = &at
	}
	o.UpdatedAt = b.UpdatedAt
	return nil
}

func (t *memTx) UpdatePaymentStatus(_ context.Context, id string, from, to model.PaymentStatus, at time.Time) error {
	o, ok := t.s.state.orders[id]
	if !ok || o.PaymentStatus != from {
		return repository.ErrConflict
	}
	o.PaymentStatus = to
	o.UpdatedAt = at
	return nil
}

func (t *memTx) AppendStatusLog(_ context.Context, e *model.StatusChange) error {
	t.s.nextLog++
	e.ID = t.s.nextLog
	t.s.state.logs = append(t.s.state.logs, *e)
	return nil
}

func (t *memTx) ListStatusLog(_ context.Context, orderID string) ([]model.StatusChange, error) {
	out := []model.StatusChange{}
	for _, e := range t.s.state.logs {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) GetTable(_ context.Context, id uint64) (*model.Table, error) {
	tb, ok := t.s.state.tables[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *tb
	return &cp, nil
}

// LockTable is a plain read: the store mutex already serializes writers.
func (t *memTx) LockTable(ctx context.Context, id uint64) (*model.Table, error) {
	return t.GetTable(ctx, id)
}

func (t *memTx) UpdateTableStatus(_ context.Context, id uint64, from, to model.TableStatus, at time.Time) error {
	tb, ok := t.s.state.tables[id]
	if !ok || tb.Status != from {
		return repository.ErrConflict
	}
	tb.Status = to
	tb.UpdatedAt = at
	return nil
}

func (t *memTx) GetCoupon(_ context.Context, code string) (*model.Coupon, error) {
	c, ok := t.s.state.coupons[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

func (t *memTx) InsertCoupon(_ context.Context, c *model.Coupon) error {
	if _, ok := t.s.state.coupons[c.Code]; ok {
		return repository.ErrDuplicate
	}
	t.s.state.coupons[c.Code] = c.Clone()
	return nil
}

func (t *memTx) UpdateCoupon(_ context.Context, c *model.Coupon) error {
	cur, ok := t.s.state.coupons[c.Code]
	if !ok {
		return repository.ErrNotFound
	}
	next := c.Clone()
	next.UsageCount = cur.UsageCount
	next.CreatedAt = cur.CreatedAt
	t.s.state.coupons[c.Code] = next
	return nil
}

func (t *memTx) IncrementCouponUsage(_ context.Context, code string, now time.Time) error {
	c, ok := t.s.state.coupons[code]
	if !ok || c.State(now) != model.CouponRedeemable {
		return repository.ErrConflict
	}
	c.UsageCount++
	c.UpdatedAt = now
	return nil
}

func containsStatus(list []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
