package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-order-engine/internal/metrics"
	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
)

// OrderStateMachine owns order status. Every change is validated against
// the transition table and written with a compare-and-set on the status
// that was read, together with its audit row, in one transaction.
type OrderStateMachine struct {
	*deps
	tables     *TableTracker
	defaultTax decimal.Decimal
}

// ItemInput is one priced line supplied by the order-taking terminal.
type ItemInput struct {
	MenuItemID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
	Note       string
}

// PlaceOrderInput describes a new order. TaxPercent overrides the
// engine default flat rate.
type PlaceOrderInput struct {
	TableID    uint64
	Items      []ItemInput
	TaxPercent *decimal.Decimal
}

func (in PlaceOrderInput) validate() error {
	if in.TableID == 0 {
		return invalid("table_id", "required")
	}
	if len(in.Items) == 0 {
		return invalid("items", "at least one item required")
	}
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.Name) == "" {
			return invalid(field+".name", "required")
		}
		if it.Quantity < 1 {
			return invalid(field+".quantity", "must be at least 1")
		}
		if it.UnitPrice.IsNegative() {
			return invalid(field+".unit_price", "must not be negative")
		}
		if !it.UnitPrice.Equal(it.UnitPrice.Round(2)) {
			return invalid(field+".unit_price", "more than two decimal places")
		}
	}
	if in.TaxPercent != nil {
		return checkPercent("tax_percent", *in.TaxPercent)
	}
	return nil
}

// AdvanceInput requests a status change. Expected, when set, is the
// status the caller last saw; a mismatch fails as a concurrent
// modification instead of silently applying to newer state.
type AdvanceInput struct {
	OrderID  string
	Target   model.OrderStatus
	Expected model.OrderStatus
	Note     string
}

// ListFilter narrows List for pollers.
type ListFilter struct {
	Statuses []model.OrderStatus
	TableID  uint64
	Limit    int
}

// Place stores a new pending order and occupies its table.
func (m *OrderStateMachine) Place(ctx context.Context, actor Actor, in PlaceOrderInput) (*model.Order, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := m.now()
	tax := m.defaultTax
	if in.TaxPercent != nil {
		tax = *in.TaxPercent
	}
	o := &model.Order{
		ID:            uuid.NewString(),
		TableID:       in.TableID,
		Tax:           model.FlatTax(tax),
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		PlacedBy:      actor.ID,
		CreatedAt:     now,
		OrderPlacedAt: now,
		UpdatedAt:     now,
	}
	for _, it := range in.Items {
		o.Items = append(o.Items, model.OrderItem{
			OrderID:    o.ID,
			MenuItemID: it.MenuItemID,
			Name:       strings.TrimSpace(it.Name),
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			Note:       it.Note,
		})
	}
	o.Subtotal = model.Subtotal(o.Items)
	o.ApplyFigures(o.Figures())

	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := m.tables.occupyTx(ctx, tx, in.TableID, now); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, &model.StatusChange{
			OrderID:   o.ID,
			To:        model.OrderPending,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			ChangedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	m.log.InfoContext(ctx, "order placed", "action", "order_place",
		"order_id", o.ID, "table_id", o.TableID, "items", len(o.Items), "by", actor.ID)
	ev := m.event(queue.EventOrderPlaced, actor, now)
	ev.OrderID = o.ID
	ev.ShortID = o.ShortID()
	ev.TableID = o.TableID
	ev.To = string(o.Status)
	ev.TotalAmount = o.TotalAmount.StringFixed(2)
	m.emit(ctx, ev)
	return o, nil
}

// Advance moves an order along one legal edge. Entering a terminal
// status releases the table when no other active order remains on it.
// Entering done requires a generated bill.
func (m *OrderStateMachine) Advance(ctx context.Context, actor Actor, in AdvanceInput) (*model.Order, error) {
	if !in.Target.Valid() {
		return nil, invalid("status", "unknown order status %q", in.Target)
	}
	if in.Expected != "" && !in.Expected.Valid() {
		return nil, invalid("expected_status", "unknown order status %q", in.Expected)
	}
	return m.transition(ctx, actor, in, "")
}

// MarkDone captures payment for a billed, served order and completes it.
func (m *OrderStateMachine) MarkDone(ctx context.Context, actor Actor, orderID string, mode model.PaymentMode) (*model.Order, error) {
	if !mode.Valid() {
		return nil, invalid("payment_mode", "unknown payment mode %q", mode)
	}
	return m.transition(ctx, actor, AdvanceInput{OrderID: orderID, Target: model.OrderDone, Note: "payment captured: " + string(mode)}, mode)
}

func (m *OrderStateMachine) transition(ctx context.Context, actor Actor, in AdvanceInput, mode model.PaymentMode) (*model.Order, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	now := m.now()
	var (
		out      *model.Order
		from     model.OrderStatus
		released bool
	)
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := m.getTx(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		from = o.Status
		if in.Expected != "" && o.Status != in.Expected {
			return ErrConcurrentModification
		}
		if !model.CanTransition(o.Status, in.Target) {
			return &TransitionError{From: o.Status, To: in.Target}
		}
		if in.Target == model.OrderDone && !o.IsBillGenerated {
			return fmt.Errorf("%w: bill not generated", ErrInvalidState)
		}
		if in.Target.Terminal() {
			if _, err := m.tables.lockTx(ctx, tx, o.TableID); err != nil {
				return err
			}
		}

		if in.Target == model.OrderDone {
			err = tx.CompleteOrder(ctx, o.ID, mode, now)
		} else {
			err = tx.UpdateOrderStatus(ctx, o.ID, o.Status, in.Target, now)
		}
		if errors.Is(err, repository.ErrConflict) {
			return ErrConcurrentModification
		}
		if err != nil {
			return err
		}
		if err := tx.AppendStatusLog(ctx, &model.StatusChange{
			OrderID:   o.ID,
			From:      o.Status,
			To:        in.Target,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Note:      in.Note,
			ChangedAt: now,
		}); err != nil {
			return err
		}
		if in.Target.Terminal() {
			if released, err = m.tables.releaseIfIdleTx(ctx, tx, o.TableID, now); err != nil {
				return err
			}
		}
		out, err = tx.GetOrder(ctx, o.ID)
		return err
	})
	if err != nil {
		if from != "" {
			metrics.RecordTransition(string(from), string(in.Target), Code(err))
		}
		return nil, err
	}

	metrics.RecordTransition(string(from), string(in.Target), "success")
	m.log.InfoContext(ctx, "order status changed", "action", "order_advance",
		"order_id", out.ID, "from", from, "to", out.Status, "table_id", out.TableID,
		"table_released", released, "by", actor.ID)
	ev := m.event(queue.EventOrderStatusChanged, actor, now)
	ev.OrderID = out.ID
	ev.ShortID = out.ShortID()
	ev.TableID = out.TableID
	ev.From = string(from)
	ev.To = string(out.Status)
	if out.Status == model.OrderDone {
		ev.TotalAmount = out.TotalAmount.StringFixed(2)
	}
	events := []queue.OrderEvent{ev}
	if released {
		tev := m.event(queue.EventTableStatusChanged, actor, now)
		tev.TableID = out.TableID
		tev.From = string(model.TableOccupied)
		tev.To = string(model.TableAvailable)
		events = append(events, tev)
	}
	m.emit(ctx, events...)
	return out, nil
}

// Refund marks the payment of a completed order refunded. Order status
// is never touched.
func (m *OrderStateMachine) Refund(ctx context.Context, actor Actor, orderID, note string) (*model.Order, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	now := m.now()
	var (
		out  *model.Order
		prev model.PaymentStatus
	)
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := m.getTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.Status != model.OrderDone {
			return fmt.Errorf("%w: only done orders can be refunded", ErrInvalidState)
		}
		if !o.PaymentStatus.Refundable() {
			return fmt.Errorf("%w: payment status is %s", ErrInvalidState, o.PaymentStatus)
		}
		prev = o.PaymentStatus
		err = tx.UpdatePaymentStatus(ctx, o.ID, o.PaymentStatus, model.PaymentRefunded, now)
		if errors.Is(err, repository.ErrConflict) {
			return ErrConcurrentModification
		}
		if err != nil {
			return err
		}
		o.PaymentStatus = model.PaymentRefunded
		o.UpdatedAt = now
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.InfoContext(ctx, "order refunded", "action", "order_refund", "order_id", out.ID, "from", prev, "note", note, "by", actor.ID)
	ev := m.event(queue.EventOrderRefunded, actor, now)
	ev.OrderID = out.ID
	ev.ShortID = out.ShortID()
	ev.TableID = out.TableID
	ev.From = string(prev)
	ev.To = string(model.PaymentRefunded)
	ev.TotalAmount = out.TotalAmount.StringFixed(2)
	m.emit(ctx, ev)
	return out, nil
}

// Get returns one order with its items.
func (m *OrderStateMachine) Get(ctx context.Context, orderID string) (*model.Order, error) {
	var out *model.Order
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = m.getTx(ctx, tx, orderID)
		return err
	})
	return out, err
}

// List returns orders for dashboards and terminals, newest first.
func (m *OrderStateMachine) List(ctx context.Context, f ListFilter) ([]model.Order, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	var out []model.Order
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, repository.OrderFilter{Statuses: f.Statuses, TableID: f.TableID, Limit: f.Limit})
		return err
	})
	return out, err
}

// History returns the status audit trail of an order, oldest first.
func (m *OrderStateMachine) History(ctx context.Context, orderID string) ([]model.StatusChange, error) {
	var out []model.StatusChange
	err := m.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := m.getTx(ctx, tx, orderID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListStatusLog(ctx, orderID)
		return err
	})
	return out, err
}

func (m *OrderStateMachine) getTx(ctx context.Context, tx repository.OrderTx, orderID string) (*model.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrOrderNotFound
	}
	o, err := tx.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}
