// Package service implements the order lifecycle and billing engine: the
// order state machine, bill generation, the coupon ledger and table
// occupancy tracking. All persistence goes through repository.Store so
// every operation is one all-or-nothing transaction.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-order-engine/internal/logging"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
)

// EventPublisher delivers domain events after a transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

// Options configures NewEngine. Zero values select sensible defaults.
type Options struct {
	Clock             func() time.Time
	Publisher         EventPublisher
	Logger            *slog.Logger
	DefaultTaxPercent decimal.Decimal
}

// deps is shared by every component of one engine.
type deps struct {
	store repository.Store
	now   func() time.Time
	pub   EventPublisher
	log   *slog.Logger
}

func (d *deps) emit(ctx context.Context, events ...queue.OrderEvent) {
	if d.pub == nil {
		return
	}
	for _, ev := range events {
		if err := d.pub.Publish(ctx, ev); err != nil {
			d.log.WarnContext(ctx, "event not published", "action", "event_publish", "event", ev.Type, "error", err)
		}
	}
}

func (d *deps) event(eventType string, actor Actor, at time.Time) queue.OrderEvent {
	ev := queue.NewEvent(eventType, at)
	ev.ActorID = actor.ID
	ev.ActorRole = actor.Role
	return ev
}

// Engine bundles the four components wired to one store.
type Engine struct {
	Orders  *OrderStateMachine
	Billing *BillingEngine
	Coupons *CouponLedger
	Tables  *TableTracker
}

// NewEngine wires the components.
func NewEngine(store repository.Store, opts Options) *Engine {
	d := &deps{store: store, now: opts.Clock, pub: opts.Publisher, log: opts.Logger}
	if d.now == nil {
		d.now = func() time.Time { return time.Now().UTC() }
	}
	if d.log == nil {
		d.log = logging.Discard()
	}
	coupons := &CouponLedger{deps: d}
	tables := &TableTracker{deps: d}
	return &Engine{
		Orders:  &OrderStateMachine{deps: d, tables: tables, defaultTax: opts.DefaultTaxPercent},
		Billing: &BillingEngine{deps: d, coupons: coupons},
		Coupons: coupons,
		Tables:  tables,
	}
}
