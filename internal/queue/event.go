// Package queue defines the domain events published to the message broker,
// the publisher that sends them and the audit consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the durable queue every engine event is routed to.
const DefaultQueueName = "restaurant.order_events"

// Event types.
const (
	EventOrderPlaced         = "order.placed"
	EventOrderStatusChanged  = "order.status_changed"
	EventBillGenerated       = "order.bill_generated"
	EventOrderRefunded       = "order.refunded"
	EventCouponRedeemed      = "coupon.redeemed"
	EventTableDriftCorrected = "table.drift_corrected"
	EventTableStatusChanged  = "table.status_changed"
)

// OrderEvent is published after a state change commits. It carries
// enough for dashboards and the audit log without a database read;
// fields that do not apply to a given Type are left empty.
type OrderEvent struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	OrderID      string   `json:"order_id,omitempty"`
	ShortID      string   `json:"short_id,omitempty"`
	TableID      uint64   `json:"table_id,omitempty"`
	From         string   `json:"from,omitempty"`
	To           string   `json:"to,omitempty"`
	ActorID      string   `json:"actor_id,omitempty"`
	ActorRole    string   `json:"actor_role,omitempty"`
	CouponCode   string   `json:"coupon_code,omitempty"`
	TotalAmount  string   `json:"total_amount,omitempty"`
	ActiveOrders []string `json:"active_orders,omitempty"`
	OccurredAt   string   `json:"occurred_at"`
}

// NewEvent stamps a fresh id and the occurrence time (RFC3339, UTC).
func NewEvent(eventType string, at time.Time) OrderEvent {
	return OrderEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
