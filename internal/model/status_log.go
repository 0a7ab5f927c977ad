package model

import "time"

// StatusChange is one row of the append-only order status audit log.
// It is written in the same transaction as the change it records.
type StatusChange struct {
	ID        uint64      // order_status_log.id
	OrderID   string      // order_status_log.order_id
	From      OrderStatus // order_status_log.from_status (empty on placement)
	To        OrderStatus // order_status_log.to_status
	ActorID   string      // order_status_log.changed_by
	ActorRole string      // order_status_log.changed_by_role
	Note      string      // order_status_log.note
	ChangedAt time.Time   // order_status_log.changed_at
}
