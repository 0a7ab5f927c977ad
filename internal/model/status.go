package model

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order. The set is closed:
// anything outside the constants below is rejected by ParseOrderStatus.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderDone      OrderStatus = "done"
	OrderCancelled OrderStatus = "cancelled"
)

// orderTransitions lists every legal edge of the order lifecycle. Any
// pair not listed here, including a self transition, is illegal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady},
	OrderReady:     {OrderServed},
	OrderServed:    {OrderDone},
	OrderDone:      {},
	OrderCancelled: {},
}

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDone || s == OrderCancelled
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s OrderStatus) []OrderStatus {
	out := make([]OrderStatus, len(orderTransitions[s]))
	copy(out, orderTransitions[s])
	return out
}

// ActiveOrderStatuses are the non-terminal statuses that keep a table occupied.
func ActiveOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderPreparing, OrderReady, OrderServed}
}

// AllOrderStatuses returns every order status in lifecycle order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderPreparing, OrderReady, OrderServed, OrderDone, OrderCancelled}
}

// ParseOrderStatus normalizes s (trimmed, lower-cased) and validates it.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// PaymentStatus tracks the money side of an order independently from
// its lifecycle status.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentRefunded      PaymentStatus = "refunded"
)

// Refundable reports whether money has been captured for the order.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentPaid || s == PaymentPartiallyPaid
}

// PaymentMode is how the guest settled the bill.
type PaymentMode string

const (
	PaymentModeCash   PaymentMode = "cash"
	PaymentModeCard   PaymentMode = "card"
	PaymentModeUPI    PaymentMode = "upi"
	PaymentModeWallet PaymentMode = "wallet"
	PaymentModeOther  PaymentMode = "other"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeCard, PaymentModeUPI, PaymentModeWallet, PaymentModeOther:
		return true
	}
	return false
}

func ParsePaymentMode(s string) (PaymentMode, error) {
	m := PaymentMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment mode %q", s)
	}
	return m, nil
}

// TableStatus is the occupancy state of a dining table.
type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved:
		return true
	}
	return false
}

func ParseTableStatus(s string) (TableStatus, error) {
	st := TableStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown table status %q", s)
	}
	return st, nil
}
