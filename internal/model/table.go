package model

import "time"

// Table is a dining table. Status must read occupied exactly when at
// least one non-terminal order is bound to it; drift from external edits
// is repaired by reconciliation.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – label shown to staff (e.g. "T4").
//  Capacity  – number of seats.
//  Status    – available, occupied or reserved.
//  UpdatedAt – last status change.
type Table struct {
	ID        uint64      // restaurant_tables.id
	Name      string      // restaurant_tables.name
	Capacity  int         // restaurant_tables.capacity
	Status    TableStatus // restaurant_tables.status
	UpdatedAt time.Time   // restaurant_tables.updated_at
}
