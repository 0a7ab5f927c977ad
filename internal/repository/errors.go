// Package repository defines the persistence contracts of the order
// engine and their MySQL implementation. The sentinel values below let
// the service layer tell apart the failure kinds a store can report
// without depending on driver specific errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a compare-and-set update matched no row
// because the stored state changed since it was read. Callers re-read
// the row to classify the failure.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")
