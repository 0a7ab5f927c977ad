package service

import "strings"

// Roles recognised by the engine.
const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// Actor identifies who performs an operation. It is always passed in
// explicitly and recorded in the audit log.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return invalid("actor", "missing actor id")
	}
	return nil
}
