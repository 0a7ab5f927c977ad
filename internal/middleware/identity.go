package middleware

// identity.go turns the claims stored by JWTAuth into the actor handed to
// the engine. Nothing downstream reads identity from ambient state.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-order-engine/internal/service"
)

// ActorFrom returns the authenticated actor of the request. ok is false
// when JWTAuth did not run or the claims were incomplete.
func ActorFrom(c echo.Context) (service.Actor, bool) {
	id, _ := c.Get(CtxUserID).(string)
	role, _ := c.Get(CtxRole).(string)
	if id == "" || role == "" {
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Role: role}, true
}

// userID returns the caller id for keying, or "anon".
func userID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return a.ID
	}
	return "anon"
}
