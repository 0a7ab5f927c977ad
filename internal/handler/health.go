package handler // declare the package name; contains HTTP handlers

import (
	"context"  // context bounds the dependency probe
	"net/http" // net/http provides status codes and response helpers
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health returns a health-check endpoint used by load balancers and
// monitoring systems. probe, when non-nil, checks the store (a database
// ping); a failing probe turns the answer into 503 so the instance is
// taken out of rotation.
func Health(probe func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if probe != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := probe(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}
