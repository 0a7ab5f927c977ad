package handler // handler defines http handlers

import (
	"errors"   // errors unwraps typed engine errors
	"log/slog" // slog records unexpected failures
	"net/http" // http defines status code constants
	"strconv"  // strconv parses path parameters
	"strings"  // strings splits list filters

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/restaurant-order-engine/internal/middleware"
	"github.com/iliyamo/restaurant-order-engine/internal/service"
)

// errorBody is the JSON shape of every failed request. Error is the
// machine-readable code; clients branch on it, never on Message.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Field     string `json:"field,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

// statusFor maps an engine error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case "invalid_transition", "invalid_state", "concurrent_modification",
		"coupon_limit_reached", "table_has_active_order", "duplicate_coupon":
		return http.StatusConflict
	case "order_not_found", "table_not_found", "coupon_not_found":
		return http.StatusNotFound
	case "validation_error":
		return http.StatusBadRequest
	case "multiple_coupons_not_supported", "coupon_expired", "coupon_inactive":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its code and status. Unknown errors are
// logged with the request id and hidden from the client.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	code := service.Code(err)
	status := statusFor(code)
	body := errorBody{Error: code, Message: err.Error(), Retryable: service.IsRetryable(err)}

	var te *service.TransitionError
	if errors.As(err, &te) {
		body.From, body.To = string(te.From), string(te.To)
	}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		log.ErrorContext(c.Request().Context(), "request failed", "action", "http_error",
			"method", c.Request().Method, "route", c.Path(), "error", err)
		body.Message = "internal error"
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing identity"})
}

// actorOf returns the caller identity placed by JWTAuth.
func actorOf(c echo.Context) (service.Actor, bool) {
	return middleware.ActorFrom(c)
}

// parseTableID reads the numeric :id path parameter.
func parseTableID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// splitList accepts repeated and comma separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
