package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-order-engine/internal/config"
	"github.com/iliyamo/restaurant-order-engine/internal/logging"
	"github.com/iliyamo/restaurant-order-engine/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, sub, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func whoami(c echo.Context) error {
	a, ok := ActorFrom(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": a.ID, "role": a.Role})
}

func newAuthed(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), RequireRole(roles...))
	g.GET("/me", whoami)
	return e
}

func do(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := newAuthed("ADMIN", "STAFF")

	rec := do(e, http.MethodGet, "/v1/me", bearer(t, "staff-3", "staff"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"staff-3","role":"STAFF"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/me", "Bearer garbage").Code)

	other, err := utils.NewAccessToken("other-secret", "staff-3", "STAFF", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/me", "Bearer "+other.Token).Code)
}

func TestJWTAuthRejectsExpiredAndRoleless(t *testing.T) {
	e := newAuthed("ADMIN", "STAFF")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "staff-3", "role": "STAFF", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	raw, err := expired.SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/me", "Bearer "+raw).Code)

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "staff-3", "exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err = noRole.SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/me", "Bearer "+raw).Code)
}

func TestJWTAuthNumericSubject(t *testing.T) {
	e := newAuthed("ADMIN")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 42, "role": "admin", "exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/v1/me", "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"42","role":"ADMIN"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := newAuthed("ADMIN")
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/v1/me", bearer(t, "staff-3", "STAFF")).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/me", bearer(t, "boss", "ADMIN")).Code)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTokenBucket(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "user_route",
		Prefix:         "test:rl",
	}
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), NewTokenBucket(cfg, rdb))
	g.POST("/orders", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	alice := bearer(t, "alice", "STAFF")
	bob := bearer(t, "bob", "STAFF")

	first := do(e, http.MethodPost, "/v1/orders", alice)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/orders", alice).Code)

	blocked := do(e, http.MethodPost, "/v1/orders", alice)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// buckets are per staff member
	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/orders", bob).Code)
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/x", "").Code)
	}
}

func TestRedisCacheKeysByConcretePath(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "path",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 16,
	}
	calls := map[string]int{}
	e := echo.New()
	e.GET("/v1/orders/:id/bill", func(c echo.Context) error {
		id := c.Param("id")
		calls[id]++
		if id == "unbilled" {
			return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_state"})
		}
		return c.JSON(http.StatusOK, echo.Map{"order_id": id})
	}, NewRedisCache(cfg, rdb))

	rec := do(e, http.MethodGet, "/v1/orders/a/bill", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = do(e, http.MethodGet, "/v1/orders/a/bill", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"order_id":"a"}`, rec.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))

	rec = do(e, http.MethodGet, "/v1/orders/b/bill", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"order_id":"b"}`, rec.Body.String())

	do(e, http.MethodGet, "/v1/orders/unbilled/bill", "")
	rec = do(e, http.MethodGet, "/v1/orders/unbilled/bill", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 1, calls["b"])
	assert.Equal(t, 2, calls["unbilled"])
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestRequestContextCarriesRequestID(t *testing.T) {
	e := echo.New()
	var seen string
	e.GET("/x", func(c echo.Context) error {
		seen = logging.RequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}, RequestContext())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	e.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "req-123", seen)
}
