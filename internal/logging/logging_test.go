package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddsServiceAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New("order-engine", "info", &buf)

	ctx := WithRequestID(context.Background(), "req-42")
	log.InfoContext(ctx, "order advanced", "action", "order_advance", "order_id", "o-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "order-engine", rec["service"])
	assert.NotEmpty(t, rec["hostname"])
	assert.Equal(t, "req-42", rec["request_id"])
	assert.Equal(t, "order_advance", rec["action"])
	assert.Equal(t, "order advanced", rec["msg"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("order-engine", "warn", &buf)
	log.Info("hidden")
	assert.Zero(t, buf.Len())
	log.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestRequestIDMissing(t *testing.T) {
	assert.Equal(t, "", RequestID(context.Background()))
	ctx := WithRequestID(context.Background(), "")
	assert.Equal(t, "", RequestID(ctx))
}
