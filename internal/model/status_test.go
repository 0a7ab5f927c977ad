package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionMatrix(t *testing.T) {
	legal := map[[2]OrderStatus]bool{
		{OrderPending, OrderPreparing}: true,
		{OrderPreparing, OrderReady}:   true,
		{OrderReady, OrderServed}:      true,
		{OrderServed, OrderDone}:       true,
		{OrderPending, OrderCancelled}: true,
	}
	for _, from := range AllOrderStatuses() {
		for _, to := range AllOrderStatuses() {
			assert.Equal(t, legal[[2]OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCancellationIsOneWay(t *testing.T) {
	for _, from := range []OrderStatus{OrderPreparing, OrderReady, OrderServed, OrderDone} {
		assert.False(t, CanTransition(from, OrderCancelled), from)
	}
	assert.Empty(t, NextStatuses(OrderCancelled))
}

func TestTerminal(t *testing.T) {
	for _, s := range ActiveOrderStatuses() {
		assert.False(t, s.Terminal(), s)
	}
	assert.True(t, OrderDone.Terminal())
	assert.True(t, OrderCancelled.Terminal())
}

func TestParseEnums(t *testing.T) {
	st, err := ParseOrderStatus("  Served ")
	require.NoError(t, err)
	assert.Equal(t, OrderServed, st)

	_, err = ParseOrderStatus("eaten")
	assert.Error(t, err)

	assert.True(t, PaymentPartiallyPaid.Refundable())
	assert.False(t, PaymentRefunded.Refundable())

	m, err := ParsePaymentMode("UPI")
	require.NoError(t, err)
	assert.Equal(t, PaymentModeUPI, m)
	_, err = ParsePaymentMode("barter")
	assert.Error(t, err)

	ts, err := ParseTableStatus("reserved")
	require.NoError(t, err)
	assert.Equal(t, TableReserved, ts)
	_, err = ParseTableStatus("broken")
	assert.Error(t, err)
}
