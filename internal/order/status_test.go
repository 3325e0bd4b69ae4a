package order

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	require.True(t, CanTransition(StatusPendingPayment, StatusPaid))
	require.True(t, CanTransition(StatusPaid, StatusPacked))
	require.True(t, CanTransition(StatusPacked, StatusShipped))
	require.True(t, CanTransition(StatusShipped, StatusOutForDelivery))
	require.True(t, CanTransition(StatusOutForDelivery, StatusDelivered))
	// Skipping intermediate steps is allowed.
	require.True(t, CanTransition(StatusPaid, StatusShipped))

	require.False(t, CanTransition(StatusPaid, StatusPendingPayment))
	require.False(t, CanTransition(StatusDelivered, StatusShipped))
	require.False(t, CanTransition(StatusPaid, StatusPaid))
}

func TestCanTransitionCancellation(t *testing.T) {
	require.True(t, CanTransition(StatusPendingPayment, StatusCanceled))
	require.True(t, CanTransition(StatusPaid, StatusCanceled))
	require.True(t, CanTransition(StatusPacked, StatusCanceled))

	require.False(t, CanTransition(StatusShipped, StatusCanceled))
	require.False(t, CanTransition(StatusDelivered, StatusCanceled))
	require.False(t, CanTransition(StatusCanceled, StatusPaid))
	require.False(t, CanTransition(StatusCanceled, StatusCanceled))
}

func TestCanTransitionRejectsUnknownStatuses(t *testing.T) {
	require.False(t, CanTransition("BOGUS", StatusPaid))
	require.False(t, CanTransition(StatusPaid, "BOGUS"))
	require.False(t, CanTransition("", StatusPaid))
}
