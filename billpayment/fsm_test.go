package billpayment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cngnbridge/core/bridge"
)

func TestValidateTransitionAllowsLegalMoves(t *testing.T) {
	require.NoError(t, ValidateTransition(bridge.BillStatusPendingPayment, bridge.BillStatusCNGNReceived))
	require.NoError(t, ValidateTransition(bridge.BillStatusCNGNReceived, bridge.BillStatusVerifyingAccount))
	require.NoError(t, ValidateTransition(bridge.BillStatusVerifyingAccount, bridge.BillStatusProcessingBill))
	require.NoError(t, ValidateTransition(bridge.BillStatusProcessingBill, bridge.BillStatusCompleted))
	require.NoError(t, ValidateTransition(bridge.BillStatusProcessingBill, bridge.BillStatusRetryScheduled))
	require.NoError(t, ValidateTransition(bridge.BillStatusRetryScheduled, bridge.BillStatusProcessingBill))
	require.NoError(t, ValidateTransition(bridge.BillStatusRefundInitiated, bridge.BillStatusRefundProcessing))
	require.NoError(t, ValidateTransition(bridge.BillStatusRefundProcessing, bridge.BillStatusRefunded))
}

func TestValidateTransitionRejectsIllegalMoves(t *testing.T) {
	// skips verifying_account and processing_bill entirely
	require.Error(t, ValidateTransition(bridge.BillStatusPendingPayment, bridge.BillStatusCompleted))
	// terminal states have no outgoing transitions
	require.Error(t, ValidateTransition(bridge.BillStatusCompleted, bridge.BillStatusRefundInitiated))
	require.Error(t, ValidateTransition(bridge.BillStatusRefunded, bridge.BillStatusRefundInitiated))
	// can't go backwards
	require.Error(t, ValidateTransition(bridge.BillStatusVerifyingAccount, bridge.BillStatusCNGNReceived))
}

func TestValidateTransitionRejectsUnknownSource(t *testing.T) {
	err := ValidateTransition(bridge.BillStatus("bogus"), bridge.BillStatusCNGNReceived)
	require.Error(t, err)
}
