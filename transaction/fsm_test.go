package transaction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cngnbridge/core/bridge"
)

func TestValidateTransitionAllowsLegalMoves(t *testing.T) {
	require.NoError(t, ValidateTransition(bridge.StatusPending, bridge.StatusProcessing))
	require.NoError(t, ValidateTransition(bridge.StatusProcessing, bridge.StatusCompleted))
	require.NoError(t, ValidateTransition(bridge.StatusPending, bridge.StatusCancelled))
}

func TestValidateTransitionRejectsIllegalMoves(t *testing.T) {
	err := ValidateTransition(bridge.StatusPending, bridge.StatusCompleted)
	require.Error(t, err)

	err = ValidateTransition(bridge.StatusCompleted, bridge.StatusProcessing)
	require.Error(t, err)
}

func TestValidateTransitionRejectsUnknownSource(t *testing.T) {
	err := ValidateTransition(bridge.TransactionStatus("bogus"), bridge.StatusProcessing)
	require.Error(t, err)
}
