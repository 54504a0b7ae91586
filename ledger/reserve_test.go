package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAvailableNativeBalanceSubtractsReserve(t *testing.T) {
	available, err := AvailableNativeBalance("100", 2)
	require.NoError(t, err)
	// reserve = 1 + 0.5*2 = 2, available = 98 (String trims trailing zeros)
	require.Equal(t, "98", available)
}

func TestAvailableNativeBalanceFloorsAtZero(t *testing.T) {
	available, err := AvailableNativeBalance("1", 10)
	require.NoError(t, err)
	require.Equal(t, "0", available)
}

func TestAvailableNativeBalanceRejectsInvalidInput(t *testing.T) {
	_, err := AvailableNativeBalance("not-a-number", 0)
	require.Error(t, err)
}
