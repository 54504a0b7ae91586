package transaction

import (
	"fmt"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
)

// legalTransitions defines the allowed status transitions for a
// bridge.Transaction (spec §4.F). Terminal states (completed, failed,
// cancelled) have no outgoing transitions.
var legalTransitions = map[bridge.TransactionStatus]map[bridge.TransactionStatus]bool{
	bridge.StatusPending: {
		bridge.StatusProcessing: true,
		bridge.StatusFailed:     true,
		bridge.StatusCancelled:  true,
	},
	bridge.StatusProcessing: {
		bridge.StatusCompleted: true,
		bridge.StatusFailed:    true,
	},
	bridge.StatusCompleted: {},
	bridge.StatusFailed:    {},
	bridge.StatusCancelled: {},
}

// ValidateTransition reports whether moving a transaction from "from" to
// "to" is legal. Returns a *errors.BridgeError with code TRANSITION_INVALID
// if not.
func ValidateTransition(from, to bridge.TransactionStatus) error {
	validToStates, exists := legalTransitions[from]
	if !exists {
		return errors.NewTransactionError(errors.KindInvariant, errors.TRANSITION_INVALID,
			fmt.Sprintf("unknown source state: %s", from), nil)
	}
	if !validToStates[to] {
		return errors.NewTransactionError(errors.KindInvariant, errors.TRANSITION_INVALID,
			fmt.Sprintf("illegal transition from %s to %s", from, to), nil)
	}
	return nil
}
