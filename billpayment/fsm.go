// Package billpayment implements the bill-payment processor worker (spec
// §4.I): a cooperative polling loop that drives cNGN-to-utility-token
// payments through receipt verification, account checks, provider
// submission, status polling, retry, and compensating refund.
package billpayment

import (
	"fmt"

	"github.com/cngnbridge/core/bridge"
	"github.com/cngnbridge/core/errors"
)

// legalTransitions is the bill sub-state machine from spec §4.I.
var legalTransitions = map[bridge.BillStatus]map[bridge.BillStatus]bool{
	bridge.BillStatusPendingPayment: {
		bridge.BillStatusCNGNReceived:    true,
		bridge.BillStatusRefundInitiated: true,
	},
	bridge.BillStatusCNGNReceived: {
		bridge.BillStatusVerifyingAccount: true,
	},
	bridge.BillStatusVerifyingAccount: {
		bridge.BillStatusProcessingBill:  true,
		bridge.BillStatusAccountInvalid:  true,
		bridge.BillStatusRefundInitiated: true,
	},
	bridge.BillStatusAccountInvalid: {
		bridge.BillStatusRefundInitiated: true,
	},
	bridge.BillStatusProcessingBill: {
		bridge.BillStatusProviderProcessing: true,
		bridge.BillStatusCompleted:          true,
		bridge.BillStatusRetryScheduled:     true,
	},
	bridge.BillStatusProviderProcessing: {
		bridge.BillStatusCompleted:      true,
		bridge.BillStatusRetryScheduled: true,
	},
	bridge.BillStatusRetryScheduled: {
		bridge.BillStatusProcessingBill:  true,
		bridge.BillStatusRefundInitiated: true,
	},
	bridge.BillStatusProviderFailed: {
		bridge.BillStatusRefundInitiated: true,
	},
	bridge.BillStatusRefundInitiated: {
		bridge.BillStatusRefundProcessing: true,
	},
	bridge.BillStatusRefundProcessing: {
		bridge.BillStatusRefunded: true,
	},
	bridge.BillStatusCompleted: {},
	bridge.BillStatusRefunded:  {},
}

// ValidateTransition reports whether moving a bill payment from "from" to
// "to" is legal.
func ValidateTransition(from, to bridge.BillStatus) error {
	validToStates, exists := legalTransitions[from]
	if !exists {
		return errors.NewBillPaymentError(errors.KindInvariant, errors.PROVIDER_FAILURE,
			fmt.Sprintf("unknown source bill status: %s", from), nil)
	}
	if !validToStates[to] {
		return errors.NewBillPaymentError(errors.KindInvariant, errors.PROVIDER_FAILURE,
			fmt.Sprintf("illegal bill transition from %s to %s", from, to), nil)
	}
	return nil
}

// RetryBackoff is the schedule from spec §4.I step 5.
var RetryBackoff = []int64{10, 60, 300} // seconds

// MaxRetries is the retry budget before routing to refund (spec §4.I step 5).
const MaxRetries = 3

// PollHorizonSeconds bounds how long a single provider_processing attempt may poll
// before being routed to retry_scheduled with reason token_timeout.
const PollHorizonSeconds = 300

// IdleThresholds is the per-bill-type idle duration before the status
// poller re-checks a provider_processing row (spec §4.I step 4).
var IdleThresholds = map[bridge.BillType]int64{
	bridge.BillTypeAirtime:     30,
	bridge.BillTypeData:        30,
	bridge.BillTypeElectricity: 60,
	bridge.BillTypeCableTV:     300,
}

// ProviderPreference lists primary/secondary bill providers per bill type
// (spec §4.I step 3).
var ProviderPreference = map[bridge.BillType][2]string{
	bridge.BillTypeElectricity: {"flutterwave", "vtpass"},
	bridge.BillTypeAirtime:     {"vtpass", "flutterwave"},
	bridge.BillTypeData:        {"vtpass", "flutterwave"},
	bridge.BillTypeCableTV:     {"flutterwave", "vtpass"},
}
