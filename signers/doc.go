// Package signers provides convenience constructors for creating
// ledger.Signer implementations for the system wallet.
//
// It offers two patterns:
//   - FromSecret: Wraps a Stellar secret key (S...) using stellar/go keypair
//     for in-process signing.
//   - FromCallback: Wraps a custom signing function (e.g., HSM, custodial
//     API, external service) so the secret key never enters this process.
//
// Both return implementations of ledger.Signer. Per spec's non-goals, this
// package never manages end-user keys — only the single system wallet used
// to pay out onramp/bill-payment cNGN and process refunds.
package signers
