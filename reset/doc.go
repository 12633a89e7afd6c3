// Package reset implements the password reset token ledger.
//
// A reset token is single use and time boxed. Issuance is limited per
// account over a rolling window; callers decide how to present a refused
// issuance (authcore keeps it silent). Only the SHA-256 hash of a token is
// persisted.
//
// Consumption is a compare-and-set on the used flag, so a token can be
// claimed at most once even under concurrent presentation.
//
// # What this package must NOT do
//
//   - Import authcore.
//   - Send notifications or change passwords.
package reset
