// Package middleware exposes net/http adapters that gate handlers on a valid
// authcore access token.
//
// # Guards
//
//   - [Guard] rejects requests without a live bearer token.
//   - [EmailFromContext] reads the subject injected by [Guard].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token parsing,
// signature checks and revocation lookups all happen in
// authcore.Engine.GetEmailFromToken.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Distinguish revoked, expired and malformed tokens in the response.
package middleware
