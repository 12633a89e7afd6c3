// Package stores provides the access-token revocation list.
//
// # Design
//
// [RevocationList] keeps one kv.Store key per revoked jti with a TTL equal to
// the token's remaining lifetime, so an entry never outlives the token and is
// never retained permanently. Writing is best effort: a failed write is logged
// and reported as false. Reading fails closed: a token whose status cannot be
// confirmed is treated as revoked.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Parse or verify tokens. Callers supply the jti and remaining lifetime.
package stores
