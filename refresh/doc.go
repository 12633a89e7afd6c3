// Package refresh implements long-lived rotating refresh tokens.
//
// # Token format
//
// Tokens are 32 random bytes, base64url encoded without padding. Stores only
// ever see the SHA-256 hex hash of a token; the plaintext exists on the wire
// and in the caller's hands.
//
// # Rotation
//
// Presenting a token revokes it and creates its successor in one storage
// operation ([Store.Rotate]). An absent, expired or already revoked token
// yields [ErrInvalid] and the three cases are indistinguishable. Two
// concurrent presentations of one token produce exactly one successor.
//
// # Backends
//
//   - [Memory]: mutex-guarded maps for tests and single-node deployments.
//   - [RedisStore]: one hash per token plus a per-user index; rotation is a
//     Lua script.
//   - [PostgresStore]: conditional UPDATE ... WHERE revoked = FALSE and the
//     successor INSERT share one transaction.
//
// # What this package must NOT do
//
//   - Import authcore.
//   - Resolve accounts or issue access tokens.
package refresh
