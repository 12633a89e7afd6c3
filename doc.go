// Package authcore is the authentication and session-lifecycle core: it
// verifies credentials, issues short-lived signed access tokens and rotating
// opaque refresh tokens, locks out identifiers after repeated failures,
// revokes access tokens before expiry and runs the password reset flow.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and the collaborator interfaces ([AccountStore],
// [Encoder], [Notifier], [IDGenerator], [Clock]). Lockout and revocation
// bookkeeping, audit dispatch and notification queuing live under internal/.
// Token persistence is pluggable through the refresh and reset packages;
// ephemeral TTL state goes through the kv package.
//
// # Error collapsing
//
// An unknown email and a wrong password both return [ErrInvalidCredentials].
// Absent, expired and already rotated refresh tokens all return
// [ErrRefreshInvalid]. Password reset requests for unknown or rate-limited
// accounts return nil. Notification and audit failures never change the
// result of the operation that produced them.
//
// # What this package must NOT do
//
//   - Log passwords or raw refresh, reset or access tokens.
//   - Persist refresh or reset tokens in plaintext; stores only see SHA-256
//     digests.
//   - Issue any credential before lockout bookkeeping for the attempt has
//     been recorded.
package authcore
