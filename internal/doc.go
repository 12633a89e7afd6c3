// Package internal holds helpers private to authcore: opaque token
// generation and hashing shared by the refresh and reset stores.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: login attempt tracking and lockout
//   - stores: access-token revocation list
//   - notify: async best-effort notification delivery
//   - idgen: time-ordered int64 identifiers
//   - config: environment and file configuration loading for cmd/authd
//   - obs: logger, tracing, error reporting and metrics endpoint bootstrap
//   - httpapi: gin adapter exposing the Engine over HTTP
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Persist or log plaintext tokens.
package internal
