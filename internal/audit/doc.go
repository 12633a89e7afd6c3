// Package audit relays security events to a sink without blocking the
// operation that produced them.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: timestamp, type, account, source and outcome.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The Engine does that.
//   - Import authcore or any sibling internal package.
package audit
