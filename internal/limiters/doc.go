// Package limiters tracks failed login attempts and derives lockouts from
// them.
//
// [AttemptTracker] keeps two keys per submitted identifier in a kv.Store: a
// failure counter whose expiry slides with every failure, and a lock marker
// created once with a fixed expiry when the counter reaches the threshold.
// Increment and classification happen in one call so no caller reads a count
// and then decides on stale data.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Decide what a lockout means to the caller. The Engine maps it to errors.
package limiters
