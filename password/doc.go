// Package password implements the credential encoder used by the session
// engine: one-way hashing plus constant-time verification, and the password
// policy applied before any new credential is stored.
//
// # Encoders
//
//   - [Argon2] produces PHC strings: $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//   - [Bcrypt] produces standard $2a$ bcrypt hashes.
//
// Both report [Argon2.NeedsUpgrade] / [Bcrypt.NeedsUpgrade] so the engine can
// re-hash on the next successful login when parameters are raised.
//
// # Architecture boundaries
//
// This package owns hashing, verification and policy evaluation only. It never
// stores or retrieves passwords.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
