// Package token issues and verifies the short-lived signed access tokens
// handed out by the session engine.
//
// Claims are self-contained: subject (account email), role, a unique token
// identifier (jti) used as the revocation key, issued-at and expiry. Reading
// claims and remaining lifetime never requires a storage round-trip;
// revocation is checked separately by the caller.
package token
