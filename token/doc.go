// Package token decodes access-token claims locally and answers the one
// question the session manager needs without a network round-trip: is this
// credential definitely expired?
//
// # Design
//
// The client is not the verifying party — the remote authority is — so
// claims are decoded unverified via [jwt.Parser.ParseUnverified]. Expiry is
// always derived from the token's own exp claim, never from a separately
// cached timestamp that could desynchronize. [Expired] applies a small
// negative skew: a token that expires within the skew window is treated as
// already expired so a request never races the boundary in flight.
//
// # What this package must NOT do
//
//   - Perform I/O or consult a clock of its own (callers pass now).
//   - Verify signatures or accept a token as valid; only the authority does.
//   - Panic on malformed input; a token that cannot be decoded is expired.
package token
