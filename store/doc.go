// Package store persists the client-scoped credential record: the access
// token, the renewal token, and the denormalized user summary that accompany
// an authenticated session.
//
// # Design
//
// A store holds zero or one [Record] at a time. Get/Put/Clear are atomic with
// respect to each other; Clear is idempotent. The access token's expiry is
// never persisted separately — it is always re-derived from the token itself
// (see the token package), so a stale cached expiry can never desynchronize
// from the credential it describes.
//
// Four backends ship with the package: [Memory] for tests and short-lived
// processes, [File] for single-user CLI clients, [Bolt] for embedded local
// persistence, and [Redis] for clients that share a session across processes.
//
// # Architecture boundaries
//
// This package owns persistence only. It never decodes tokens, never talks to
// the remote authority, and never decides whether a record is still valid.
//
// # What this package must NOT do
//
//   - Import sessionkit, token, or authority.
//   - Perform network I/O other than through the injected Redis client.
//   - Mutate a Record handed to or returned from a Store.
package store
