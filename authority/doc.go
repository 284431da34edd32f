// Package authority is the HTTP client for the remote auth authority. It
// covers every endpoint the session manager consumes: login, registration,
// access-token validation, renewal-token exchange, profile read/update, and
// password-reset requests.
//
// # Error taxonomy
//
// Outcomes are classified so the session manager and the request wrapper can
// branch without inspecting transport detail:
//
//   - [ErrRejected]: the authority answered 401/403 — the presented
//     credential is not accepted. Triggers the renewal path.
//   - [ErrUnavailable]: transport failure or 5xx — transient, the caller
//     must not destroy stored credentials over it.
//   - [ErrInvalidCredentials], [ErrAccountExists]: user-facing login and
//     registration failures, resolved at the call site.
//   - [StatusError]: any other non-success status, passed through unchanged.
//
// # What this package must NOT do
//
//   - Read or write the credential store.
//   - Retry, renew, or otherwise decide policy; it reports outcomes only.
//   - Import sessionkit or token.
package authority
