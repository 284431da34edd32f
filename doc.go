// Package sessionkit manages the client-side credential lifecycle for
// applications that authenticate against a remote authority over HTTP: it
// holds the access/renewal token pair, decides expiry locally, revalidates
// periodically, renews transparently with single-flight semantics, and
// publishes one consistent session state to every consumer.
//
// The package is designed for concurrent clients: Manager methods are safe
// to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Manager], [Builder],
// [Config], and value types (SessionState, Credentials, MetricsSnapshot).
// Persistence lives in store, claim decoding in token, the HTTP client in
// authority; metric storage lives under internal/ and is never exported.
//
// # Ownership
//
// The credential store and the published session state are written only by
// the Manager and its renewal coordinator. Consumers read snapshots and
// subscriptions; they request transitions through Login, Logout, and Do.
//
// # What this package must NOT do
//
//   - Expose the store record by reference; every read hands out a copy.
//   - Start a second renewal exchange while one is in flight.
//   - Destroy stored credentials over a transient authority failure.
package sessionkit
