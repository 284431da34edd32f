// Package metrics provides lock-free lifecycle counters for sessionkit.
//
// # Design
//
// Counters are stored in cache-line-padded slots and incremented atomically,
// so the write path is allocation-free and never contends across cores. A
// disabled instance turns every operation into a no-op.
//
// # Architecture boundaries
//
// This package owns counter storage and snapshot creation. Export to a
// monitoring system is the caller's job, starting from a Snapshot.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import sessionkit or any sibling package.
//   - Expose global metric registries.
package metrics
