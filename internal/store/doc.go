// Package store implements the application's reactive state store.
//
// The store is a mapping from string keys to arbitrary values. Every write
// that changes a value publishes exactly one Event to all subscribers,
// synchronously and in subscription order. Writing a value that is deeply
// equal to the current one is a no-op.
//
// On top of plain Get/Set the store offers two async orchestration
// primitives:
//
//   - Query: cached fetch-and-store with a Resource status record
//     (idle, loading, success, error) and a time-to-live.
//   - Mutate: optimistic update with exact rollback when the remote task
//     fails.
//
// # Concurrency
//
// The store is safe for concurrent use. Listeners run on the goroutine that
// performed the write, after the store lock has been released, so a listener
// may itself call Set. Concurrent Query calls on the same key before the
// first one resolves are NOT de-duplicated: both fetchers run and the last
// write wins. Callers that need de-duplication must arrange it themselves.
package store
