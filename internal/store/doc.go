// Package store is a SQLite document backend implementing backend.Store,
// plus the account table used by the auth package.
//
// Documents live in one table keyed by (collection, id) with their fields
// stored as JSON. Collection paths nest with slashes, so an event's
// messages are the collection "events/<id>/messages".
//
// # Ordering
//
//   - Each document gets a seq on first insert, above every seq already
//     in its collection. FetchAll and unordered live queries return
//     documents by seq.
//   - Ordered live queries sort by the named field, then by seq.
//   - backend.ServerTimestamp resolves to a fixed-width UTC timestamp that
//     strictly increases across writes from one Store.
//   - Transactions take the write lock when they begin (_txlock=immediate),
//     so seqs and timestamps are read in commit order across processes.
//
// # Live queries
//
// Every committed write signals its collection on the Store's notifier.
// A live query re-reads the collection after each signal. With a Redis
// notifier, writes made by other processes wake local queries too.
// Without one, live queries poll PRAGMA data_version and re-read when
// another connection has committed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
