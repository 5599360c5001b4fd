// Package store provides SQLite-backed durable storage for armguard.
//
// Two tables live in one database file:
//   - params: the durable vehicle parameter layer. Only explicit saves write
//     here; the offset controller's live corrections never do.
//   - journal: an append-only record of operator notifications and arming
//     decisions, grouped by session token.
//
// Journal rows are ordered by seq, never by timestamp, so a session's
// journal reads back in the order it was written.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
