// Moderation-flag indexing and query engine.
//
// This package records user-submitted flags against posts or accounts, indexes
// them along several independent dimensions (type, state, reporter, assignee,
// target owner, category), and answers paginated multi-dimension filter
// queries by combining per-dimension indices with set intersection and union.
// It also keeps an append-only history of state changes and a note log per
// flag, and enforces idempotent creation (at most one flag per
// type/target/reporter triple).
//
// Identity, authorization, target resolution and notification delivery are
// consumed as interfaces; see the `directory` and `notifier` packages for
// reference implementations, and `sortedstore` for the index storage backend.
package flags
