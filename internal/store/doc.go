// Package store provides persistent storage for braid using SQLite.
//
// # Data Models
//
//   - Conversation: a chat thread. Side threads carry a parent conversation
//     and a parent message id; root conversations carry neither. The parent
//     relation forms a forest of conversation trees.
//   - Message: a single immutable entry. Its annotations column holds the
//     button ranges linking selected text to child conversations.
//   - ButtonAnnotation: a [start,end) range over a message's rendered plain
//     text plus the child conversation it opens.
//
// # Ownership
//
// Every row carries an owner id and every read is owner-scoped. A row owned
// by someone else is indistinguishable from a missing row: both surface as
// ErrNotFound.
//
// # Pagination
//
// Conversation listings return root conversations newest-activity first.
// Message listings are anchored at the newest end: page 1 holds the most
// recent pageSize messages, returned oldest first within the page so callers
// can prepend older pages as they walk backward.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 UTC text; insertion order breaks ties at
// equal second precision.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: entity absent or owned by someone else
//   - ErrValidation: malformed input (bad roles, dangling parents,
//     out-of-bounds or overlapping annotation ranges)
//
// All methods accept context.Context for cancellation support.
package store
