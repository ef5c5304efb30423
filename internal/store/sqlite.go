// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/braid/internal/plaintext"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id                     TEXT PRIMARY KEY,
			owner_id               TEXT NOT NULL,
			title                  TEXT NOT NULL,
			model                  TEXT NOT NULL,
			temperature            REAL NOT NULL,
			parent_conversation_id TEXT REFERENCES conversations(id) ON DELETE CASCADE,
			parent_message_id      TEXT,
			created_at             TEXT NOT NULL,
			updated_at             TEXT NOT NULL,

			CHECK ((parent_conversation_id IS NULL) = (parent_message_id IS NULL))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_owner_updated
			ON conversations(owner_id, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_conversations_parent
			ON conversations(parent_conversation_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			owner_id        TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			annotations     TEXT NOT NULL DEFAULT '[]',
			created_at      TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant', 'system'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateConversation inserts a new conversation. A side thread must reference
// an existing conversation owned by the same user; a dangling or foreign
// parent fails with ErrValidation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", ErrValidation)
	}
	if (conv.ParentConversationID == nil) != (conv.ParentMessageID == nil) {
		return fmt.Errorf("%w: parent_conversation_id and parent_message_id must be set together", ErrValidation)
	}

	if conv.ParentConversationID != nil {
		// Parent must exist and belong to the same owner
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM conversations WHERE id = ? AND owner_id = ?`,
			*conv.ParentConversationID, conv.OwnerID,
		).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: parent conversation does not exist", ErrValidation)
		}
		if err != nil {
			return fmt.Errorf("checking parent conversation: %w", err)
		}
	}

	query := `
		INSERT INTO conversations (id, owner_id, title, model, temperature,
			parent_conversation_id, parent_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.OwnerID,
		conv.Title,
		conv.Model,
		conv.Temperature,
		conv.ParentConversationID,
		conv.ParentMessageID,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "side_thread", conv.IsSideThread())
	return nil
}

const conversationColumns = `id, owner_id, title, model, temperature,
	parent_conversation_id, parent_message_id, created_at, updated_at`

// scanConversation scans one conversation row from a row scanner.
func scanConversation(scan func(dest ...any) error) (*Conversation, error) {
	var conv Conversation
	var parentConv, parentMsg sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(
		&conv.ID,
		&conv.OwnerID,
		&conv.Title,
		&conv.Model,
		&conv.Temperature,
		&parentConv,
		&parentMsg,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if parentConv.Valid {
		conv.ParentConversationID = &parentConv.String
	}
	if parentMsg.Valid {
		conv.ParentMessageID = &parentMsg.String
	}

	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

// GetConversation retrieves a conversation by ID scoped to its owner.
// Returns ErrNotFound both when the id is absent and when it belongs to a
// different owner.
func (s *SQLiteStore) GetConversation(ctx context.Context, id, ownerID string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ? AND owner_id = ?`

	row := s.db.QueryRowContext(ctx, query, id, ownerID)
	conv, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns a page of the owner's root conversations (side
// threads excluded), ordered by most recent activity.
func (s *SQLiteStore) ListConversations(ctx context.Context, ownerID string, page, pageSize int) ([]*Conversation, *Page, error) {
	page, pageSize = normalizePaging(page, pageSize)

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE owner_id = ? AND parent_conversation_id IS NULL`,
		ownerID,
	).Scan(&total)
	if err != nil {
		return nil, nil, fmt.Errorf("counting conversations: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE owner_id = ? AND parent_conversation_id IS NULL
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID, pageSize, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	meta := &Page{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		HasMore:    offset+len(convs) < total,
	}
	return convs, meta, nil
}

// UpdateConversation applies a partial update; nil patch fields are left
// unchanged. Returns ErrNotFound on owner mismatch.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, id, ownerID string, patch ConversationPatch) (*Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	conv, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if patch.Title != nil {
		conv.Title = *patch.Title
	}
	if patch.Model != nil {
		conv.Model = *patch.Model
	}
	if patch.Temperature != nil {
		conv.Temperature = *patch.Temperature
	}
	conv.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET title = ?, model = ?, temperature = ?, updated_at = ? WHERE id = ?`,
		conv.Title, conv.Model, conv.Temperature, conv.UpdatedAt.Format(time.RFC3339), conv.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}

	s.logger.Debug("updated conversation", "id", id)
	return conv, nil
}

// DeleteConversation removes a conversation, its messages, and all descendant
// side threads. The whole subtree is deleted in one transaction: either all
// of it goes or none of it does.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id, ownerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ? AND owner_id = ?`, id, ownerID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking conversation: %w", err)
	}

	// Collect the subtree rooted at id, then delete messages and
	// conversations explicitly so the cascade never depends on the
	// connection's foreign_keys pragma.
	const subtree = `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM conversations WHERE id = ?
			UNION ALL
			SELECT c.id FROM conversations c
			JOIN subtree s ON c.parent_conversation_id = s.id
		)
		SELECT id FROM subtree
	`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id IN (`+subtree+`)`, id,
	); err != nil {
		return fmt.Errorf("deleting subtree messages: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id IN (`+subtree+`)`, id,
	); err != nil {
		return fmt.Errorf("deleting subtree conversations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("deleted conversation subtree", "id", id)
	return nil
}

// CreateMessage inserts a message and bumps the owning conversation's
// updated_at. The conversation must exist and belong to the same owner.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	if !ValidRole(msg.Role) {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, msg.Role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ? AND owner_id = ?`,
		msg.ConversationID, msg.OwnerID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking conversation: %w", err)
	}

	annotations, err := marshalAnnotations(msg.Annotations)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, owner_id, role, content, annotations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ConversationID,
		msg.OwnerID,
		msg.Role,
		msg.Content,
		annotations,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("created message", "id", msg.ID, "conversation_id", msg.ConversationID, "role", msg.Role)
	return nil
}

const messageColumns = `id, conversation_id, owner_id, role, content, annotations, created_at`

// scanMessage scans one message row from a row scanner.
func scanMessage(scan func(dest ...any) error) (*Message, error) {
	var msg Message
	var annotations string
	var createdAtStr string

	err := scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.OwnerID,
		&msg.Role,
		&msg.Content,
		&annotations,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(annotations), &msg.Annotations); err != nil {
		return nil, fmt.Errorf("parsing annotations: %w", err)
	}

	msg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing message created_at: %w", err)
	}

	return &msg, nil
}

// GetMessage retrieves a message by ID scoped to its owner.
func (s *SQLiteStore) GetMessage(ctx context.Context, id, ownerID string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}
	return msg, nil
}

// ListMessages returns one page of a conversation's messages. Pages are
// anchored at the newest end of the history: page 1 is the most recent
// pageSize messages, page 2 the ones before those, and so on. Within a page
// messages are ordered oldest first so callers can prepend older pages.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID, ownerID string, page, pageSize int) ([]*Message, *Page, error) {
	page, pageSize = normalizePaging(page, pageSize)

	// Ownership check first; foreign conversations look absent
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ? AND owner_id = ?`,
		conversationID, ownerID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("checking conversation: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID,
	).Scan(&total)
	if err != nil {
		return nil, nil, fmt.Errorf("counting messages: %w", err)
	}

	// Take the page walking backward from the newest message, then flip it
	// to chronological order
	offset := (page - 1) * pageSize
	query := `
		SELECT ` + messageColumns + `
		FROM (
			SELECT ` + messageColumns + `, rowid AS seq
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ? OFFSET ?
		)
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, pageSize, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating message rows: %w", err)
	}

	meta := &Page{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		HasMore:    offset+len(messages) < total,
	}
	return messages, meta, nil
}

// ListAllMessages returns every message of a conversation in chronological
// order. Used for provider history assembly, not for UI pagination.
func (s *SQLiteStore) ListAllMessages(ctx context.Context, conversationID, ownerID string) ([]*Message, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ? AND owner_id = ?`,
		conversationID, ownerID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

// AttachButtonAnnotation records a selection range on a message. The range is
// validated against the message's rendered plain text; an exact (start,end)
// duplicate replaces the existing entry, overlapping ranges are rejected.
func (s *SQLiteStore) AttachButtonAnnotation(ctx context.Context, messageID, ownerID string, ann ButtonAnnotation) (*Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ? AND owner_id = ?`,
		messageID, ownerID,
	)
	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	updated, err := mergeAnnotation(msg.Content, msg.Annotations, ann)
	if err != nil {
		return nil, err
	}
	msg.Annotations = updated

	data, err := marshalAnnotations(updated)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE messages SET annotations = ? WHERE id = ?`, data, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating annotations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing annotation: %w", err)
	}

	s.logger.Debug("attached annotation",
		"message_id", messageID,
		"start", ann.Start,
		"end", ann.End,
		"child", ann.ChildConversationID)
	return msg, nil
}

// mergeAnnotation validates a new range against the message's plain text and
// existing annotations and returns the updated, start-sorted set.
func mergeAnnotation(content string, existing []ButtonAnnotation, ann ButtonAnnotation) ([]ButtonAnnotation, error) {
	textLen := len([]rune(plaintext.Extract(content)))
	if ann.Start < 0 || ann.Start >= ann.End || ann.End > textLen {
		return nil, fmt.Errorf("%w: annotation range [%d,%d) out of bounds for text length %d",
			ErrValidation, ann.Start, ann.End, textLen)
	}
	if ann.ChildConversationID == "" {
		return nil, fmt.Errorf("%w: child_conversation_id is required", ErrValidation)
	}

	merged := make([]ButtonAnnotation, 0, len(existing)+1)
	for _, a := range existing {
		if a.Start == ann.Start && a.End == ann.End {
			// Exact duplicate range: last writer wins
			continue
		}
		if a.Start < ann.End && ann.Start < a.End {
			return nil, fmt.Errorf("%w: annotation range [%d,%d) overlaps existing [%d,%d)",
				ErrValidation, ann.Start, ann.End, a.Start, a.End)
		}
		merged = append(merged, a)
	}
	merged = append(merged, ann)

	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })
	return merged, nil
}

// marshalAnnotations encodes annotations as the JSON column value, always a
// valid array so readers never see NULL.
func marshalAnnotations(anns []ButtonAnnotation) (string, error) {
	if anns == nil {
		anns = []ButtonAnnotation{}
	}
	data, err := json.Marshal(anns)
	if err != nil {
		return "", fmt.Errorf("encoding annotations: %w", err)
	}
	return string(data), nil
}

// normalizePaging clamps page and pageSize to sane bounds
func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
