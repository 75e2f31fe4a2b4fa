// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/storage"
)

//go:embed schema.sql
var schema string

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed driver and applies the schema.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", withParams(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if strings.HasPrefix(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// SQLite-specific pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// withParams turns foreign keys on for every pooled connection and waits on
// a locked database instead of failing immediately.
func withParams(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (d *Driver) ListConversations(ctx context.Context, userID string) ([]*llm.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC, created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	out := make([]*llm.Conversation, 0)
	for rows.Next() {
		c := &llm.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

func (d *Driver) GetConversation(ctx context.Context, conversationID string) (*llm.Conversation, error) {
	c := &llm.Conversation{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = ?`, conversationID).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: conversationID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	return c, nil
}

func (d *Driver) ListMessages(ctx context.Context, conversationID string) ([]*llm.Message, error) {
	if _, err := d.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	out := make([]*llm.Message, 0)
	for rows.Next() {
		m := &llm.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

func (d *Driver) CreateConversation(ctx context.Context, userID, title string) (string, error) {
	if userID == "" {
		return "", errors.New("cannot create conversation without a user")
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, id, userID, title, now, now)
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}

	return id, nil
}

func (d *Driver) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	if err := storage.ValidateMessage(conversationID, role); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.NotFoundError{ID: conversationID}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`, uuid.NewString(), conversationID, role, content, now)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}

	return tx.Commit()
}

func (d *Driver) RenameConversation(ctx context.Context, conversationID, title string) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("renaming conversation: %w", err)
	}

	return requireRow(res, conversationID)
}

func (d *Driver) DeleteConversation(ctx context.Context, conversationID string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	return requireRow(res, conversationID)
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.db.Close()
}

func requireRow(res sql.Result, conversationID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: conversationID}
	}
	return nil
}
