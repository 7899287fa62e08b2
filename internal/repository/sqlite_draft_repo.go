package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mbeoliero/convsync/internal/entity"
)

const sqliteDraftSchema = `CREATE TABLE IF NOT EXISTS drafts (
	conversation_id TEXT PRIMARY KEY,
	text            TEXT NOT NULL,
	updated_at      INTEGER NOT NULL
)`

// SQLiteDraftRepo stores drafts in a local SQLite file
type SQLiteDraftRepo struct {
	db *sql.DB
}

// NewSQLiteDraftRepo creates a SQLiteDraftRepo and ensures its schema exists
func NewSQLiteDraftRepo(ctx context.Context, db *sql.DB) (*SQLiteDraftRepo, error) {
	if _, err := db.ExecContext(ctx, sqliteDraftSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteDraftRepo{db: db}, nil
}

// OpenSQLiteDraftRepo opens the SQLite file at path
func OpenSQLiteDraftRepo(ctx context.Context, path string) (*SQLiteDraftRepo, error) {
	db, err := initSQLite(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDraftRepo(ctx, db)
}

// Get gets the draft for a conversation
func (r *SQLiteDraftRepo) Get(ctx context.Context, conversationId string) (string, bool, error) {
	var text string
	err := r.db.QueryRowContext(ctx,
		"SELECT text FROM drafts WHERE conversation_id = ?", conversationId).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return text, true, nil
}

// Set upserts the draft for a conversation
func (r *SQLiteDraftRepo) Set(ctx context.Context, conversationId, text string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drafts (conversation_id, text, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at`,
		conversationId, text, entity.NowUnixMilli())
	return err
}

// Delete removes the draft for a conversation
func (r *SQLiteDraftRepo) Delete(ctx context.Context, conversationId string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM drafts WHERE conversation_id = ?", conversationId)
	return err
}

// Ping checks the database handle
func (r *SQLiteDraftRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database
func (r *SQLiteDraftRepo) Close() error {
	return r.db.Close()
}
