package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/Linexox/Banxious/internal/model/card"
	"github.com/Linexox/Banxious/internal/model/chat"
)

// ErrCacheMiss indicates no card has been cached for the user yet.
var ErrCacheMiss = errors.New("card cache miss")

// Store 基于本地 SQLite 持久化对话记录与卡片缓存。
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path, ensuring the
// parent directory exists, and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create db directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "open db at %s", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping db at %s", path)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_user_created
			ON conversations(user_id, created_at_ms);

		CREATE TABLE IF NOT EXISTS card_cache (
			user_id TEXT PRIMARY KEY,
			card_json TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);
	`)
	return errors.Wrap(err, "migrate")
}

// SaveTurn appends one turn to the user's conversation log and returns
// the stored record including its assigned id.
func (s *Store) SaveTurn(ctx context.Context, userID, role, content string) (chat.Turn, error) {
	if userID == "" {
		return chat.Turn{}, errors.New("save turn: empty user id")
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, role, content, created_at_ms) VALUES (?, ?, ?, ?)`,
		userID, role, content, now.UnixMilli(),
	)
	if err != nil {
		return chat.Turn{}, errors.Wrap(err, "save turn")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return chat.Turn{}, errors.Wrap(err, "save turn: last insert id")
	}

	return chat.Turn{
		ID:        id,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// RecentTurns returns up to limit most recent turns for the user,
// ordered oldest first. Ties on created_at are broken by id.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]chat.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at_ms
		 FROM conversations
		 WHERE user_id = ?
		 ORDER BY created_at_ms DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "recent turns")
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var t chat.Turn
		var createdMs int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &createdMs); err != nil {
			return nil, errors.Wrap(err, "recent turns: scan")
		}
		t.CreatedAt = time.UnixMilli(createdMs).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "recent turns: rows")
	}

	// The query walks newest first so LIMIT keeps the tail of the log;
	// callers want chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// UpsertCardCache replaces the user's cached card in a single statement,
// so concurrent readers observe either the previous or the new value.
func (s *Store) UpsertCardCache(ctx context.Context, userID, cardJSON string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO card_cache (user_id, card_json, updated_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			card_json = excluded.card_json,
			updated_at_ms = excluded.updated_at_ms`,
		userID, cardJSON, time.Now().UTC().UnixMilli(),
	)
	return errors.Wrap(err, "upsert card cache")
}

// GetCardCache returns the cached card for the user, or ErrCacheMiss.
func (s *Store) GetCardCache(ctx context.Context, userID string) (card.CacheEntry, error) {
	var entry card.CacheEntry
	var updatedMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, card_json, updated_at_ms FROM card_cache WHERE user_id = ?`,
		userID,
	).Scan(&entry.UserID, &entry.CardJSON, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return card.CacheEntry{}, ErrCacheMiss
	}
	if err != nil {
		return card.CacheEntry{}, errors.Wrap(err, "get card cache")
	}
	entry.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return entry, nil
}
