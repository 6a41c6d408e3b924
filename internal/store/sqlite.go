package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pairing-buds/companion/internal/model/chat"
)

// SQLiteContextStore persists conversation history and rolling summaries in a
// local SQLite database. Similarity lookups use token-overlap ranking over the
// user's past messages, which stands in for a dedicated vector store.
type SQLiteContextStore struct {
	db    *sql.DB
	clock func() time.Time
}

// OpenSQLite opens (and migrates) the context store at the given path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteContextStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteContextStore{db: db, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteContextStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    sender TEXT NOT NULL,
    content TEXT NOT NULL,
    is_voice INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages(user_id, created_at);
CREATE TABLE IF NOT EXISTS summaries (
    user_id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteContextStore) Close() error {
	return s.db.Close()
}

// RecentHistory returns up to limit most recent messages, oldest first.
func (s *SQLiteContextStore) RecentHistory(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, sender, content, is_voice, created_at FROM (
		     SELECT * FROM messages WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var voice int
		var created string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Sender, &m.Content, &voice, &created); err != nil {
			return nil, err
		}
		m.IsVoice = voice != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.CreatedAt = ts
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Summary returns the rolling summary for the user, or "" when none exists.
func (s *SQLiteContextStore) Summary(ctx context.Context, userID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM summaries WHERE user_id = ?`, userID).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query summary: %w", err)
	}
	return content, nil
}

// QuerySimilar ranks the user's past messages by token overlap with message.
func (s *SQLiteContextStore) QuerySimilar(ctx context.Context, userID, message string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM messages WHERE user_id = ? AND sender = ?
		 ORDER BY created_at DESC LIMIT 200`, userID, chat.SenderUser)
	if err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	defer rows.Close()

	type scored struct {
		text  string
		score int
	}
	query := tokenize(message)
	var candidates []scored
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		if score := overlap(query, tokenize(content)); score > 0 {
			candidates = append(candidates, scored{text: content, score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	results := make([]string, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.text)
	}
	return results, nil
}

// SaveTurn stores the user/ai message pair in one transaction.
func (s *SQLiteContextStore) SaveTurn(ctx context.Context, userMsg, aiMsg chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save turn: %w", err)
	}
	for _, msg := range []chat.Message{userMsg, aiMsg} {
		if err := s.insertMessage(ctx, tx, msg); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveMessage stores a single message.
func (s *SQLiteContextStore) SaveMessage(ctx context.Context, msg chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save message: %w", err)
	}
	if err := s.insertMessage(ctx, tx, msg); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteContextStore) insertMessage(ctx context.Context, tx *sql.Tx, msg chat.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.clock().UTC()
	}
	voice := 0
	if msg.IsVoice {
		voice = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages(id, user_id, sender, content, is_voice, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.Sender, msg.Content, voice,
		msg.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SaveSummary replaces the user's rolling summary.
func (s *SQLiteContextStore) SaveSummary(ctx context.Context, userID, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries(user_id, content, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET content=excluded.content, updated_at=excluded.updated_at`,
		userID, summary, s.clock().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// CountMessages reports the total stored messages for the user.
func (s *SQLiteContextStore) CountMessages(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

var _ ContextStore = (*SQLiteContextStore)(nil)
