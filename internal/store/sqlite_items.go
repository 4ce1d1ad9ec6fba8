package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	"github.com/contextmemory/workmem/internal/fingerprint"
)

func init() {
	gob.Register(fingerprint.DenseVector{})
	gob.Register(fingerprint.SparseVector{})
	gob.Register(fingerprint.TokenMatrix{})
}

// SQLiteItemStore implements ItemStore over modernc.org/sqlite, following
// the same WAL-mode, single-writer-connection conventions as the BM25
// SQLite backend: concurrent readers, one writer, busy-timeout instead of
// lock errors.
type SQLiteItemStore struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ ItemStore = (*SQLiteItemStore)(nil)

// NewSQLiteItemStore opens or creates the item store at path. An empty path
// opens an in-memory store, used by tests.
func NewSQLiteItemStore(path string) (*SQLiteItemStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create item store directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open item store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteItemStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate item store: %w", err)
	}
	return s, nil
}

func (s *SQLiteItemStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			word_count INTEGER NOT NULL,
			tier TEXT NOT NULL,
			chunk_meta BLOB,
			fingerprint BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_session ON items(session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_items_tier ON items(tier)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Put writes the item and its secondary index entries in one transaction:
// a failed Put leaves no partial row visible to Get or GetBySession.
func (s *SQLiteItemStore) Put(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("item store is closed")
	}

	var fpBuf bytes.Buffer
	if err := gob.NewEncoder(&fpBuf).Encode(item.Fingerprint); err != nil {
		return fmt.Errorf("encode fingerprint: %w", err)
	}

	var chunkMetaBytes []byte
	if item.ChunkMeta != nil {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(item.ChunkMeta); err != nil {
			return fmt.Errorf("encode chunk meta: %w", err)
		}
		chunkMetaBytes = buf.Bytes()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, content, source, session_id, created_at, word_count, tier, chunk_meta, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content=excluded.content, source=excluded.source, session_id=excluded.session_id,
			created_at=excluded.created_at, word_count=excluded.word_count, tier=excluded.tier,
			chunk_meta=excluded.chunk_meta, fingerprint=excluded.fingerprint`,
		item.ID, item.Content, string(item.Source), item.SessionID,
		item.CreatedAt.UnixNano(), item.WordCount, string(item.Tier), chunkMetaBytes, fpBuf.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteItemStore) scanItem(row interface {
	Scan(dest ...any) error
}) (*Item, error) {
	var (
		id, content, source, sessionID, tier string
		createdAtNano                        int64
		wordCount                            int
		chunkMetaBytes, fpBytes              []byte
	)
	if err := row.Scan(&id, &content, &source, &sessionID, &createdAtNano, &wordCount, &tier, &chunkMetaBytes, &fpBytes); err != nil {
		return nil, err
	}

	var fp fingerprint.Fingerprint
	if err := gob.NewDecoder(bytes.NewReader(fpBytes)).Decode(&fp); err != nil {
		return nil, fmt.Errorf("decode fingerprint: %w", err)
	}

	var chunkMeta *ChunkMeta
	if len(chunkMetaBytes) > 0 {
		chunkMeta = &ChunkMeta{}
		if err := gob.NewDecoder(bytes.NewReader(chunkMetaBytes)).Decode(chunkMeta); err != nil {
			return nil, fmt.Errorf("decode chunk meta: %w", err)
		}
	}

	return &Item{
		ID:          id,
		Content:     content,
		Source:      SourceTag(source),
		SessionID:   sessionID,
		CreatedAt:   time.Unix(0, createdAtNano).UTC(),
		Fingerprint: fp,
		ChunkMeta:   chunkMeta,
		WordCount:   wordCount,
		Tier:        Tier(tier),
	}, nil
}

func (s *SQLiteItemStore) Get(ctx context.Context, id string) (*Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, fmt.Errorf("item store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, source, session_id, created_at, word_count, tier, chunk_meta, fingerprint
		FROM items WHERE id = ?`, id)
	item, err := s.scanItem(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, true, nil
}

// GetBySession returns a session's items ordered by creation time, stable.
func (s *SQLiteItemStore) GetBySession(ctx context.Context, sessionID string) ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("item store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, session_id, created_at, word_count, tier, chunk_meta, fingerprint
		FROM items WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session items: %w", err)
	}
	defer rows.Close()

	items := make([]*Item, 0)
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetRecent returns items across all sessions created at or after since,
// ordered by creation time ascending.
func (s *SQLiteItemStore) GetRecent(ctx context.Context, since time.Time, limit int) ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("item store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, session_id, created_at, word_count, tier, chunk_meta, fingerprint
		FROM items WHERE created_at >= ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer rows.Close()

	items := make([]*Item, 0)
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteItemStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("item store is closed")
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

func (s *SQLiteItemStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("item store is closed")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete item %s rows affected: %w", id, err)
	}
	return affected > 0, nil
}

func (s *SQLiteItemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
