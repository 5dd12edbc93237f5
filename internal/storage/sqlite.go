package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reportgen/internal/knowledge"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			text TEXT,
			metadata JSON,
			embedding BLOB,
			PRIMARY KEY (collection, id)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			payload JSON NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)

// --- Collections ---

// Collection returns the named document collection. Collections share the
// documents table and are created implicitly on first write.
func (s *SQLiteStore) Collection(name string) knowledge.Indexer {
	return &Collection{db: s.db, name: name}
}

// Collection is a named set of embedded chunks. It implements
// knowledge.Indexer.
type Collection struct {
	db   *sql.DB
	name string
}

func (c *Collection) Add(ctx context.Context, items []knowledge.VectorItem) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, text, metadata, embedding) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			text=excluded.text,
			metadata=excluded.metadata,
			embedding=excluded.embedding
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		meta, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", item.ID, err)
		}
		blob, err := encodeEmbedding(item.Embedding)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.name, item.ID, item.Text, meta, blob); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Search ranks every chunk of the collection by cosine distance. A linear
// scan is fast enough for the few thousand chunks of one source document.
func (c *Collection) Search(ctx context.Context, queryVector []float32, topK int) ([]knowledge.SearchResult, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT id, text, metadata, embedding FROM documents WHERE collection = ?", c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []knowledge.SearchResult
	for rows.Next() {
		var (
			r     knowledge.SearchResult
			meta  []byte
			embed []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &embed); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &r.Metadata)
		}
		vec, err := decodeEmbedding(embed)
		if err != nil {
			continue
		}
		r.Distance = knowledge.CosineDistance(queryVector, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return knowledge.TopK(results, topK), nil
}

// Clear removes every chunk of the collection.
func (c *Collection) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", c.name)
	return err
}

// Count reports the number of chunks in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?", c.name).Scan(&n)
	return n, err
}

func encodeEmbedding(vec []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// --- SessionStore Implementation ---

func (s *SQLiteStore) SaveSession(ctx context.Context, id string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at
	`, id, payload, time.Now().UnixNano())
	return err
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM sessions WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, updated_at FROM sessions ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			info SessionInfo
			nano int64
		)
		if err := rows.Scan(&info.ID, &nano); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(0, nano)
		out = append(out, info)
	}
	return out, rows.Err()
}
