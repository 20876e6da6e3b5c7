package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aldercy/wyrd/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS objects (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects(kind);
`

// SQLite is a Provider backed by a SQLite document table: one row per
// object, payload stored as the object's JSON encoding.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Load reads every stored object.
func (s *SQLite) Load() (map[string]models.Object, error) {
	rows, err := s.conn.Query(`SELECT id, payload FROM objects`)
	if err != nil {
		return nil, fmt.Errorf("storage: load: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Object)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var obj models.Object
		if err := json.Unmarshal([]byte(payload), &obj); err != nil {
			return nil, fmt.Errorf("storage: decode object %s: %w", id, err)
		}
		out[id] = obj
	}
	return out, rows.Err()
}

// Save replaces the stored snapshot inside one transaction.
func (s *SQLite) Save(snapshot map[string]models.Object) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM objects`); err != nil {
		return fmt.Errorf("storage: clear objects: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO objects (id, kind, payload, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for id, obj := range snapshot {
		payload, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("storage: encode object %s: %w", id, err)
		}
		if _, err := stmt.Exec(id, string(obj.Kind), string(payload), now); err != nil {
			return fmt.Errorf("storage: insert object %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Verify interface satisfaction at compile time.
var _ Provider = (*SQLite)(nil)
