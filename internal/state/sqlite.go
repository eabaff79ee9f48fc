package state

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codex-k8s/rrbot/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps both ledgers as rows of a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect state database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply state schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Load reads every id stored for the named ledger.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*ledger.Ledger, error) {
	if err := checkName(name); err != nil {
		return ledger.New(), err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM ledger_entries WHERE ledger = ? ORDER BY id", name)
	if err != nil {
		return ledger.New(), fmt.Errorf("query %s ledger: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	l := ledger.New()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ledger.New(), fmt.Errorf("scan %s ledger: %w", name, err)
		}
		l.Insert(id)
	}
	if err := rows.Err(); err != nil {
		return ledger.New(), fmt.Errorf("read %s ledger: %w", name, err)
	}
	return l, nil
}

// Save replaces the rows of the named ledger in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, name string, l *ledger.Ledger) error {
	if err := checkName(name); err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("save %s ledger: ledger is nil", name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s ledger save: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_entries WHERE ledger = ?", name); err != nil {
		return fmt.Errorf("clear %s ledger: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO ledger_entries (ledger, id) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare %s ledger insert: %w", name, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range l.IDs() {
		if _, err := stmt.ExecContext(ctx, name, id); err != nil {
			return fmt.Errorf("insert %s ledger id %q: %w", name, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s ledger: %w", name, err)
	}
	return nil
}

// Describe returns the database path and ledger name.
func (s *SQLiteStore) Describe(name string) string {
	return s.path + "#" + name
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
