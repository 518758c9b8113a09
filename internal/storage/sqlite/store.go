// Package sqlite is the only storage.Store implementation: a single SQLite
// file opened through github.com/ncruces/go-sqlite3, the pure-Go driver
// (registers as "sqlite3", no cgo) that this repository's teacher uses for
// exactly the same reason — a statically linked binary with no libsqlite3
// dependency.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rs/zerolog"

	"github.com/brandond/obra-upgrades/internal/storage"
)

var _ storage.Store = (*SQLiteStorage)(nil)

// SQLiteStorage is the concrete storage.Store. Exported so integration
// tests and cmd/obrad can construct it directly, the way the teacher
// exports *sqlite.SQLiteStorage from its own storage/sqlite package.
type SQLiteStorage struct {
	db  *sql.DB
	log zerolog.Logger

	// reconnectMu mirrors the teacher's same-named field; no method here
	// locks it, and nothing reopens the handle.
	reconnectMu sync.RWMutex
}

// Open opens (creating if necessary) the SQLite file at path, applies the
// pragmas required by spec §6 (foreign_keys, WAL, NORMAL locking and
// synchronous, no auto_vacuum), and ensures the schema exists.
func Open(path string, log zerolog.Logger) (*SQLiteStorage, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=locking_mode(NORMAL)&_pragma=synchronous(NORMAL)&_pragma=auto_vacuum(NONE)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Writes run on the one connection a discipline transaction holds
	// (BeginDisciplineTx); the API's reads and every query made outside a
	// transaction share this same pool.
	db.SetMaxOpenConns(8)

	s := &SQLiteStorage{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrapDBError("apply schema", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return wrapDBError("count schema_version", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
			return wrapDBError("seed schema_version", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SetConfig and GetConfig persist small operational flags (e.g. the
// process-wide "full scrape completed" flag of spec §5) across runs. Named
// and shaped directly on the teacher's internal/storage/sqlite/config.go.
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrapDBError("set config", err)
}

func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, wrapDBError("get config", err)
}
