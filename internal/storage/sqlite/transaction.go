package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/storage"
)

// tx is the storage.Tx implementation: one discipline's eagerly-locked,
// immediate transaction (spec §5 "write-lock acquired eagerly"), held on a
// dedicated *sql.Conn so raw "BEGIN IMMEDIATE"/"SAVEPOINT" statements land
// on the same connection as the queries that follow them — database/sql's
// pool would otherwise hand different statements to different
// connections. Grounded on the teacher's CreateIssue transaction handling
// in internal/storage/sqlite/queries.go.
type tx struct {
	conn      *sql.Conn
	committed bool
	store     *SQLiteStorage
}

var _ storage.Tx = (*tx)(nil)

// beginImmediateWithRetry starts an immediate transaction, retrying on
// SQLITE_BUSY with exponential backoff. The teacher hand-rolls this same
// retry loop; here it is generalized onto github.com/cenkalti/backoff/v4
// rather than reimplemented, since backoff is already a direct dependency.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8), ctx)
	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err != nil && isBusy(err) {
			return err // retryable
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, b)
}

func isBusy(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "busy")
}

// BeginDisciplineTx opens the single immediate transaction a discipline's
// entire pipeline run (C -> D -> F -> E) executes within.
func (s *SQLiteStorage) BeginDisciplineTx(ctx context.Context, d discipline.Tag) (storage.Tx, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for %s transaction: %w", d, err)
	}
	if err := beginImmediateWithRetry(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin immediate transaction for %s: %w", d, err)
	}
	return &tx{conn: conn, store: s}, nil
}

// Commit commits the enclosing transaction.
func (t *tx) Commit() error {
	if t.committed {
		return storage.ErrTxClosed
	}
	_, err := t.conn.ExecContext(context.Background(), "COMMIT")
	t.committed = true
	_ = t.conn.Close()
	return err
}

// Rollback rolls back the enclosing transaction, if it has not already
// been committed.
func (t *tx) Rollback() error {
	if t.committed {
		return nil
	}
	_, err := t.conn.ExecContext(context.Background(), "ROLLBACK")
	t.committed = true
	_ = t.conn.Close()
	return err
}

// savepointSeq gives each nested savepoint a unique name even when the
// same label is used more than once within a transaction (e.g. retried
// stages).
var savepointSeq int

// Savepoint runs fn inside a nested SAVEPOINT. A failure in fn (or a
// panic, re-thrown after rollback) rolls back to the savepoint only,
// leaving the enclosing discipline transaction alive — spec §5's "Stages
// C/D/F/E within a discipline execute within nested savepoints; savepoint
// failure rolls back the stage but not the enclosing transaction."
func (t *tx) Savepoint(ctx context.Context, label string, fn func(ctx context.Context) error) (err error) {
	savepointSeq++
	name := fmt.Sprintf("sp_%s_%d", sanitizeSavepointLabel(label), savepointSeq)

	if _, execErr := t.conn.ExecContext(ctx, "SAVEPOINT "+name); execErr != nil {
		return fmt.Errorf("savepoint %s: %w", name, execErr)
	}

	defer func() {
		if r := recover(); r != nil {
			_, _ = t.conn.ExecContext(context.Background(), "ROLLBACK TO "+name)
			_, _ = t.conn.ExecContext(context.Background(), "RELEASE "+name)
			panic(r)
		}
	}()

	if runErr := fn(ctx); runErr != nil {
		_, _ = t.conn.ExecContext(context.Background(), "ROLLBACK TO "+name)
		_, relErr := t.conn.ExecContext(context.Background(), "RELEASE "+name)
		if relErr != nil {
			return fmt.Errorf("%w (and failed to release savepoint: %v)", runErr, relErr)
		}
		return runErr
	}

	if _, relErr := t.conn.ExecContext(ctx, "RELEASE "+name); relErr != nil {
		return fmt.Errorf("release savepoint %s: %w", name, relErr)
	}
	return nil
}

func sanitizeSavepointLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// execer is satisfied by both *sql.Conn and *sql.Tx-shaped wrappers;
// used so query helpers can run either inside a transaction's connection
// or (for read-only reporting queries) directly against the pool.
// Grounded on the teacher's identically named interface in
// internal/storage/sqlite/blocked_cache.go.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStorage) execer(t storage.Tx) execer {
	if t == nil {
		return s.db
	}
	return t.(*tx).conn
}
