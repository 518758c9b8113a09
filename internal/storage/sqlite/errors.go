package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/brandond/obra-upgrades/internal/storage"
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows into storage.ErrNotFound for consistent handling by
// callers regardless of backend. Grounded directly on the teacher's
// internal/storage/sqlite/errors.go wrapDBError.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
