package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	dbpkg "github.com/BrandonDHaskell/Portunus/monitor/internal/db"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// Store is the SQLite-backed identity registry and access log.  Reads use
// the shared *sql.DB directly; every write goes through the single-writer
// Worker.
type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

// requireIdentity fails with a clear error when identityID has no row, so a
// bad append is reported before the foreign key trips.
//
// Must be called inside an existing transaction.
func requireIdentity(ctx context.Context, tx *sql.Tx, identityID int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `
SELECT 1 FROM identities WHERE identity_id = ?;
`, identityID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("identity %d does not exist", identityID)
	}
	if err != nil {
		return fmt.Errorf("requireIdentity %d: %w", identityID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &types.StorageError{Op: op, Err: err}
}
