package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/db"
	sqlitestore "github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets a unique in-memory database.  The shared-cache URI
	// keeps it alive for the lifetime of the pool.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	// Match production: single connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStore returns a Store over a fresh database plus the raw connection
// for assertions.  The writer is closed before the connection.
func newTestStore(t *testing.T) (*sqlitestore.Store, *sql.DB) {
	t.Helper()

	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return sqlitestore.New(conn, w), conn
}

// seedIdentity registers code through the store and fails the test on error.
func seedIdentity(t *testing.T, st *sqlitestore.Store, name, code string) types.Identity {
	t.Helper()

	id, err := st.CreateIdentity(context.Background(), types.Identity{
		Name:     name,
		Category: "car",
		Code:     code,
		BadgeRef: "badges/" + code + ".png",
	})
	if err != nil {
		t.Fatalf("seedIdentity(%s): %v", code, err)
	}
	return id
}
