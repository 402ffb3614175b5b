package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database that lives as long as the
// returned *sql.DB.
const MemoryPath = ":memory:"

type Config struct {
	Path string // e.g. "./data/portunus-monitor.db", or MemoryPath
	Env  string // "dev" | "prod"
}

// Open connects to the access log database and brings its schema up to
// date.  The returned pool has one connection; writes also go through Worker.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/portunus-monitor.db"
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	if cfg.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := prepare(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// dsn builds the modernc.org/sqlite DSN.
//
// Every AppendNext reads the last event and then inserts, so transactions
// take the write lock at BEGIN (_txlock=immediate); a second process such as
// the CLI waits on busy_timeout instead of failing on lock upgrade.  In prod
// every commit is fsynced: the access log is the record of truth and the
// write rate is a handful of events per minute.
func dsn(cfg Config) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	if cfg.Path != MemoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	if cfg.Env == "prod" {
		q.Add("_pragma", "synchronous(FULL)")
	} else {
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	q.Set("_txlock", "immediate")

	if cfg.Path == MemoryPath {
		return "file::memory:?" + q.Encode()
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// prepare pings, migrates and confirms the access log's identity foreign key
// is enforced on this connection.
func prepare(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}

	var fk int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys;").Scan(&fk); err != nil {
		return fmt.Errorf("read foreign_keys: %w", err)
	}
	if fk != 1 {
		return fmt.Errorf("db: foreign keys are not enforced")
	}

	return Migrate(ctx, db)
}
