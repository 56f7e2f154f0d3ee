package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Enqueuer schedules an asynchronous dispatch task. Implemented by the azure
// queue client wrapper in production and by fakes in tests.
type Enqueuer interface {
	Enqueue(ctx context.Context, text string) error
}

// Storage provides access to the SQLite database and the notify queue.
type Storage struct {
	db    *sql.DB
	queue Enqueuer
}

// Open opens (or creates) the SQLite database at path and applies the schema.
// Transactions take the write lock immediately so that overlapping
// scan-and-mark passes serialise instead of failing mid-transaction.
func Open(path string, queue Enqueuer) (*Storage, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// SQLite supports a single writer; a small pool avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Storage{db: db, queue: queue}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// execer is satisfied by *sql.DB and *sql.Tx so ledger appends can run either
// standalone or inside the reminder transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
