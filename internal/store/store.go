// Package store is the bot's persistence boundary: a thin query/exec
// wrapper over SQLite plus the registration tables the dispatch engine
// reconciles at startup.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB is the injected database surface the rest of the bot depends on.
type DB interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (int64, error)
	Transaction(fn func(tx *sql.Tx) error) error
	Close() error
}

// SQLiteStore implements DB using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the bot database and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS command_config (
		command      TEXT NOT NULL,
		sub_command  TEXT NOT NULL DEFAULT '',
		channel      TEXT NOT NULL,
		access_level TEXT NOT NULL,
		enabled      INTEGER NOT NULL DEFAULT 1,
		verified     INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (command, sub_command, channel)
	);

	CREATE TABLE IF NOT EXISTS event_config (
		event_type TEXT NOT NULL,
		sub_type   TEXT NOT NULL DEFAULT '',
		handler    TEXT NOT NULL,
		enabled    INTEGER NOT NULL DEFAULT 1,
		verified   INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (event_type, sub_type, handler)
	);

	CREATE TABLE IF NOT EXISTS setting (
		name     TEXT PRIMARY KEY,
		value    TEXT NOT NULL,
		kind     TEXT NOT NULL DEFAULT 'text',
		verified INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS command_alias (
		alias   TEXT PRIMARY KEY,
		command TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ban (
		char_id   INTEGER PRIMARY KEY,
		reason    TEXT,
		banned_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS extended_template (
		category_id INTEGER NOT NULL,
		instance_id INTEGER NOT NULL,
		template    TEXT NOT NULL,
		PRIMARY KEY (category_id, instance_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Query(query string, args ...any) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

func (s *SQLiteStore) QueryRow(query string, args ...any) *sql.Row {
	return s.db.QueryRow(query, args...)
}

func (s *SQLiteStore) Exec(query string, args ...any) (int64, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Transaction runs fn inside a transaction, committing on nil and rolling
// back on error or panic.
func (s *SQLiteStore) Transaction(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
