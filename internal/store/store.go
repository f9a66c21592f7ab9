package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/phasedefer/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// journalVersion is the PRAGMA user_version of an up-to-date journal.
// Version 1 indexes runs by plan name.
const journalVersion = 1

// journalPragmas configure every connection to a journal: WAL so trace
// readers never block a compilation writing its run, foreign keys so trace
// events cannot outlive their run.
var journalPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is the run journal of compiled plans and their traces.
type Store struct {
	db      *sql.DB
	queries *querysql.SQLCompiler
}

// Open opens the journal at path, creating it if needed, and brings its
// schema up to journalVersion. Opening an existing journal leaves its runs
// untouched.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// SQLite only supports one writer at a time; concurrent compilations
	// journal through this single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range journalPragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("open journal %s: %q: %w", path, pragma, err)
		}
	}

	if err := prepareSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	return &Store{db: db, queries: querysql.NewSQLCompiler()}, nil
}

// Close closes the journal. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// prepareSchema creates missing tables, then applies each migration above
// the journal's user_version.
func prepareSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}

	migrations := []func(*sql.DB) error{indexRunsByPlan}
	for v := version; v < journalVersion; v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate journal to v%d: %w", v+1, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", journalVersion)); err != nil {
		return fmt.Errorf("set journal version: %w", err)
	}
	return nil
}

func indexRunsByPlan(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_plan_name ON runs(plan_name)`)
	return err
}

// pragma returns the current value of a journal pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
