// Package duckdb persists recomposition runs and their recomposed records in
// DuckDB so they can be queried after the VCF stream is gone.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for the run store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS run_ids START 1;

		CREATE TABLE IF NOT EXISTS runs (
			id BIGINT PRIMARY KEY,
			input_path VARCHAR,
			input_size BIGINT,
			input_modtime TIMESTAMP,
			reference VARCHAR,
			transcripts VARCHAR,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			positions BIGINT,
			windows BIGINT,
			recomposable_windows BIGINT,
			recomposed BIGINT,
			subsumed BIGINT,
			skipped_candidates BIGINT
		);

		CREATE TABLE IF NOT EXISTS recomposed_variants (
			run_id BIGINT,
			chrom VARCHAR,
			pos BIGINT,
			ref VARCHAR,
			alt VARCHAR,
			qual VARCHAR,
			filter VARCHAR,
			format VARCHAR,
			samples VARCHAR,
			PRIMARY KEY (run_id, chrom, pos, ref)
		);
	`)
	return err
}
