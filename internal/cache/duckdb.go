package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDBLoader reads and writes transcript models in a DuckDB database.
// Build the database once with `vibe-recompose index` and reuse it across runs.
type DuckDBLoader struct {
	db   *sql.DB
	path string
}

// NewDuckDBLoader opens a DuckDB transcript database.
// The path can be a local file path or an S3 URL (s3://bucket/path.duckdb).
func NewDuckDBLoader(path string) (*DuckDBLoader, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if strings.HasPrefix(path, "s3://") {
		if _, err := db.Exec("INSTALL httpfs; LOAD httpfs;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("load httpfs extension: %w", err)
		}
	}

	return &DuckDBLoader{db: db, path: path}, nil
}

// Close closes the database connection.
func (l *DuckDBLoader) Close() error {
	return l.db.Close()
}

const transcriptColumns = `id, gene_id, gene_name, chrom, start, end_, strand, biotype,
		       is_canonical, is_mane_select, cds_start, cds_end`

// Load loads all transcripts for a chromosome into the cache.
func (l *DuckDBLoader) Load(c *Cache, chrom string) error {
	return l.loadWhere(c, "WHERE chrom = ?", normalizeChrom(chrom))
}

// LoadAll loads all transcripts into the cache.
func (l *DuckDBLoader) LoadAll(c *Cache) error {
	return l.loadWhere(c, "")
}

func (l *DuckDBLoader) loadWhere(c *Cache, where string, args ...any) error {
	rows, err := l.db.Query(`SELECT `+transcriptColumns+` FROM transcripts `+where+` ORDER BY chrom, start`, args...)
	if err != nil {
		return fmt.Errorf("query transcripts: %w", err)
	}

	var transcripts []*Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			rows.Close()
			return err
		}
		transcripts = append(transcripts, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	exons, err := l.exonsByTranscript(where, args...)
	if err != nil {
		return err
	}
	for _, t := range transcripts {
		t.Exons = exons[t.ID]
		c.AddTranscript(t)
	}
	return nil
}

// GetTranscript returns a specific transcript by ID, or nil if absent.
func (l *DuckDBLoader) GetTranscript(id string) (*Transcript, error) {
	rows, err := l.db.Query(`SELECT `+transcriptColumns+` FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	t, err := scanTranscript(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	exons, err := l.exonsByTranscript("WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	t.Exons = exons[t.ID]
	return t, nil
}

func scanTranscript(rows *sql.Rows) (*Transcript, error) {
	t := &Transcript{}
	var cdsStart, cdsEnd sql.NullInt64
	err := rows.Scan(
		&t.ID, &t.GeneID, &t.GeneName, &t.Chrom, &t.Start, &t.End,
		&t.Strand, &t.Biotype, &t.IsCanonical, &t.IsMANESelect, &cdsStart, &cdsEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	t.CDSStart = cdsStart.Int64
	t.CDSEnd = cdsEnd.Int64
	return t, nil
}

// exonsByTranscript loads the exons of every transcript matched by the
// transcripts-table filter where, in genomic order.
func (l *DuckDBLoader) exonsByTranscript(where string, args ...any) (map[string][]Exon, error) {
	rows, err := l.db.Query(`
		SELECT transcript_id, exon_number, start, end_, cds_start, cds_end, frame
		FROM exons
		WHERE transcript_id IN (SELECT id FROM transcripts `+where+`)
		ORDER BY transcript_id, start
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query exons: %w", err)
	}
	defer rows.Close()

	exons := make(map[string][]Exon)
	for rows.Next() {
		var id string
		var e Exon
		var cdsStart, cdsEnd, frame sql.NullInt64
		if err := rows.Scan(&id, &e.Number, &e.Start, &e.End, &cdsStart, &cdsEnd, &frame); err != nil {
			return nil, fmt.Errorf("scan exon: %w", err)
		}
		e.CDSStart = cdsStart.Int64
		e.CDSEnd = cdsEnd.Int64
		e.Frame = -1
		if frame.Valid {
			e.Frame = int(frame.Int64)
		}
		exons[id] = append(exons[id], e)
	}
	return exons, rows.Err()
}

// CreateSchema creates the database schema for storing transcripts.
func (l *DuckDBLoader) CreateSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id VARCHAR PRIMARY KEY,
			gene_id VARCHAR,
			gene_name VARCHAR,
			chrom VARCHAR,
			start BIGINT,
			end_ BIGINT,
			strand TINYINT,
			biotype VARCHAR,
			is_canonical BOOLEAN,
			is_mane_select BOOLEAN,
			cds_start BIGINT,
			cds_end BIGINT
		);

		CREATE TABLE IF NOT EXISTS exons (
			transcript_id VARCHAR,
			exon_number INTEGER,
			start BIGINT,
			end_ BIGINT,
			cds_start BIGINT,
			cds_end BIGINT,
			frame TINYINT,
			PRIMARY KEY (transcript_id, exon_number)
		);

		CREATE INDEX IF NOT EXISTS idx_transcripts_pos ON transcripts(chrom, start, end_);
	`)
	if err != nil {
		return fmt.Errorf("create transcript schema: %w", err)
	}
	return nil
}

// InsertCache writes every transcript of c in a single transaction.
func (l *DuckDBLoader) InsertCache(c *Cache) (int, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	n := 0
	for _, chrom := range c.Chromosomes() {
		for _, t := range c.FindTranscriptsByChrom(chrom) {
			if err := insertTranscript(tx, t); err != nil {
				return 0, errors.Join(err, tx.Rollback())
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transcripts: %w", err)
	}
	return n, nil
}

// InsertTranscript inserts a transcript and its exons into the database.
func (l *DuckDBLoader) InsertTranscript(t *Transcript) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := insertTranscript(tx, t); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

func insertTranscript(tx *sql.Tx, t *Transcript) error {
	_, err := tx.Exec(`
		INSERT INTO transcripts (id, gene_id, gene_name, chrom, start, end_, strand,
		                         biotype, is_canonical, is_mane_select, cds_start, cds_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.GeneID, t.GeneName, normalizeChrom(t.Chrom), t.Start, t.End, t.Strand,
		t.Biotype, t.IsCanonical, t.IsMANESelect, nullInt64(t.CDSStart), nullInt64(t.CDSEnd))
	if err != nil {
		return fmt.Errorf("insert transcript %s: %w", t.ID, err)
	}

	for _, e := range t.Exons {
		var frame any
		if e.Frame >= 0 {
			frame = e.Frame
		}
		_, err := tx.Exec(`
			INSERT INTO exons (transcript_id, exon_number, start, end_, cds_start, cds_end, frame)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, t.ID, e.Number, e.Start, e.End, nullInt64(e.CDSStart), nullInt64(e.CDSEnd), frame)
		if err != nil {
			return fmt.Errorf("insert exon %d of %s: %w", e.Number, t.ID, err)
		}
	}
	return nil
}

// TranscriptCount returns the total number of transcripts in the database.
func (l *DuckDBLoader) TranscriptCount() (int, error) {
	var count int
	err := l.db.QueryRow("SELECT COUNT(*) FROM transcripts").Scan(&count)
	return count, err
}

// nullInt64 returns nil if n is 0, otherwise n.
func nullInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

// IsDuckDB checks if a path is a DuckDB database file.
func IsDuckDB(path string) bool {
	return strings.HasSuffix(path, ".duckdb") ||
		strings.HasSuffix(path, ".db") ||
		strings.HasPrefix(path, "s3://")
}
