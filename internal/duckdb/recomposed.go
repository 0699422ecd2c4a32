package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-recompose/internal/vcf"
)

// RecomposedVariant is a persisted recomposed record.
type RecomposedVariant struct {
	RunID   int64
	Chrom   string
	Pos     int64
	Ref     string
	Alt     string
	Qual    string
	Filter  string
	Format  string
	Samples string // tab-joined sample columns
}

// Fields returns the record as VCF columns.
func (v RecomposedVariant) Fields() []string {
	fields := []string{v.Chrom, fmt.Sprint(v.Pos), vcf.Missing, v.Ref, v.Alt, v.Qual, v.Filter, "RECOMPOSED"}
	if v.Format == "" {
		return fields
	}
	fields = append(fields, v.Format)
	return append(fields, strings.Split(v.Samples, "\t")...)
}

// recordKey deduplicates records before they reach the primary key.
type recordKey struct {
	chrom, ref string
	pos        int64
}

// WriteRecomposed batch-inserts the recomposed records of a run using the
// Appender API. Records that are not recomposed are ignored; duplicate
// (chrom, pos, ref) records keep the first occurrence.
func (s *Store) WriteRecomposed(runID int64, records []*vcf.Position) error {
	seen := make(map[recordKey]bool, len(records))
	var rows []RecomposedVariant
	for _, r := range records {
		if !r.IsRecomposed() {
			continue
		}
		k := recordKey{r.Chrom, r.Ref, r.Start}
		if seen[k] {
			continue
		}
		seen[k] = true

		v := RecomposedVariant{
			RunID:  runID,
			Chrom:  r.Chrom,
			Pos:    r.Start,
			Ref:    r.Ref,
			Alt:    strings.Join(r.Alts, ","),
			Qual:   r.Qual(),
			Filter: r.Filter(),
			Format: r.Format(),
		}
		if r.NumSamples() > 0 {
			v.Samples = strings.Join(r.Fields[vcf.SampleIndex:], "\t")
		}
		rows = append(rows, v)
	}
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "recomposed_variants")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, v := range rows {
		if err := appender.AppendRow(
			v.RunID, v.Chrom, v.Pos, v.Ref, v.Alt, v.Qual, v.Filter, v.Format, v.Samples,
		); err != nil {
			return fmt.Errorf("append recomposed variant: %w", err)
		}
	}

	return appender.Flush()
}

// RecomposedInRegion returns persisted records with chrom and start within
// [start, end], ordered by run, then position. runID 0 selects every run.
func (s *Store) RecomposedInRegion(runID int64, chrom string, start, end int64) ([]RecomposedVariant, error) {
	rows, err := s.db.Query(`SELECT run_id, chrom, pos, ref, alt, qual, filter, format, samples
		FROM recomposed_variants
		WHERE chrom = ? AND pos BETWEEN ? AND ? AND (? = 0 OR run_id = ?)
		ORDER BY run_id, pos, ref`,
		chrom, start, end, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query recomposed variants: %w", err)
	}
	defer rows.Close()

	var out []RecomposedVariant
	for rows.Next() {
		var v RecomposedVariant
		if err := rows.Scan(&v.RunID, &v.Chrom, &v.Pos, &v.Ref, &v.Alt, &v.Qual,
			&v.Filter, &v.Format, &v.Samples); err != nil {
			return nil, fmt.Errorf("scan recomposed variant: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recomposed variants: %w", err)
	}
	return out, nil
}

// ClearRun removes a run and its records.
func (s *Store) ClearRun(runID int64) error {
	if _, err := s.db.Exec("DELETE FROM recomposed_variants WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete recomposed variants: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs WHERE id = ?", runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
