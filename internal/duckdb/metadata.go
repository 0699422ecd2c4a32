package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/inodb/vibe-recompose/internal/recompose"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run describes one recomposition of an input VCF.
type Run struct {
	ID          int64
	Input       FileFingerprint
	Reference   string
	Transcripts string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the run is in progress
	Stats       recompose.Stats
}

// StartRun records a new run and returns its ID.
func (s *Store) StartRun(input FileFingerprint, reference, transcripts string) (int64, error) {
	var id int64
	if err := s.db.QueryRow("SELECT nextval('run_ids')").Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate run id: %w", err)
	}

	var modTime any
	if !input.ModTime.IsZero() {
		modTime = input.ModTime.UTC()
	}
	_, err := s.db.Exec(`INSERT INTO runs (id, input_path, input_size, input_modtime,
		reference, transcripts, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, input.Path, input.Size, modTime, reference, transcripts, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final statistics of a run.
func (s *Store) FinishRun(id int64, stats recompose.Stats) error {
	res, err := s.db.Exec(`UPDATE runs SET finished_at = ?, positions = ?, windows = ?,
		recomposable_windows = ?, recomposed = ?, subsumed = ?, skipped_candidates = ?
		WHERE id = ?`,
		time.Now().UTC(), stats.Positions, stats.Windows, stats.RecomposableWindows,
		stats.Recomposed, stats.Subsumed, stats.SkippedCandidates, id)
	if err != nil {
		return fmt.Errorf("update run %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %d: no such run", id)
	}
	return nil
}

// Runs returns all recorded runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, input_path, input_size, input_modtime, reference,
		transcripts, started_at, finished_at, positions, windows, recomposable_windows,
		recomposed, subsumed, skipped_candidates
		FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var modTime, finished sql.NullTime
		var positions, windows, recomposable, recomposed, subsumed, skipped sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Input.Path, &r.Input.Size, &modTime, &r.Reference,
			&r.Transcripts, &r.StartedAt, &finished, &positions, &windows, &recomposable,
			&recomposed, &subsumed, &skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Input.ModTime = modTime.Time
		r.FinishedAt = finished.Time
		r.Stats = recompose.Stats{
			Positions:           int(positions.Int64),
			Windows:             int(windows.Int64),
			RecomposableWindows: int(recomposable.Int64),
			Recomposed:          int(recomposed.Int64),
			Subsumed:            int(subsumed.Int64),
			SkippedCandidates:   int(skipped.Int64),
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
