package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

const (
	dimensionDatabase = "database"
	dimensionUser     = "user"
	dimensionHost     = "host"
)

// InsertDigests replaces the store's contents with one run's digest in a
// single transaction.
func (s *Store) InsertDigests(rows []model.DigestRow, summary model.RunSummary) error {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin digest load: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"digest_dimensions", "digests", "run_summary"} {
		// Table names are hardcoded constants, not user input.
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := insertDigestRows(ctx, tx, rows); err != nil {
		return err
	}
	if err := insertSummary(ctx, tx, summary); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit digest load: %w", err)
	}
	committed = true
	s.log.Debug("digest loaded", zap.Int("digests", len(rows)), zap.Int64("entries", summary.Entries))
	return nil
}

func insertDigestRows(ctx context.Context, tx *sql.Tx, rows []model.DigestRow) error {
	digestStmt, err := tx.PrepareContext(ctx, `INSERT INTO digests (
		id, fingerprint, exec_count,
		total_query_time, min_query_time, max_query_time, mean_query_time, p95_query_time, p99_query_time,
		total_lock_time, min_lock_time, max_lock_time, mean_lock_time,
		rows_sent, rows_examined, rows_affected, bytes_sent,
		examined_ratio, share, first_seen, last_seen,
		sample_sql, worst_sql, worst_time
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing digest insert: %w", err)
	}
	defer digestStmt.Close()

	dimStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO digest_dimensions (digest_id, dimension, value, exec_count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing dimension insert: %w", err)
	}
	defer dimStmt.Close()

	for _, r := range rows {
		if _, err := digestStmt.ExecContext(ctx,
			r.ID, r.Fingerprint, r.Count,
			r.TotalQueryTime, r.MinQueryTime, r.MaxQueryTime, r.MeanQueryTime, r.P95QueryTime, r.P99QueryTime,
			r.TotalLockTime, r.MinLockTime, r.MaxLockTime, r.MeanLockTime,
			r.RowsSent, r.RowsExamined, r.RowsAffected, r.BytesSent,
			r.ExaminedRatio, r.Share, nullTime(r.FirstSeen), nullTime(r.LastSeen),
			r.SampleSQL, r.WorstSQL, r.WorstTime,
		); err != nil {
			return fmt.Errorf("inserting digest %s: %w", r.ID, err)
		}
		for _, dim := range []struct {
			name   string
			counts map[string]int64
		}{
			{dimensionDatabase, r.Databases},
			{dimensionUser, r.Users},
			{dimensionHost, r.Hosts},
		} {
			for value, n := range dim.counts {
				if _, err := dimStmt.ExecContext(ctx, r.ID, dim.name, value, n); err != nil {
					return fmt.Errorf("inserting %s dimension for %s: %w", dim.name, r.ID, err)
				}
			}
		}
	}
	return nil
}

func insertSummary(ctx context.Context, tx *sql.Tx, s model.RunSummary) error {
	names := s.Sources
	if names == nil {
		names = []string{}
	}
	sources, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO run_summary (
		sources, entries, fingerprints, malformed_lines, skipped_entries,
		orphan_lines, admin_lines, total_query_time, first_seen, last_seen
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sources), s.Entries, s.Fingerprints, s.MalformedLines, s.SkippedEntries,
		s.OrphanLines, s.AdminLines, s.TotalQueryTime, nullTime(s.FirstSeen), nullTime(s.LastSeen))
	if err != nil {
		return fmt.Errorf("inserting run summary: %w", err)
	}
	return nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
