package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/model"
)

// maxQueryRows caps the rows ExecuteQuery returns.
const maxQueryRows = 1000

// dangerousKeywordPattern matches dangerous SQL keywords at word boundaries.
// This avoids false positives like "RESET" matching "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// metricOrder maps a ranking metric to its ORDER BY expression. Ties break
// on fingerprint so the order matches digest.Rank.
var metricOrder = map[digest.Metric]string{
	digest.MetricTotalTime:    "total_query_time DESC",
	digest.MetricMeanTime:     "mean_query_time DESC",
	digest.MetricMaxTime:      "max_query_time DESC",
	digest.MetricCount:        "exec_count DESC",
	digest.MetricLockTime:     "total_lock_time DESC",
	digest.MetricRowsExamined: "rows_examined DESC",
	digest.MetricRowsSent:     "rows_sent DESC",
}

const digestColumns = `id, fingerprint, exec_count,
	total_query_time, min_query_time, max_query_time, mean_query_time, p95_query_time, p99_query_time,
	total_lock_time, min_lock_time, max_lock_time, mean_lock_time,
	rows_sent, rows_examined, rows_affected, bytes_sent,
	examined_ratio, share, first_seen, last_seen,
	sample_sql, worst_sql, worst_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDigest(sc rowScanner) (model.DigestRow, error) {
	var (
		r           model.DigestRow
		first, last sql.NullTime
	)
	err := sc.Scan(
		&r.ID, &r.Fingerprint, &r.Count,
		&r.TotalQueryTime, &r.MinQueryTime, &r.MaxQueryTime, &r.MeanQueryTime, &r.P95QueryTime, &r.P99QueryTime,
		&r.TotalLockTime, &r.MinLockTime, &r.MaxLockTime, &r.MeanLockTime,
		&r.RowsSent, &r.RowsExamined, &r.RowsAffected, &r.BytesSent,
		&r.ExaminedRatio, &r.Share, &first, &last,
		&r.SampleSQL, &r.WorstSQL, &r.WorstTime,
	)
	if err != nil {
		return r, err
	}
	if first.Valid {
		r.FirstSeen = first.Time.UTC()
	}
	if last.Valid {
		r.LastSeen = last.Time.UTC()
	}
	return r, nil
}

// TopDigests returns at most limit digests ordered by metric, ranked from 1.
func (s *Store) TopDigests(limit int, metric string) ([]model.DigestRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", digest.ErrInvalidLimit, limit)
	}
	m, err := digest.ParseMetric(metric)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM digests ORDER BY %s, fingerprint ASC LIMIT ?`, digestColumns, metricOrder[m])
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top digests: %w", err)
	}
	defer rows.Close()

	var results []model.DigestRow
	for rows.Next() {
		r, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning digest: %w", err)
		}
		r.Rank = len(results) + 1
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadDimensions(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// DigestByID returns the digest with the given query id. Rank is its
// position by total time.
func (s *Store) DigestByID(id string) (model.DigestRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := fmt.Sprintf(`SELECT %s, rnk FROM (
		SELECT *, row_number() OVER (ORDER BY %s, fingerprint ASC) AS rnk FROM digests
	) WHERE id = ? ORDER BY rnk LIMIT 1`, digestColumns, metricOrder[digest.MetricTotalTime])

	row := s.db.QueryRowContext(ctx, query, id)
	var rank int64
	r, err := scanDigest(scanFunc(func(dest ...any) error {
		return row.Scan(append(dest, &rank)...)
	}))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DigestRow{}, false, nil
	}
	if err != nil {
		return model.DigestRow{}, false, fmt.Errorf("querying digest %s: %w", id, err)
	}
	r.Rank = int(rank)

	rows := []model.DigestRow{r}
	if err := s.loadDimensions(ctx, rows); err != nil {
		return model.DigestRow{}, false, err
	}
	return rows[0], true, nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// loadDimensions fills the Databases, Users and Hosts maps of rows.
func (s *Store) loadDimensions(ctx context.Context, rows []model.DigestRow) error {
	if len(rows) == 0 {
		return nil
	}
	index := make(map[string]int, len(rows))
	placeholders := make([]string, len(rows))
	args := make([]any, len(rows))
	for i, r := range rows {
		index[r.ID] = i
		placeholders[i] = "?"
		args[i] = r.ID
	}

	query := `SELECT digest_id, dimension, value, exec_count FROM digest_dimensions
		WHERE digest_id IN (` + strings.Join(placeholders, ", ") + `)`
	res, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying digest dimensions: %w", err)
	}
	defer res.Close()

	for res.Next() {
		var (
			id, dim, value string
			n              int64
		)
		if err := res.Scan(&id, &dim, &value, &n); err != nil {
			return fmt.Errorf("scanning digest dimension: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		r := &rows[i]
		var target *map[string]int64
		switch dim {
		case dimensionDatabase:
			target = &r.Databases
		case dimensionUser:
			target = &r.Users
		case dimensionHost:
			target = &r.Hosts
		default:
			continue
		}
		if *target == nil {
			*target = make(map[string]int64)
		}
		(*target)[value] += n
	}
	return res.Err()
}

// Summary returns the loaded run's summary, or a zero summary when nothing
// has been loaded.
func (s *Store) Summary() (model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var (
		out         model.RunSummary
		sources     string
		first, last sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `SELECT sources, entries, fingerprints, malformed_lines,
		skipped_entries, orphan_lines, admin_lines, total_query_time, first_seen, last_seen
		FROM run_summary LIMIT 1`).Scan(
		&sources, &out.Entries, &out.Fingerprints, &out.MalformedLines,
		&out.SkippedEntries, &out.OrphanLines, &out.AdminLines, &out.TotalQueryTime, &first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunSummary{}, nil
	}
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("querying run summary: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &out.Sources); err != nil {
		return model.RunSummary{}, fmt.Errorf("decoding run sources: %w", err)
	}
	if first.Valid {
		out.FirstSeen = first.Time.UTC()
	}
	if last.Valid {
		out.LastSeen = last.Time.UTC()
	}
	return out, nil
}

// ExecuteQuery runs a read-only SQL query and returns results as maps.
// Only SELECT/WITH read queries are allowed; DDL/DML is rejected.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(query)

	// Reject semicolons to prevent statement chaining.
	if strings.Contains(trimmed, ";") {
		return nil, fmt.Errorf("query must not contain semicolons")
	}

	// Strip SQL comments so keywords hidden in comments are still caught.
	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			s.log.Warn("duckdb scan error", zap.String("op", "ExecuteQuery"), zap.Error(err))
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable description of the tables
// ExecuteQuery can read.
func (s *Store) GetSchemaDescription() string {
	return `Table 'digests': one row per query fingerprint. id (VARCHAR), fingerprint (VARCHAR), ` +
		`exec_count (BIGINT), total_query_time/min_query_time/max_query_time/mean_query_time/` +
		`p95_query_time/p99_query_time (DOUBLE seconds), total_lock_time/min_lock_time/max_lock_time/` +
		`mean_lock_time (DOUBLE seconds), rows_sent/rows_examined/rows_affected/bytes_sent (BIGINT), ` +
		`examined_ratio (DOUBLE), share (DOUBLE 0..1 of total query time), first_seen/last_seen (TIMESTAMP UTC), ` +
		`sample_sql/worst_sql (VARCHAR), worst_time (DOUBLE seconds). ` +
		`Table 'digest_dimensions': digest_id (VARCHAR, joins digests.id), ` +
		`dimension (VARCHAR: database/user/host), value (VARCHAR), exec_count (BIGINT). ` +
		`Table 'run_summary': one row; sources (VARCHAR JSON array), entries, fingerprints, ` +
		`malformed_lines, skipped_entries, orphan_lines, admin_lines, total_query_time, first_seen, last_seen.`
}

// TableRowCounts returns the row count for each known table using a hardcoded allowlist.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	allowedTables := []string{"digests", "digest_dimensions", "run_summary"}
	counts := make(map[string]int64, len(allowedTables))
	for _, table := range allowedTables {
		var count int64
		// Table names are hardcoded constants, not user input.
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
