package model

import "time"

// DigestRow is the flattened, render-ready view of one fingerprint's
// statistics. It is the canonical type for storage, the HTTP API, socket RPC
// and the TUI. Times are UTC; zero FirstSeen/LastSeen means no timestamp was
// observed.
type DigestRow struct {
	Rank           int     `json:"rank"`
	ID             string  `json:"id"`
	Fingerprint    string  `json:"fingerprint"`
	Count          int64   `json:"count"`
	TotalQueryTime float64 `json:"total_query_time"`
	MinQueryTime   float64 `json:"min_query_time"`
	MaxQueryTime   float64 `json:"max_query_time"`
	MeanQueryTime  float64 `json:"mean_query_time"`
	P95QueryTime   float64 `json:"p95_query_time"`
	P99QueryTime   float64 `json:"p99_query_time"`
	TotalLockTime  float64 `json:"total_lock_time"`
	MinLockTime    float64 `json:"min_lock_time"`
	MaxLockTime    float64 `json:"max_lock_time"`
	MeanLockTime   float64 `json:"mean_lock_time"`
	RowsSent       int64   `json:"rows_sent"`
	RowsExamined   int64   `json:"rows_examined"`
	RowsAffected   int64   `json:"rows_affected"`
	BytesSent      int64   `json:"bytes_sent"`
	// ExaminedRatio is rows examined per row sent; zero when nothing was sent.
	ExaminedRatio float64 `json:"examined_ratio"`
	// Share is this fingerprint's fraction of the run's total query time.
	Share     float64          `json:"share"`
	FirstSeen time.Time        `json:"first_seen"`
	LastSeen  time.Time        `json:"last_seen"`
	SampleSQL string           `json:"sample_sql"`
	WorstSQL  string           `json:"worst_sql"`
	WorstTime float64          `json:"worst_time"`
	Databases map[string]int64 `json:"databases,omitempty"`
	Users     map[string]int64 `json:"users,omitempty"`
	Hosts     map[string]int64 `json:"hosts,omitempty"`
}

// RunSummary carries run-level counters alongside the ranked digest.
type RunSummary struct {
	Sources        []string  `json:"sources"`
	Entries        int64     `json:"entries"`
	Fingerprints   int       `json:"fingerprints"`
	MalformedLines int64     `json:"malformed_lines"`
	SkippedEntries int64     `json:"skipped_entries"`
	OrphanLines    int64     `json:"orphan_lines"`
	AdminLines     int64     `json:"admin_lines"`
	TotalQueryTime float64   `json:"total_query_time"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}
