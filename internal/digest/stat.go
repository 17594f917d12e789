// Package digest folds normalized slow-log entries into per-fingerprint
// statistics and ranks them.
package digest

import (
	"maps"
	"time"

	"github.com/caio/go-tdigest"

	"github.com/tinytelemetry/slowdigest/internal/slowlog"
)

// digestCompression trades percentile accuracy for memory per fingerprint.
const digestCompression = 100

// Span accumulates sum, min and max of a non-negative duration in seconds.
type Span struct {
	Sum float64
	Min float64
	Max float64
}

// Mean returns Sum/count, or zero for an empty span.
func (s Span) Mean(count int64) float64 {
	if count <= 0 {
		return 0
	}
	return s.Sum / float64(count)
}

func (s *Span) observe(v float64) {
	s.Sum += v
	s.Min = min(s.Min, v)
	s.Max = max(s.Max, v)
}

func (s *Span) merge(o Span) {
	s.Sum += o.Sum
	s.Min = min(s.Min, o.Min)
	s.Max = max(s.Max, o.Max)
}

// AggregateStat is the running statistics for one fingerprint.
type AggregateStat struct {
	Fingerprint string
	// SampleSQL is the body of the first entry folded for this fingerprint.
	SampleSQL string
	// WorstSQL is the body of the slowest execution. Equal query times keep
	// the lexicographically smaller body.
	WorstSQL       string
	WorstQueryTime float64

	Count        int64
	QueryTime    Span
	LockTime     Span
	RowsSent     int64
	RowsExamined int64
	RowsAffected int64
	BytesSent    int64

	// FirstSeen and LastSeen are only meaningful when HasSeen is true.
	FirstSeen time.Time
	LastSeen  time.Time
	HasSeen   bool

	Databases map[string]int64
	Users     map[string]int64
	Hosts     map[string]int64

	queryTimes *tdigest.TDigest
}

func newStat(fp string, meta slowlog.EntryMetadata, sql string) *AggregateStat {
	s := &AggregateStat{
		Fingerprint:    fp,
		SampleSQL:      sql,
		WorstSQL:       sql,
		WorstQueryTime: meta.QueryTime,
		Count:          1,
		QueryTime:      Span{Sum: meta.QueryTime, Min: meta.QueryTime, Max: meta.QueryTime},
		LockTime:       Span{Sum: meta.LockTime, Min: meta.LockTime, Max: meta.LockTime},
		RowsSent:       meta.RowsSent,
		RowsExamined:   meta.RowsExamined,
		RowsAffected:   meta.RowsAffected,
		BytesSent:      meta.BytesSent,
		Databases:      make(map[string]int64),
		Users:          make(map[string]int64),
		Hosts:          make(map[string]int64),
	}
	if meta.HasTimestamp {
		s.FirstSeen, s.LastSeen, s.HasSeen = meta.Timestamp, meta.Timestamp, true
	}
	s.countDimensions(meta)

	td, err := tdigest.New(tdigest.Compression(digestCompression))
	if err == nil && td.Add(meta.QueryTime) == nil {
		s.queryTimes = td
	}
	return s
}

// observe folds one more execution into s.
func (s *AggregateStat) observe(meta slowlog.EntryMetadata, sql string) {
	s.Count++
	s.QueryTime.observe(meta.QueryTime)
	s.LockTime.observe(meta.LockTime)
	s.RowsSent += meta.RowsSent
	s.RowsExamined += meta.RowsExamined
	s.RowsAffected += meta.RowsAffected
	s.BytesSent += meta.BytesSent
	if meta.HasTimestamp {
		s.widen(meta.Timestamp, meta.Timestamp)
	}
	s.considerWorst(sql, meta.QueryTime)
	s.countDimensions(meta)
	if s.queryTimes != nil && s.queryTimes.Add(meta.QueryTime) != nil {
		s.queryTimes = nil
	}
}

// merge folds o into s. The rule is the same as observe applied to every
// execution o represents; s keeps its SampleSQL.
func (s *AggregateStat) merge(o *AggregateStat) {
	s.Count += o.Count
	s.QueryTime.merge(o.QueryTime)
	s.LockTime.merge(o.LockTime)
	s.RowsSent += o.RowsSent
	s.RowsExamined += o.RowsExamined
	s.RowsAffected += o.RowsAffected
	s.BytesSent += o.BytesSent
	if o.HasSeen {
		s.widen(o.FirstSeen, o.LastSeen)
	}
	s.considerWorst(o.WorstSQL, o.WorstQueryTime)
	s.Databases = addCounts(s.Databases, o.Databases)
	s.Users = addCounts(s.Users, o.Users)
	s.Hosts = addCounts(s.Hosts, o.Hosts)

	switch {
	case s.queryTimes == nil || o.queryTimes == nil:
		s.queryTimes = nil
	case s.queryTimes.Merge(o.queryTimes) != nil:
		s.queryTimes = nil
	}
}

func (s *AggregateStat) widen(first, last time.Time) {
	if !s.HasSeen {
		s.FirstSeen, s.LastSeen, s.HasSeen = first, last, true
		return
	}
	if first.Before(s.FirstSeen) {
		s.FirstSeen = first
	}
	if last.After(s.LastSeen) {
		s.LastSeen = last
	}
}

func (s *AggregateStat) considerWorst(sql string, qt float64) {
	if qt > s.WorstQueryTime || (qt == s.WorstQueryTime && sql < s.WorstSQL) {
		s.WorstSQL, s.WorstQueryTime = sql, qt
	}
}

func (s *AggregateStat) countDimensions(meta slowlog.EntryMetadata) {
	if meta.Database != "" {
		s.Databases[meta.Database]++
	}
	if meta.User != "" {
		s.Users[meta.User]++
	}
	if meta.Host != "" {
		s.Hosts[meta.Host]++
	}
}

func addCounts(dst, src map[string]int64) map[string]int64 {
	if dst == nil {
		dst = make(map[string]int64, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

// clone returns a deep copy so merges never alias another aggregator's state.
func (s *AggregateStat) clone() *AggregateStat {
	c := *s
	c.Databases = maps.Clone(s.Databases)
	c.Users = maps.Clone(s.Users)
	c.Hosts = maps.Clone(s.Hosts)
	if s.queryTimes != nil {
		c.queryTimes = s.queryTimes.Clone()
	}
	return &c
}

// Percentile estimates the q-th quantile (0..1) of query time. The estimate
// is clamped to the observed min and max; it is zero when unavailable.
func (s AggregateStat) Percentile(q float64) float64 {
	if s.queryTimes == nil || s.queryTimes.Count() == 0 || q < 0 || q > 1 {
		return 0
	}
	v := s.queryTimes.Quantile(q)
	return min(max(v, s.QueryTime.Min), s.QueryTime.Max)
}

// MeanQueryTime returns the mean query time in seconds.
func (s AggregateStat) MeanQueryTime() float64 { return s.QueryTime.Mean(s.Count) }

// MeanLockTime returns the mean lock time in seconds.
func (s AggregateStat) MeanLockTime() float64 { return s.LockTime.Mean(s.Count) }

// ExaminedRatio returns rows examined per row sent, or zero when no rows
// were sent.
func (s AggregateStat) ExaminedRatio() float64 {
	if s.RowsSent == 0 {
		return 0
	}
	return float64(s.RowsExamined) / float64(s.RowsSent)
}

// MergeStat combines two records for the same fingerprint using the fold
// rule. a's SampleSQL is kept. Neither argument is modified.
func MergeStat(a, b AggregateStat) AggregateStat {
	out := a.clone()
	out.merge(&b)
	return *out
}
