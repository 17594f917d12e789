// Package report turns ranked digest statistics into table, HTML and JSON
// reports.
package report

import (
	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/fingerprint"
	"github.com/tinytelemetry/slowdigest/internal/model"
)

// Rows flattens ranked statistics into render-ready rows numbered from 1.
// Share is computed against the run's total query time.
func Rows(ranked []digest.AggregateStat, summary model.RunSummary) []model.DigestRow {
	rows := make([]model.DigestRow, len(ranked))
	for i, s := range ranked {
		rows[i] = Row(s, summary.TotalQueryTime)
		rows[i].Rank = i + 1
	}
	return rows
}

// Row flattens one record. Rank is left zero.
func Row(s digest.AggregateStat, totalQueryTime float64) model.DigestRow {
	row := model.DigestRow{
		ID:             fingerprint.QueryID(s.Fingerprint),
		Fingerprint:    s.Fingerprint,
		Count:          s.Count,
		TotalQueryTime: s.QueryTime.Sum,
		MinQueryTime:   s.QueryTime.Min,
		MaxQueryTime:   s.QueryTime.Max,
		MeanQueryTime:  s.MeanQueryTime(),
		P95QueryTime:   s.Percentile(0.95),
		P99QueryTime:   s.Percentile(0.99),
		TotalLockTime:  s.LockTime.Sum,
		MinLockTime:    s.LockTime.Min,
		MaxLockTime:    s.LockTime.Max,
		MeanLockTime:   s.MeanLockTime(),
		RowsSent:       s.RowsSent,
		RowsExamined:   s.RowsExamined,
		RowsAffected:   s.RowsAffected,
		BytesSent:      s.BytesSent,
		ExaminedRatio:  s.ExaminedRatio(),
		SampleSQL:      s.SampleSQL,
		WorstSQL:       s.WorstSQL,
		WorstTime:      s.WorstQueryTime,
		Databases:      s.Databases,
		Users:          s.Users,
		Hosts:          s.Hosts,
	}
	if totalQueryTime > 0 {
		row.Share = s.QueryTime.Sum / totalQueryTime
	}
	if s.HasSeen {
		row.FirstSeen, row.LastSeen = s.FirstSeen.UTC(), s.LastSeen.UTC()
	}
	return row
}
