package digest

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidLimit is returned by Rank for a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	// ErrUnknownMetric is returned by ParseMetric for an unsupported name.
	ErrUnknownMetric = errors.New("unknown metric")
)

// Metric selects the value records are ranked by.
type Metric int

const (
	MetricTotalTime Metric = iota
	MetricMeanTime
	MetricMaxTime
	MetricCount
	MetricLockTime
	MetricRowsExamined
	MetricRowsSent
)

var metricNames = [...]string{
	MetricTotalTime:    "total-time",
	MetricMeanTime:     "mean-time",
	MetricMaxTime:      "max-time",
	MetricCount:        "count",
	MetricLockTime:     "lock-time",
	MetricRowsExamined: "rows-examined",
	MetricRowsSent:     "rows-sent",
}

func (m Metric) String() string {
	if m >= 0 && int(m) < len(metricNames) {
		return metricNames[m]
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// Metrics lists the accepted metric names.
func Metrics() []string {
	return slices.Clone(metricNames[:])
}

// ParseMetric parses a metric name. The empty string selects total-time.
func ParseMetric(name string) (Metric, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return MetricTotalTime, nil
	}
	for i, n := range metricNames {
		if n == name {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q (want one of %s)", ErrUnknownMetric, name, strings.Join(metricNames[:], ", "))
}

// Value returns s's value for the metric.
func (m Metric) Value(s AggregateStat) float64 {
	switch m {
	case MetricMeanTime:
		return s.MeanQueryTime()
	case MetricMaxTime:
		return s.QueryTime.Max
	case MetricCount:
		return float64(s.Count)
	case MetricLockTime:
		return s.LockTime.Sum
	case MetricRowsExamined:
		return float64(s.RowsExamined)
	case MetricRowsSent:
		return float64(s.RowsSent)
	default:
		return s.QueryTime.Sum
	}
}

// Rank orders stats descending by metric, ties broken by fingerprint
// ascending, and returns at most limit records.
func Rank(stats map[string]AggregateStat, limit int, metric Metric) ([]AggregateStat, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	ranked := RankAll(stats, metric)
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RankAll orders stats like Rank without truncating.
func RankAll(stats map[string]AggregateStat, metric Metric) []AggregateStat {
	ranked := make([]AggregateStat, 0, len(stats))
	for _, s := range stats {
		ranked = append(ranked, s)
	}
	slices.SortFunc(ranked, func(a, b AggregateStat) int {
		if c := cmp.Compare(metric.Value(b), metric.Value(a)); c != 0 {
			return c
		}
		return strings.Compare(a.Fingerprint, b.Fingerprint)
	})
	return ranked
}
