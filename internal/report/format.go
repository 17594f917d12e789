package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const timeLayout = "2006-01-02 15:04:05 -0700"

// Seconds formats a duration in seconds the way every report shows it.
func Seconds(v float64) string { return fmt.Sprintf("%.3fs", v) }

// Percent formats a 0..1 fraction.
func Percent(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }

// Count formats an integer with thousands separators.
func Count(n int64) string { return humanize.Comma(n) }

// TimeRange renders first and last in loc, or "N/A" when no timestamp was
// observed.
func TimeRange(first, last time.Time, loc *time.Location) string {
	if first.IsZero() && last.IsZero() {
		return "N/A"
	}
	return first.In(loc).Format(timeLayout) + " - " + last.In(loc).Format(timeLayout)
}

// OneLine collapses whitespace runs (newlines included) to single spaces.
func OneLine(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// Truncate shortens s to at most width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

type countEntry struct {
	Key   string
	Count int64
}

// topCounts orders a value->count map by count descending, then key.
func topCounts(m map[string]int64) []countEntry {
	out := make([]countEntry, 0, len(m))
	for k, v := range m {
		out = append(out, countEntry{k, v})
	}
	slices.SortFunc(out, func(a, b countEntry) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

// Breakdown renders a value->count map as "a (3), b (1)".
func Breakdown(m map[string]int64) string {
	if len(m) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(m))
	for _, e := range topCounts(m) {
		parts = append(parts, fmt.Sprintf("%s (%s)", e.Key, Count(e.Count)))
	}
	return strings.Join(parts, ", ")
}
