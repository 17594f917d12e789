package slowlog

import (
	"strings"
	"time"
)

// HeaderLine is one classified header line of a raw entry.
type HeaderLine struct {
	Kind   HeaderKind
	Text   string
	Groups map[string]string
}

// RawEntry is one slow-log record as scanned from input: its header lines in
// order and the verbatim SQL body lines.
type RawEntry struct {
	Source  string
	Line    int
	Headers []HeaderLine
	Body    []string
}

// SQL returns the body lines joined with newlines.
func (e RawEntry) SQL() string {
	return strings.Join(e.Body, "\n")
}

// EntryMetadata holds the typed fields recovered from an entry's headers.
// Absent numeric fields are zero and absent strings are empty.
type EntryMetadata struct {
	// Timestamp is UTC. HasTimestamp is false when no timestamp was seen in
	// the stream up to and including this entry.
	Timestamp    time.Time
	HasTimestamp bool

	User         string
	Host         string
	Database     string
	ConnectionID int64

	QueryTime    float64
	LockTime     float64
	RowsSent     int64
	RowsExamined int64
	RowsAffected int64
	BytesSent    int64
}
