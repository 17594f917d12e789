package slowlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

const initialLineBuffer = 64 * 1024

type scanState int

const (
	stateSeeking scanState = iota
	stateHeader
	stateBody
)

// ScannerConfig holds tunable parameters for a Scanner.
type ScannerConfig struct {
	// Source names the stream in errors and emitted entries.
	Source string
	// MaxLineSize bounds a single line; longer lines abort the scan.
	MaxLineSize int
}

// ScanStats counts what the scanner saw besides emitted entries.
type ScanStats struct {
	Entries int64
	// SkippedEntries had header lines but no SQL body.
	SkippedEntries int64
	// OrphanLines are non-header lines seen outside any entry.
	OrphanLines int64
	AdminLines  int64
}

// Scanner splits a line stream into raw entries. It is a single-pass,
// non-restartable iterator: call Next until it returns false, then check Err.
type Scanner struct {
	lines       *bufio.Scanner
	format      *Format
	source      string
	maxLineSize int

	lineNo int
	state  scanState
	cur    RawEntry
	seen   map[HeaderKind]bool
	blanks int

	stats ScanStats
	err   error
	done  bool
}

// NewScanner creates a Scanner reading r with the given format.
func NewScanner(r io.Reader, format *Format, conf ...ScannerConfig) *Scanner {
	maxLineSize := model.DefaultMaxLineSize
	source := ""
	if len(conf) > 0 {
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
		source = conf[0].Source
	}
	if format == nil {
		format = DefaultFormat()
	}

	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, min(initialLineBuffer, maxLineSize)), maxLineSize)

	return &Scanner{
		lines:       lines,
		format:      format,
		source:      source,
		maxLineSize: maxLineSize,
		seen:        make(map[HeaderKind]bool),
	}
}

// Next returns the next complete entry. It returns false at end of input or
// on a read error.
func (s *Scanner) Next() (RawEntry, bool) {
	for !s.done {
		if !s.lines.Scan() {
			s.done = true
			if err := s.lines.Err(); err != nil {
				if errors.Is(err, bufio.ErrTooLong) {
					s.err = fmt.Errorf("%s: line %d exceeds max line size (%d bytes): %w",
						s.sourceName(), s.lineNo+1, s.maxLineSize, err)
				} else {
					s.err = fmt.Errorf("reading %s: %w", s.sourceName(), err)
				}
				return RawEntry{}, false
			}
			if s.state != stateSeeking {
				return s.emit()
			}
			return RawEntry{}, false
		}

		s.lineNo++
		line := strings.TrimRight(s.lines.Text(), "\r")
		if entry, ok := s.step(line); ok {
			return entry, true
		}
	}
	return RawEntry{}, false
}

// Err returns the first read error, if any.
func (s *Scanner) Err() error { return s.err }

// Stats returns the scanner's counters so far.
func (s *Scanner) Stats() ScanStats { return s.stats }

func (s *Scanner) step(line string) (RawEntry, bool) {
	if strings.TrimSpace(line) == "" {
		if s.state == stateBody {
			s.blanks++
		}
		return RawEntry{}, false
	}

	c := s.format.Classify(line, s.state == stateHeader)

	switch c.Kind {
	case KindAdmin:
		s.stats.AdminLines++
		if s.state == stateSeeking {
			return RawEntry{}, false
		}
		return s.emit()

	case KindNone:
		switch s.state {
		case stateSeeking:
			s.stats.OrphanLines++
		case stateHeader:
			s.state = stateBody
			s.cur.Body = append(s.cur.Body, line)
		case stateBody:
			s.appendBody(line)
		}
		return RawEntry{}, false
	}

	switch s.state {
	case stateSeeking:
		s.begin(line, c)
	case stateHeader:
		if c.StartsEntry && s.seen[c.Kind] {
			entry, ok := s.emit()
			s.begin(line, c)
			return entry, ok
		}
		s.addHeader(line, c)
	case stateBody:
		if c.StartsEntry {
			entry, ok := s.emit()
			s.begin(line, c)
			return entry, ok
		}
		// Comment-shaped text inside SQL stays part of the body.
		s.appendBody(line)
	}
	return RawEntry{}, false
}

func (s *Scanner) begin(line string, c Classification) {
	s.state = stateHeader
	s.cur = RawEntry{Source: s.source, Line: s.lineNo}
	s.addHeader(line, c)
}

func (s *Scanner) addHeader(line string, c Classification) {
	s.cur.Headers = append(s.cur.Headers, HeaderLine{Kind: c.Kind, Text: line, Groups: c.Groups})
	s.seen[c.Kind] = true
}

func (s *Scanner) appendBody(line string) {
	for ; s.blanks > 0; s.blanks-- {
		s.cur.Body = append(s.cur.Body, "")
	}
	s.cur.Body = append(s.cur.Body, line)
}

// emit finishes the current entry and returns the scanner to SeekingEntry.
// Entries without a body are counted and dropped.
func (s *Scanner) emit() (RawEntry, bool) {
	entry := s.cur
	s.cur = RawEntry{}
	s.state = stateSeeking
	s.blanks = 0
	clear(s.seen)

	if len(entry.Body) == 0 {
		s.stats.SkippedEntries++
		return RawEntry{}, false
	}
	s.stats.Entries++
	return entry, true
}

func (s *Scanner) sourceName() string {
	if s.source == "" {
		return "input"
	}
	return s.source
}
