package slowlog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// legacyTimeLayout is the MySQL 5.6 / MariaDB "# Time: 231027  9:05:03" form.
const legacyTimeLayout = "060102 15:04:05"

// Extractor turns raw entries into typed metadata. It owns the per-stream
// timestamp inheritance state, so use one Extractor per input stream.
type Extractor struct {
	format    *Format
	last      time.Time
	hasLast   bool
	malformed int64
}

// NewExtractor creates an Extractor for the given format.
func NewExtractor(format *Format) *Extractor {
	if format == nil {
		format = DefaultFormat()
	}
	return &Extractor{format: format}
}

// Malformed returns the number of header lines that carried an unparseable
// value. Each offending line counts once.
func (x *Extractor) Malformed() int64 { return x.malformed }

// Extract parses e's headers and returns its metadata and SQL body.
// It never fails: bad values default to zero and count as malformed.
func (x *Extractor) Extract(e RawEntry) (EntryMetadata, string) {
	var (
		meta       EntryMetadata
		headerTime time.Time
		setTime    time.Time
		hasHeader  bool
		hasSet     bool
	)

	for _, h := range e.Headers {
		switch h.Kind {
		case KindTime:
			t, err := parseLogTime(h.Groups["value"])
			if err != nil {
				x.malformed++
				continue
			}
			headerTime, hasHeader = t, true
		case KindUserHost:
			if !x.parseUserHost(h, &meta) {
				x.malformed++
			}
		case KindStats, KindThread, KindExtra:
			if !x.parseFields(h.Text, &meta) {
				x.malformed++
			}
		case KindSchema:
			meta.Database = h.Groups["value"]
		case KindSetTimestamp:
			t, err := parseUnixTimestamp(h.Groups["value"])
			if err != nil {
				x.malformed++
				continue
			}
			setTime, hasSet = t, true
		}
	}

	switch {
	case hasHeader:
		meta.Timestamp, meta.HasTimestamp = headerTime, true
	case hasSet:
		meta.Timestamp, meta.HasTimestamp = setTime, true
	case x.hasLast:
		meta.Timestamp, meta.HasTimestamp = x.last, true
	}
	if meta.HasTimestamp {
		x.last, x.hasLast = meta.Timestamp, true
	}

	return meta, e.SQL()
}

func (x *Extractor) parseUserHost(h HeaderLine, meta *EntryMetadata) bool {
	meta.User = h.Groups["user"]
	if meta.User == "" {
		meta.User = h.Groups["effective"]
	}
	meta.Host = h.Groups["host"]
	if meta.Host == "" {
		meta.Host = h.Groups["ip"]
	}
	if id := h.Groups["id"]; id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n < 0 {
			return false
		}
		meta.ConnectionID = n
	}
	return true
}

// parseFields reads "Key: value" pairs from a header line. It reports false
// when any mapped numeric value failed to parse.
func (x *Extractor) parseFields(text string, meta *EntryMetadata) bool {
	tokens := strings.Fields(strings.TrimPrefix(text, x.format.HeaderPrefix))
	ok := true
	for i, tok := range tokens {
		if !isFieldKey(tok) {
			continue
		}
		field, known := x.format.field(strings.TrimSuffix(tok, ":"))
		if !known {
			continue
		}
		value := ""
		if i+1 < len(tokens) && !isFieldKey(tokens[i+1]) {
			value = tokens[i+1]
		}
		if !applyField(meta, field, value) {
			ok = false
		}
	}
	return ok
}

func isFieldKey(tok string) bool {
	return len(tok) > 1 && strings.HasSuffix(tok, ":")
}

func applyField(meta *EntryMetadata, field, value string) bool {
	switch field {
	case fieldQueryTime:
		return parseSeconds(value, &meta.QueryTime)
	case fieldLockTime:
		return parseSeconds(value, &meta.LockTime)
	case fieldRowsSent:
		return parseCount(value, &meta.RowsSent)
	case fieldRowsExamined:
		return parseCount(value, &meta.RowsExamined)
	case fieldRowsAffected:
		return parseCount(value, &meta.RowsAffected)
	case fieldBytesSent:
		return parseCount(value, &meta.BytesSent)
	case fieldConnectionID:
		return parseCount(value, &meta.ConnectionID)
	case fieldDatabase:
		if value != "" {
			meta.Database = value
		}
	}
	return true
}

func parseSeconds(value string, dst *float64) bool {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		*dst = 0
		return false
	}
	*dst = f
	return true
}

func parseCount(value string, dst *int64) bool {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		*dst = 0
		return false
	}
	*dst = n
	return true
}

func parseLogTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	if fields := strings.Fields(value); len(fields) == 2 {
		if t, err := time.Parse(legacyTimeLayout, fields[0]+" "+fields[1]); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

func parseUnixTimestamp(value string) (time.Time, error) {
	secPart, fracPart, hasFrac := strings.Cut(value, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 {
		return time.Time{}, fmt.Errorf("invalid unix timestamp %q", value)
	}
	var nsec int64
	if hasFrac {
		if fracPart == "" || len(fracPart) > 9 {
			return time.Time{}, fmt.Errorf("invalid unix timestamp %q", value)
		}
		n, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid unix timestamp %q", value)
		}
		nsec = n * int64(math.Pow10(9-len(fracPart)))
	}
	return time.Unix(sec, nsec).UTC(), nil
}
