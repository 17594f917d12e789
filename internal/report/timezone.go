package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):?(\d{2})$`)

// ParseTimezone accepts a fixed offset ("+09:00", "-0530"), "UTC"/"Z", or an
// IANA zone name ("Asia/Tokyo").
func ParseTimezone(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "UTC", "Z":
		return time.UTC, nil
	}
	if m := offsetPattern.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes, _ := strconv.Atoi(m[3])
		if hours > 23 || minutes > 59 {
			return nil, fmt.Errorf("invalid timezone offset %q", s)
		}
		secs := hours*3600 + minutes*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(fmt.Sprintf("%s%s:%s", m[1], m[2], m[3]), secs), nil
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s, err)
	}
	return loc, nil
}

// LoadTimezone is ParseTimezone that falls back to UTC with a warning.
func LoadTimezone(s string, logger *zap.Logger) *time.Location {
	loc, err := ParseTimezone(s)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid timezone, using UTC", zap.String("timezone", s), zap.Error(err))
		}
		return time.UTC
	}
	return loc
}
