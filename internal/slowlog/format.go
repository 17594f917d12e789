package slowlog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_format.yaml
var defaultFormatYAML []byte

// HeaderKind enumerates the line kinds the scanner and extractor recognize.
type HeaderKind int

const (
	// KindNone is a line that carries no header marker: SQL body text.
	KindNone HeaderKind = iota
	KindTime
	KindUserHost
	KindStats
	KindThread
	KindExtra
	KindSchema
	KindSetTimestamp
	// KindUnknown is a comment line in header position that matched no rule.
	KindUnknown
	KindAdmin
)

var kindNames = map[HeaderKind]string{
	KindNone:         "none",
	KindTime:         "time",
	KindUserHost:     "user_host",
	KindStats:        "stats",
	KindThread:       "thread",
	KindExtra:        "extra",
	KindSchema:       "schema",
	KindSetTimestamp: "set_timestamp",
	KindUnknown:      "unknown",
	KindAdmin:        "admin",
}

func (k HeaderKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("HeaderKind(%d)", int(k))
}

// ParseHeaderKind maps a rule kind name from a format file to its HeaderKind.
func ParseHeaderKind(name string) (HeaderKind, error) {
	for k, n := range kindNames {
		if n == name {
			switch k {
			case KindNone, KindUnknown, KindAdmin:
				return KindNone, fmt.Errorf("header kind %q cannot be used in a rule", name)
			}
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown header kind %q", name)
}

// HeaderRule binds a line pattern to a header kind.
type HeaderRule struct {
	Kind        string `yaml:"kind"`
	Pattern     string `yaml:"pattern"`
	StartsEntry bool   `yaml:"starts_entry"`
	// Context rules only match in header position (e.g. "use db;").
	Context bool `yaml:"context"`

	kind HeaderKind
	re   *regexp.Regexp
}

// Format is the set of line patterns describing one slow-log dialect.
type Format struct {
	HeaderPrefix string              `yaml:"header_prefix"`
	Headers      []HeaderRule        `yaml:"headers"`
	Admin        []string            `yaml:"admin"`
	Fields       map[string][]string `yaml:"fields"`

	admin    []*regexp.Regexp
	fieldFor map[string]string
}

var (
	defaultFormat     *Format
	defaultFormatOnce sync.Once
)

// DefaultFormat returns the built-in MySQL/MariaDB/Percona slow-log format.
func DefaultFormat() *Format {
	defaultFormatOnce.Do(func() {
		f, err := ParseFormat(defaultFormatYAML)
		if err != nil {
			panic(fmt.Sprintf("slowlog: embedded format is invalid: %v", err))
		}
		defaultFormat = f
	})
	return defaultFormat
}

// LoadFormat reads a format definition from path. An empty path returns the
// built-in format.
func LoadFormat(path string) (*Format, error) {
	if path == "" {
		return DefaultFormat(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log format %s: %w", path, err)
	}
	f, err := ParseFormat(data)
	if err != nil {
		return nil, fmt.Errorf("parsing log format %s: %w", path, err)
	}
	return f, nil
}

// ParseFormat decodes and compiles a YAML format definition.
func ParseFormat(data []byte) (*Format, error) {
	var f Format
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.HeaderPrefix == "" {
		return nil, fmt.Errorf("header_prefix is required")
	}
	if len(f.Headers) == 0 {
		return nil, fmt.Errorf("at least one header rule is required")
	}

	for i := range f.Headers {
		rule := &f.Headers[i]
		kind, err := ParseHeaderKind(rule.Kind)
		if err != nil {
			return nil, fmt.Errorf("header rule %d: %w", i, err)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("header rule %d (%s): %w", i, rule.Kind, err)
		}
		rule.kind = kind
		rule.re = re
	}

	for i, pattern := range f.Admin {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("admin pattern %d: %w", i, err)
		}
		f.admin = append(f.admin, re)
	}

	f.fieldFor = make(map[string]string)
	for field, keys := range f.Fields {
		if !knownField(field) {
			return nil, fmt.Errorf("unknown metadata field %q", field)
		}
		for _, key := range keys {
			f.fieldFor[strings.ToLower(key)] = field
		}
	}

	return &f, nil
}

// Classification is the result of matching one line against a Format.
type Classification struct {
	Kind        HeaderKind
	StartsEntry bool
	// Groups holds named capture groups of the matching rule.
	Groups map[string]string
}

// Classify matches line against the format. inHeader reports whether the
// scanner is positioned in an entry's header block; context rules and the
// unknown-comment fallback only apply there.
func (f *Format) Classify(line string, inHeader bool) Classification {
	for _, re := range f.admin {
		if re.MatchString(line) {
			return Classification{Kind: KindAdmin}
		}
	}

	for i := range f.Headers {
		rule := &f.Headers[i]
		if rule.Context && !inHeader {
			continue
		}
		m := rule.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		c := Classification{Kind: rule.kind, StartsEntry: rule.StartsEntry}
		for gi, name := range rule.re.SubexpNames() {
			if name == "" {
				continue
			}
			if c.Groups == nil {
				c.Groups = make(map[string]string)
			}
			c.Groups[name] = m[gi]
		}
		return c
	}

	if inHeader && strings.HasPrefix(line, f.HeaderPrefix) {
		return Classification{Kind: KindUnknown}
	}
	return Classification{Kind: KindNone}
}

// field returns the metadata field a "Key:" header token maps to.
func (f *Format) field(key string) (string, bool) {
	name, ok := f.fieldFor[strings.ToLower(key)]
	return name, ok
}

const (
	fieldQueryTime    = "query_time"
	fieldLockTime     = "lock_time"
	fieldRowsSent     = "rows_sent"
	fieldRowsExamined = "rows_examined"
	fieldRowsAffected = "rows_affected"
	fieldBytesSent    = "bytes_sent"
	fieldConnectionID = "connection_id"
	fieldDatabase     = "database"
)

func knownField(name string) bool {
	switch name {
	case fieldQueryTime, fieldLockTime, fieldRowsSent, fieldRowsExamined,
		fieldRowsAffected, fieldBytesSent, fieldConnectionID, fieldDatabase:
		return true
	}
	return false
}
