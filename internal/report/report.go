package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

// ErrUnknownFormat is returned by ParseFormat for an unsupported name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format selects a renderer.
type Format string

const (
	FormatTable Format = "table"
	FormatHTML  Format = "html"
	FormatJSON  Format = "json"
)

// ParseFormat parses a format name; empty selects the table.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatHTML, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q (want table, html or json)", ErrUnknownFormat, name)
	}
}

const (
	tableQueryWidth = 50
	htmlQueryWidth  = 100
	maxQueryWidth   = 120
)

// Report is everything a renderer needs for one run.
type Report struct {
	Rows     []model.DigestRow
	Summary  model.RunSummary
	Metric   string
	Location *time.Location
	// QueryWidth bounds the table's query column; zero means 50 runes.
	QueryWidth int
}

func (r Report) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// Render writes rep to w in the given format.
func Render(w io.Writer, rep Report, format Format) error {
	switch format {
	case FormatHTML:
		return renderHTML(w, rep)
	case FormatJSON:
		return renderJSON(w, rep)
	case FormatTable, "":
		return renderTable(w, rep)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// QueryWidthFor sizes the table's query column to the terminal behind w:
// 40% of its width, between 50 and 120 runes. Non-terminals get 50.
func QueryWidthFor(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return tableQueryWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return tableQueryWidth
	}
	return min(max(width*4/10, tableQueryWidth), maxQueryWidth)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// OpenOutput returns a writer for path, or stdout when path is empty or "-".
func OpenOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return nopWriteCloser{stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating report %s: %w", path, err)
	}
	return f, nil
}
