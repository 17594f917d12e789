// Package logsource opens the named byte streams the digest pipeline reads:
// files (plain, gzip or zstd) and stdin.
package logsource

import (
	"errors"
	"io"
)

// StdinName is the argument that selects standard input.
const StdinName = "-"

// ErrDuplicateStdin is returned by Resolve when "-" is named more than once.
// Stdin can only be read by one source.
var ErrDuplicateStdin = errors.New(`stdin ("-") given more than once`)

// Source is a named input stream of slow-log text.
type Source interface {
	// Name identifies the stream in errors and reports.
	Name() string
	// Open returns a reader over the decompressed text.
	Open() (io.ReadCloser, error)
}

// Resolve maps command-line arguments to sources in argument order. No
// arguments, or "-", selects stdin.
func Resolve(args []string, stdin io.Reader) ([]Source, error) {
	if len(args) == 0 {
		return []Source{NewStdinSource(stdin)}, nil
	}
	sources := make([]Source, 0, len(args))
	seenStdin := false
	for _, arg := range args {
		if arg == StdinName {
			if seenStdin {
				return nil, ErrDuplicateStdin
			}
			seenStdin = true
			sources = append(sources, NewStdinSource(stdin))
			continue
		}
		sources = append(sources, NewFileSource(arg))
	}
	return sources, nil
}

// Names returns the names of sources in order.
func Names(sources []Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}
