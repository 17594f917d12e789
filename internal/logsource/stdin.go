package logsource

import (
	"fmt"
	"io"
	"os"
)

// StdinSource reads a slow log from standard input. Open may be called once.
type StdinSource struct {
	r io.Reader
}

// NewStdinSource creates a StdinSource over r; nil means os.Stdin.
func NewStdinSource(r io.Reader) *StdinSource {
	if r == nil {
		r = os.Stdin
	}
	return &StdinSource{r: r}
}

func (s *StdinSource) Name() string { return "stdin" }

// Open returns the decompressed stream. Closing it does not close stdin.
func (s *StdinSource) Open() (io.ReadCloser, error) {
	rc, err := decode(s.r, nil)
	if err != nil {
		return nil, fmt.Errorf("opening stdin: %w", err)
	}
	return rc, nil
}
