package logsource

import (
	"fmt"
	"io"
	"os"
)

// FileSource reads a slow log from disk.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string { return f.path }

// Open opens the file and wraps it in a decompressor when its content is
// gzip or zstd.
func (f *FileSource) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.path, err)
	}
	rc, err := decode(file, file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("opening %s: %w", f.path, err)
	}
	return rc, nil
}
