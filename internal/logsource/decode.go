package logsource

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Compression names the detected encoding of a stream.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Detect reports the compression of a stream from its leading bytes.
func Detect(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c())
	}
	return err
}

// decode sniffs r and returns a reader over its decompressed content.
// underlying, when non-nil, is closed with the returned reader.
func decode(r io.Reader, underlying io.Closer) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	out := &readCloser{}
	if underlying != nil {
		out.closers = append(out.closers, underlying.Close)
	}

	switch Detect(head) {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		out.Reader = zr
		out.closers = append([]func() error{zr.Close}, out.closers...)
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		out.Reader = zr
		out.closers = append([]func() error{func() error { zr.Close(); return nil }}, out.closers...)
	default:
		out.Reader = br
	}
	return out, nil
}
