package logsource

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "# Query_time: 1.0  Lock_time: 0 Rows_sent: 1  Rows_examined: 1\nSELECT 1;\n"

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readSource(t *testing.T, src Source) string {
	t.Helper()
	rc, err := src.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestFileSourceDecodesByContent(t *testing.T) {
	dir := t.TempDir()
	tests := map[string][]byte{
		"plain.log":    []byte(sampleText),
		"slow.log.gz":  gzipBytes(t, sampleText),
		"slow.log.zst": zstdBytes(t, sampleText),
		// Detection ignores the extension.
		"rotated.1": gzipBytes(t, sampleText),
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, content, 0o644))
			src := NewFileSource(path)
			assert.Equal(t, path, src.Name())
			assert.Equal(t, sampleText, readSource(t, src))
		})
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.log")
	_, err := NewFileSource(path).Open()
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "nope.log")
}

func TestFileSourceCorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gz")
	require.NoError(t, os.WriteFile(path, []byte{0x1f, 0x8b, 0x00}, 0o644))
	_, err := NewFileSource(path).Open()
	assert.Error(t, err)
}

func TestStdinSource(t *testing.T) {
	src := NewStdinSource(bytes.NewReader(gzipBytes(t, sampleText)))
	assert.Equal(t, "stdin", src.Name())
	assert.Equal(t, sampleText, readSource(t, src))
}

func TestStdinSourceShortInput(t *testing.T) {
	assert.Equal(t, "x", readSource(t, NewStdinSource(strings.NewReader("x"))))
	assert.Equal(t, "", readSource(t, NewStdinSource(strings.NewReader(""))))
}

func TestResolve(t *testing.T) {
	stdin := strings.NewReader("")

	sources, err := Resolve(nil, stdin)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "stdin", sources[0].Name())

	sources, err = Resolve([]string{"a.log", "-", "b.log"}, stdin)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.log", "stdin", "b.log"}, Names(sources))
}

func TestResolveRejectsRepeatedStdin(t *testing.T) {
	_, err := Resolve([]string{"-", "a.log", "-"}, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrDuplicateStdin)
}

func TestDetect(t *testing.T) {
	assert.Equal(t, CompressionGzip, Detect([]byte{0x1f, 0x8b, 0x08}))
	assert.Equal(t, CompressionZstd, Detect([]byte{0x28, 0xb5, 0x2f, 0xfd}))
	assert.Equal(t, CompressionNone, Detect([]byte("# Time")))
	assert.Equal(t, CompressionNone, Detect(nil))
}
