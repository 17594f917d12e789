package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/logsource"
)

const threeEntries = `# Time: 2023-10-27T10:00:00.000000Z
# User@Host: app[app] @ localhost []
# Query_time: 0.500000  Lock_time: 0.000000 Rows_sent: 1  Rows_examined: 10
SELECT * FROM t WHERE id = 1;
# Time: 2023-10-27T10:00:01.000000Z
# User@Host: app[app] @ localhost []
# Query_time: 1.500000  Lock_time: 0.000000 Rows_sent: 1  Rows_examined: 10
SELECT * FROM t WHERE id = 2;
# Time: 2023-10-27T10:00:02.000000Z
# User@Host: app[app] @ localhost []
# Query_time: 3.000000  Lock_time: 0.000000 Rows_sent: 0  Rows_examined: 0
UPDATE u SET x = 5;
`

type jsonReport struct {
	Metric   string `json:"metric"`
	Timezone string `json:"timezone"`
	Summary  struct {
		Entries      int64 `json:"entries"`
		Fingerprints int   `json:"fingerprints"`
	} `json:"summary"`
	Digests []struct {
		Rank           int     `json:"rank"`
		Fingerprint    string  `json:"fingerprint"`
		Count          int64   `json:"count"`
		TotalQueryTime float64 `json:"total_query_time"`
		FirstSeen      *string `json:"first_seen"`
	} `json:"digests"`
}

// isolate points HOME at a temp dir so a developer's config file is never read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeLog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slow.log")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func decodeReport(t *testing.T, out string) jsonReport {
	t.Helper()
	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	return rep
}

func TestDigestTable(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "", "digest", writeLog(t, threeEntries))
	require.NoError(t, err)

	assert.Contains(t, out, "Rank")
	assert.Contains(t, out, "UPDATE u SET x = ?")
	assert.Contains(t, out, "Detailed Report")
	assert.Less(t, strings.Index(out, "UPDATE u SET"), strings.Index(out, "SELECT * FROM t"))
}

func TestDigestJSONFromStdin(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, threeEntries, "digest", "--format", "json")
	require.NoError(t, err)

	rep := decodeReport(t, out)
	assert.Equal(t, "total-time", rep.Metric)
	assert.EqualValues(t, 3, rep.Summary.Entries)
	require.Len(t, rep.Digests, 2)
	assert.EqualValues(t, 1, rep.Digests[0].Count)
	assert.InDelta(t, 3.0, rep.Digests[0].TotalQueryTime, 1e-9)
	assert.EqualValues(t, 2, rep.Digests[1].Count)
	assert.InDelta(t, 2.0, rep.Digests[1].TotalQueryTime, 1e-9)
	require.NotNil(t, rep.Digests[0].FirstSeen)
	assert.Equal(t, "2023-10-27T10:00:02Z", *rep.Digests[0].FirstSeen)
}

func TestDigestMetricLimitAndTimezone(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "", "digest", "-f", "json", "-m", "count", "-n", "1", "--timezone", "+09:00", writeLog(t, threeEntries))
	require.NoError(t, err)

	rep := decodeReport(t, out)
	assert.Equal(t, "count", rep.Metric)
	assert.Equal(t, "+09:00", rep.Timezone)
	require.Len(t, rep.Digests, 1)
	assert.EqualValues(t, 2, rep.Digests[0].Count)
	require.NotNil(t, rep.Digests[0].FirstSeen)
	assert.Equal(t, "2023-10-27T19:00:00+09:00", *rep.Digests[0].FirstSeen)
}

func TestDigestParallelMatchesSequential(t *testing.T) {
	isolate(t)
	a, b := writeLog(t, threeEntries), writeLog(t, threeEntries)

	seq, _, err := execute(t, "", "digest", "-f", "json", a, b)
	require.NoError(t, err)
	par, _, err := execute(t, "", "digest", "-f", "json", "--parallel", "2", a, b)
	require.NoError(t, err)

	assert.Equal(t, decodeReport(t, seq), decodeReport(t, par))
	assert.EqualValues(t, 6, decodeReport(t, par).Summary.Entries)
}

func TestDigestOutputFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "report.html")
	out, _, err := execute(t, "", "digest", "--format", "html", "--output", path, writeLog(t, threeEntries))
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<html")
	assert.Contains(t, string(data), "UPDATE u SET x = ?")
}

func TestDigestEnvAndConfigFile(t *testing.T) {
	home := isolate(t)
	cfgDir := filepath.Join(home, ".config", "slowdigest")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yml"), []byte("metric: count\nformat: json\n"), 0o644))

	out, _, err := execute(t, "", "digest", writeLog(t, threeEntries))
	require.NoError(t, err)
	assert.Equal(t, "count", decodeReport(t, out).Metric)

	t.Setenv("SLOWDIGEST_LIMIT", "1")
	out, _, err = execute(t, "", "digest", writeLog(t, threeEntries))
	require.NoError(t, err)
	assert.Len(t, decodeReport(t, out).Digests, 1)

	// Flags win over both.
	out, _, err = execute(t, "", "digest", "--metric", "max-time", "--limit", "2", writeLog(t, threeEntries))
	require.NoError(t, err)
	rep := decodeReport(t, out)
	assert.Equal(t, "max-time", rep.Metric)
	assert.Len(t, rep.Digests, 2)
}

func TestDigestExplicitConfigFile(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: json\nlimit: 1\n"), 0o644))

	out, _, err := execute(t, "", "digest", "--config", cfgPath, writeLog(t, threeEntries))
	require.NoError(t, err)
	assert.Len(t, decodeReport(t, out).Digests, 1)
}

func TestDigestInvalidSettings(t *testing.T) {
	isolate(t)
	missing := filepath.Join(t.TempDir(), "missing.log")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero limit", []string{"--limit", "0"}, "limit"},
		{"negative limit", []string{"--limit=-3"}, "limit"},
		{"unknown metric", []string{"--metric", "p99"}, "unknown metric"},
		{"unknown format", []string{"--format", "xml"}, "unknown report format"},
		{"zero parallel", []string{"--parallel", "0"}, "parallel"},
		{"bad log level", []string{"--log-level", "loud"}, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Settings are rejected before the missing input is opened.
			_, _, err := execute(t, "", append([]string{"digest", missing}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, err.Error(), "missing.log")
		})
	}
}

func TestDigestMissingFile(t *testing.T) {
	isolate(t)
	missing := filepath.Join(t.TempDir(), "missing.log")
	_, _, err := execute(t, "", "digest", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.log")
}

func TestDigestRejectsRepeatedStdin(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, threeEntries, "digest", "--parallel", "2", "-", "-")
	require.ErrorIs(t, err, logsource.ErrDuplicateStdin)
}

func TestDigestEmptyInput(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "", "digest")
	require.NoError(t, err)
	assert.Contains(t, out, "No queries found.")
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestLoadStore(t *testing.T) {
	isolate(t)
	cfg := appConfig{Parallel: 1, MaxLineSize: defaultMaxLineSize, QueryTimeout: defaultQueryTimeout}
	store, summary, err := loadStore(context.Background(), cfg, []string{writeLog(t, threeEntries)}, nil, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.EqualValues(t, 3, summary.Entries)
	rows, err := store.TopDigests(10, digest.MetricCount.String())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 2, rows[0].Count)
}

func TestServeStopsOnCancel(t *testing.T) {
	isolate(t)
	cfg := appConfig{
		Parallel:     1,
		MaxLineSize:  defaultMaxLineSize,
		QueryTimeout: defaultQueryTimeout,
		Addr:         "127.0.0.1:0",
		SocketPath:   filepath.Join(t.TempDir(), "serve.sock"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := runServe(ctx, cfg, []string{writeLog(t, threeEntries)}, nil, &out, zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "HTTP API")
	assert.Contains(t, out.String(), "serve.sock")

	_, statErr := os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(statErr), "socket should be removed on shutdown")
}
