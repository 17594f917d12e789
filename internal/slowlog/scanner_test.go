package slowlog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mysql8Log = `/usr/sbin/mysqld, Version: 8.0.32 (MySQL Community Server - GPL). started with:
Tcp port: 3306  Unix socket: /var/run/mysqld/mysqld.sock
Time                 Id Command    Argument
# Time: 2023-10-27T10:00:00.000000Z
# User@Host: app[app] @ localhost [127.0.0.1]  Id:     8
# Query_time: 1.500000  Lock_time: 0.000100 Rows_sent: 1  Rows_examined: 100
use shop;
SET timestamp=1698400800;
SELECT * FROM users WHERE id = 1;
# Time: 2023-10-27T10:00:05.000000Z
# User@Host: app[app] @ localhost [127.0.0.1]  Id:     8
# Query_time: 0.500000  Lock_time: 0.000000 Rows_sent: 1  Rows_examined: 100
SET timestamp=1698400805;
SELECT * FROM users WHERE id = 42;
# User@Host: report[report] @ db2 [10.0.0.2]  Id:     9
# Query_time: 3.000000  Lock_time: 0.200000 Rows_sent: 5  Rows_examined: 5000
SET timestamp=1698400810;
SELECT name,
       email
  FROM orders
 WHERE total > 100;
`

func scanAll(t *testing.T, input string, conf ...ScannerConfig) ([]RawEntry, *Scanner) {
	t.Helper()
	s := NewScanner(strings.NewReader(input), DefaultFormat(), conf...)
	var entries []RawEntry
	for {
		e, ok := s.Next()
		if !ok {
			break
		}
		entries = append(entries, e)
	}
	return entries, s
}

func TestScannerSplitsEntries(t *testing.T) {
	entries, s := scanAll(t, mysql8Log, ScannerConfig{Source: "slow.log"})
	require.NoError(t, s.Err())
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, "slow.log", first.Source)
	assert.Equal(t, 4, first.Line)
	require.Len(t, first.Headers, 5)
	assert.Equal(t, KindTime, first.Headers[0].Kind)
	assert.Equal(t, KindUserHost, first.Headers[1].Kind)
	assert.Equal(t, KindStats, first.Headers[2].Kind)
	assert.Equal(t, KindSchema, first.Headers[3].Kind)
	assert.Equal(t, KindSetTimestamp, first.Headers[4].Kind)
	assert.Equal(t, "SELECT * FROM users WHERE id = 1;", first.SQL())

	third := entries[2]
	assert.Equal(t, KindUserHost, third.Headers[0].Kind)
	assert.Len(t, third.Body, 4)

	stats := s.Stats()
	assert.EqualValues(t, 3, stats.Entries)
	assert.EqualValues(t, 3, stats.AdminLines)
	assert.Zero(t, stats.OrphanLines)
}

func TestScannerAdminLineEndsBody(t *testing.T) {
	input := `# Time: 2023-10-27T10:00:00Z
# Query_time: 1.0  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 1;
/usr/sbin/mysqld, Version: 8.0.32 (MySQL Community Server - GPL). started with:
Tcp port: 3306  Unix socket: /tmp/mysql.sock
Time                 Id Command    Argument
stray text after restart
# Query_time: 2.0  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 2;
`
	entries, s := scanAll(t, input)
	require.NoError(t, s.Err())
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"SELECT 1;"}, entries[0].Body)
	assert.Equal(t, []string{"SELECT 2;"}, entries[1].Body)
	assert.EqualValues(t, 3, s.Stats().AdminLines)
	assert.EqualValues(t, 1, s.Stats().OrphanLines)
}

func TestScannerAdministratorCommandSkipsEntry(t *testing.T) {
	input := `# Time: 2023-10-27T10:00:00Z
# User@Host: app[app] @ localhost []
# Query_time: 0.1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
# administrator command: Ping;
# Time: 2023-10-27T10:00:01Z
# Query_time: 0.2  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 1;
`
	entries, s := scanAll(t, input)
	require.NoError(t, s.Err())
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT 1;", entries[0].SQL())
	assert.EqualValues(t, 1, s.Stats().SkippedEntries)
	assert.EqualValues(t, 1, s.Stats().AdminLines)
}

func TestScannerRepeatedHeaderStartsNewEntry(t *testing.T) {
	input := `# Time: 2023-10-27T10:00:00Z
# Time: 2023-10-27T10:00:01Z
# Query_time: 0.2  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 1;
`
	entries, s := scanAll(t, input)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Headers, 2)
	assert.EqualValues(t, 1, s.Stats().SkippedEntries)
}

func TestScannerBodyKeepsInteriorBlankLinesAndComments(t *testing.T) {
	input := "# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0\r\n" +
		"SELECT a\r\n" +
		"\r\n" +
		"# trailing note: ignored by the server\r\n" +
		"FROM t;\r\n" +
		"\r\n" +
		"\r\n"
	entries, s := scanAll(t, input)
	require.NoError(t, s.Err())
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"SELECT a", "", "# trailing note: ignored by the server", "FROM t;"}, entries[0].Body)
}

func TestScannerOrphanLinesBeforeFirstHeader(t *testing.T) {
	input := "SELECT orphan;\n# just a comment\n\n# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0\nSELECT 1;\n"
	entries, s := scanAll(t, input)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 2, s.Stats().OrphanLines)
}

func TestScannerMariaDBHeaders(t *testing.T) {
	input := `# Time: 231027  9:05:03
# User@Host: app[app] @ localhost []
# Thread_id: 42  Schema: shop  QC_hit: No
# Query_time: 0.000215  Lock_time: 0.000056  Rows_sent: 1  Rows_examined: 1
# Rows_affected: 0  Bytes_sent: 73
SET timestamp=1698397503;
SELECT 1;
`
	entries, s := scanAll(t, input)
	require.NoError(t, s.Err())
	require.Len(t, entries, 1)
	kinds := make([]HeaderKind, 0, len(entries[0].Headers))
	for _, h := range entries[0].Headers {
		kinds = append(kinds, h.Kind)
	}
	assert.Equal(t, []HeaderKind{KindTime, KindUserHost, KindThread, KindStats, KindExtra, KindSetTimestamp}, kinds)
}

func TestScannerEmptyInput(t *testing.T) {
	entries, s := scanAll(t, "")
	require.NoError(t, s.Err())
	assert.Empty(t, entries)
}

func TestScannerLineTooLong(t *testing.T) {
	input := "# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0\nSELECT '" + strings.Repeat("x", 256) + "';\n"
	entries, s := scanAll(t, input, ScannerConfig{Source: "big.log", MaxLineSize: 128})
	assert.Empty(t, entries)
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "big.log")
	assert.Contains(t, s.Err().Error(), "line 2")
}
