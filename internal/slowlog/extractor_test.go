package slowlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractAll(t *testing.T, input string) ([]EntryMetadata, []string, *Extractor) {
	t.Helper()
	entries, s := scanAll(t, input)
	require.NoError(t, s.Err())
	x := NewExtractor(DefaultFormat())
	var metas []EntryMetadata
	var bodies []string
	for _, e := range entries {
		m, body := x.Extract(e)
		metas = append(metas, m)
		bodies = append(bodies, body)
	}
	return metas, bodies, x
}

func TestExtractMySQL8Entry(t *testing.T) {
	metas, bodies, x := extractAll(t, mysql8Log)
	require.Len(t, metas, 3)
	assert.Zero(t, x.Malformed())

	m := metas[0]
	assert.True(t, m.HasTimestamp)
	assert.Equal(t, time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC), m.Timestamp)
	assert.Equal(t, "app", m.User)
	assert.Equal(t, "localhost", m.Host)
	assert.EqualValues(t, 8, m.ConnectionID)
	assert.Equal(t, "shop", m.Database)
	assert.InDelta(t, 1.5, m.QueryTime, 1e-9)
	assert.InDelta(t, 0.0001, m.LockTime, 1e-9)
	assert.EqualValues(t, 1, m.RowsSent)
	assert.EqualValues(t, 100, m.RowsExamined)
	assert.Equal(t, "SELECT * FROM users WHERE id = 1;", bodies[0])
}

func TestExtractTimestampPriority(t *testing.T) {
	metas, _, _ := extractAll(t, mysql8Log)

	// "# Time:" wins over SET timestamp.
	assert.Equal(t, time.Date(2023, 10, 27, 10, 0, 5, 0, time.UTC), metas[1].Timestamp)
	// Without "# Time:", SET timestamp supplies the instant.
	assert.Equal(t, time.Unix(1698400810, 0).UTC(), metas[2].Timestamp)
}

func TestExtractInheritsTimestamp(t *testing.T) {
	input := `# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 0;
# Time: 2023-10-27T10:00:00Z
# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 1;
# User@Host: app[app] @ localhost []
# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 2;
`
	metas, _, _ := extractAll(t, input)
	require.Len(t, metas, 3)
	assert.False(t, metas[0].HasTimestamp)
	assert.True(t, metas[0].Timestamp.IsZero())
	assert.True(t, metas[2].HasTimestamp)
	assert.Equal(t, metas[1].Timestamp, metas[2].Timestamp)
}

func TestExtractMalformedStatsLine(t *testing.T) {
	input := `# Time: 2023-10-27T10:00:00Z
# Query_time: abc  Lock_time: 0.5 Rows_sent: 2  Rows_examined: 1e3
SELECT 1;
`
	metas, bodies, x := extractAll(t, input)
	require.Len(t, metas, 1)
	assert.Equal(t, "SELECT 1;", bodies[0])
	assert.Zero(t, metas[0].QueryTime)
	assert.Zero(t, metas[0].RowsExamined)
	assert.InDelta(t, 0.5, metas[0].LockTime, 1e-9)
	assert.EqualValues(t, 2, metas[0].RowsSent)
	// Two bad values on one line count once.
	assert.EqualValues(t, 1, x.Malformed())
}

func TestExtractMissingStatsValue(t *testing.T) {
	input := "# Query_time:  Lock_time: 0.5 Rows_sent: 2  Rows_examined: 3\nSELECT 1;\n"
	metas, _, x := extractAll(t, input)
	require.Len(t, metas, 1)
	assert.Zero(t, metas[0].QueryTime)
	assert.InDelta(t, 0.5, metas[0].LockTime, 1e-9)
	assert.EqualValues(t, 1, x.Malformed())
}

func TestExtractNegativeValuesAreMalformed(t *testing.T) {
	input := "# Query_time: -1  Lock_time: 0 Rows_sent: -2  Rows_examined: 3\nSELECT 1;\n"
	metas, _, x := extractAll(t, input)
	require.Len(t, metas, 1)
	assert.Zero(t, metas[0].QueryTime)
	assert.Zero(t, metas[0].RowsSent)
	assert.EqualValues(t, 1, x.Malformed())
}

func TestExtractMariaDBEntry(t *testing.T) {
	input := `# Time: 231027  9:05:03
# User@Host: app[app] @  [10.1.2.3]
# Thread_id: 42  Schema: shop  QC_hit: No
# Query_time: 0.000215  Lock_time: 0.000056  Rows_sent: 1  Rows_examined: 1
# Rows_affected: 3  Bytes_sent: 73
SELECT 1;
`
	metas, _, x := extractAll(t, input)
	require.Len(t, metas, 1)
	m := metas[0]
	assert.Zero(t, x.Malformed())
	assert.Equal(t, time.Date(2023, 10, 27, 9, 5, 3, 0, time.UTC), m.Timestamp)
	assert.Equal(t, "10.1.2.3", m.Host)
	assert.EqualValues(t, 42, m.ConnectionID)
	assert.Equal(t, "shop", m.Database)
	assert.EqualValues(t, 3, m.RowsAffected)
	assert.EqualValues(t, 73, m.BytesSent)
}

func TestExtractBadTimeFallsBackToInheritance(t *testing.T) {
	input := `# Time: 2023-10-27T10:00:00Z
# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 1;
# Time: yesterday-ish
# Query_time: 1  Lock_time: 0 Rows_sent: 0  Rows_examined: 0
SELECT 2;
`
	metas, _, x := extractAll(t, input)
	require.Len(t, metas, 2)
	assert.EqualValues(t, 1, x.Malformed())
	assert.Equal(t, metas[0].Timestamp, metas[1].Timestamp)
}

func TestParseUnixTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "1698400800", want: time.Unix(1698400800, 0).UTC()},
		{in: "1698400800.25", want: time.Unix(1698400800, 250_000_000).UTC()},
		{in: "", wantErr: true},
		{in: "12x", wantErr: true},
		{in: "1.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUnixTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
