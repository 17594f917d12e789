package digest

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/slowdigest/internal/slowlog"
)

var base = time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC)

type execution struct {
	fp   string
	sql  string
	meta slowlog.EntryMetadata
}

func exec(fp string, qt float64, offset time.Duration) execution {
	return execution{
		fp:  fp,
		sql: fmt.Sprintf("%s -- %.3f", fp, qt),
		meta: slowlog.EntryMetadata{
			Timestamp:    base.Add(offset),
			HasTimestamp: true,
			User:         "app",
			Host:         "db1",
			Database:     "shop",
			QueryTime:    qt,
			LockTime:     qt / 10,
			RowsSent:     1,
			RowsExamined: 10,
		},
	}
}

func foldAll(execs []execution) *Aggregator {
	a := NewAggregator()
	for _, e := range execs {
		a.Fold(e.fp, e.meta, e.sql)
	}
	return a
}

func sampleExecutions() []execution {
	return []execution{
		exec("A", 0.5, 0),
		exec("B", 3.0, time.Second),
		exec("A", 1.5, 2*time.Second),
		exec("C", 0.2, 3*time.Second),
		exec("A", 0.25, 4*time.Second),
		exec("C", 0.8, -time.Minute),
	}
}

func TestFoldFirstOccurrence(t *testing.T) {
	a := NewAggregator()
	e := exec("A", 0.5, 0)
	a.Fold(e.fp, e.meta, e.sql)

	s, ok := a.Get("A")
	require.True(t, ok)
	assert.EqualValues(t, 1, s.Count)
	assert.Equal(t, Span{Sum: 0.5, Min: 0.5, Max: 0.5}, s.QueryTime)
	assert.Equal(t, e.sql, s.SampleSQL)
	assert.Equal(t, e.sql, s.WorstSQL)
	assert.True(t, s.HasSeen)
	assert.Equal(t, base, s.FirstSeen)
	assert.Equal(t, base, s.LastSeen)
	assert.Equal(t, map[string]int64{"shop": 1}, s.Databases)
}

func TestFoldAccumulates(t *testing.T) {
	a := foldAll(sampleExecutions())
	require.Equal(t, 3, a.Len())

	s, ok := a.Get("A")
	require.True(t, ok)
	assert.EqualValues(t, 3, s.Count)
	assert.InDelta(t, 2.25, s.QueryTime.Sum, 1e-9)
	assert.InDelta(t, 0.25, s.QueryTime.Min, 1e-9)
	assert.InDelta(t, 1.5, s.QueryTime.Max, 1e-9)
	assert.InDelta(t, 0.225, s.LockTime.Sum, 1e-9)
	assert.EqualValues(t, 3, s.RowsSent)
	assert.EqualValues(t, 30, s.RowsExamined)
	assert.Equal(t, base, s.FirstSeen)
	assert.Equal(t, base.Add(4*time.Second), s.LastSeen)
	assert.Equal(t, "A -- 0.500", s.SampleSQL)
	assert.Equal(t, "A -- 1.500", s.WorstSQL)
	assert.InDelta(t, 1.5, s.WorstQueryTime, 1e-9)
	assert.Equal(t, map[string]int64{"app": 3}, s.Users)
	assert.LessOrEqual(t, s.QueryTime.Min, s.MeanQueryTime())
	assert.GreaterOrEqual(t, s.QueryTime.Max, s.MeanQueryTime())

	c, _ := a.Get("C")
	assert.Equal(t, base.Add(-time.Minute), c.FirstSeen)
	assert.Equal(t, base.Add(3*time.Second), c.LastSeen)
}

func TestFoldWithoutTimestamp(t *testing.T) {
	a := NewAggregator()
	a.Fold("A", slowlog.EntryMetadata{QueryTime: 1}, "SELECT 1")
	s, _ := a.Get("A")
	assert.False(t, s.HasSeen)
	assert.True(t, s.FirstSeen.IsZero())

	e := exec("A", 2, 0)
	a.Fold(e.fp, e.meta, e.sql)
	s, _ = a.Get("A")
	assert.True(t, s.HasSeen)
	assert.Equal(t, base, s.FirstSeen)
	assert.Equal(t, base, s.LastSeen)
}

func TestWorstSampleTieBreak(t *testing.T) {
	a := NewAggregator()
	a.Fold("A", slowlog.EntryMetadata{QueryTime: 2}, "SELECT b")
	a.Fold("A", slowlog.EntryMetadata{QueryTime: 2}, "SELECT a")
	a.Fold("A", slowlog.EntryMetadata{QueryTime: 1}, "SELECT 0")
	s, _ := a.Get("A")
	assert.Equal(t, "SELECT a", s.WorstSQL)
	assert.Equal(t, "SELECT b", s.SampleSQL)
}

// orderFree strips fields whose value legitimately depends on fold order.
func orderFree(s AggregateStat) AggregateStat {
	s.SampleSQL = ""
	s.queryTimes = nil
	return s
}

func assertSameStats(t *testing.T, want, got map[string]AggregateStat) {
	t.Helper()
	require.Len(t, got, len(want))
	for fp, w := range want {
		g, ok := got[fp]
		require.True(t, ok, "missing %s", fp)
		assert.InDelta(t, w.QueryTime.Sum, g.QueryTime.Sum, 1e-9, fp)
		assert.InDelta(t, w.LockTime.Sum, g.LockTime.Sum, 1e-9, fp)
		w.QueryTime.Sum, g.QueryTime.Sum = 0, 0
		w.LockTime.Sum, g.LockTime.Sum = 0, 0
		assert.Equal(t, orderFree(w), orderFree(g), fp)
	}
}

func TestFoldOrderIndependent(t *testing.T) {
	execs := sampleExecutions()
	want := foldAll(execs).Stats()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]execution(nil), execs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assertSameStats(t, want, foldAll(shuffled).Stats())
	}
}

func TestMergeMatchesSequentialFold(t *testing.T) {
	execs := sampleExecutions()
	sequential := foldAll(execs)

	left := foldAll(execs[:3])
	right := foldAll(execs[3:])
	left.Merge(right)

	assertSameStats(t, sequential.Stats(), left.Stats())
	for fp, s := range sequential.Stats() {
		m, _ := left.Get(fp)
		assert.Equal(t, s.SampleSQL, m.SampleSQL, "source-order merge keeps first-seen sample")
	}
}

func TestMergeIsCommutativeAndAssociative(t *testing.T) {
	execs := sampleExecutions()
	p1 := foldAll(execs[:2])
	p2 := foldAll(execs[2:4])
	p3 := foldAll(execs[4:])

	ab := NewAggregator()
	ab.Merge(p1)
	ab.Merge(p2)
	ab.Merge(p3)

	ba := NewAggregator()
	ba.Merge(p3)
	ba.Merge(p2)
	ba.Merge(p1)

	grouped := NewAggregator()
	tail := NewAggregator()
	tail.Merge(p2)
	tail.Merge(p3)
	grouped.Merge(p1)
	grouped.Merge(tail)

	assertSameStats(t, ab.Stats(), ba.Stats())
	assertSameStats(t, ab.Stats(), grouped.Stats())
	assertSameStats(t, foldAll(execs).Stats(), ab.Stats())
}

func TestMergeDoesNotAliasSource(t *testing.T) {
	src := foldAll([]execution{exec("A", 1, 0)})
	dst := NewAggregator()
	dst.Merge(src)
	dst.Merge(src)

	s, _ := src.Get("A")
	assert.EqualValues(t, 1, s.Count)
	assert.Equal(t, map[string]int64{"app": 1}, s.Users)

	d, _ := dst.Get("A")
	assert.EqualValues(t, 2, d.Count)
	assert.Equal(t, map[string]int64{"app": 2}, d.Users)
}

func TestSnapshotsAreDetached(t *testing.T) {
	a := foldAll([]execution{exec("A", 1, 0)})
	got, _ := a.Get("A")
	snap := a.Stats()["A"]

	e := exec("A", 9, time.Second)
	a.Fold(e.fp, e.meta, e.sql)
	a.Merge(foldAll([]execution{exec("A", 5, 0)}))

	for _, s := range []AggregateStat{got, snap} {
		assert.EqualValues(t, 1, s.Count)
		assert.Equal(t, map[string]int64{"app": 1}, s.Users)
		assert.Equal(t, map[string]int64{"db1": 1}, s.Hosts)
		assert.Equal(t, map[string]int64{"shop": 1}, s.Databases)
		assert.InDelta(t, 1, s.Percentile(0.99), 1e-9)
	}

	live, _ := a.Get("A")
	assert.EqualValues(t, 3, live.Count)
	assert.InDelta(t, 9, live.QueryTime.Max, 1e-9)
}

func TestMergeStat(t *testing.T) {
	a, _ := foldAll([]execution{exec("A", 1, time.Second)}).Get("A")
	b, _ := foldAll([]execution{exec("A", 3, 0)}).Get("A")

	m := MergeStat(a, b)
	assert.EqualValues(t, 2, m.Count)
	assert.Equal(t, Span{Sum: 4, Min: 1, Max: 3}, m.QueryTime)
	assert.Equal(t, base, m.FirstSeen)
	assert.Equal(t, base.Add(time.Second), m.LastSeen)
	assert.Equal(t, a.SampleSQL, m.SampleSQL)
	assert.Equal(t, b.WorstSQL, m.WorstSQL)

	assert.EqualValues(t, 1, a.Count)
	assert.EqualValues(t, 1, a.Users["app"])
}

func TestPercentile(t *testing.T) {
	a := NewAggregator()
	for i := 1; i <= 100; i++ {
		a.Fold("A", slowlog.EntryMetadata{QueryTime: float64(i)}, "q")
	}
	s, _ := a.Get("A")
	assert.InDelta(t, 95, s.Percentile(0.95), 1.5)
	assert.InDelta(t, 99, s.Percentile(0.99), 1.5)
	assert.LessOrEqual(t, s.Percentile(1), 100.0)
	assert.Zero(t, s.Percentile(2))

	single, _ := foldAll([]execution{exec("B", 0.7, 0)}).Get("B")
	assert.InDelta(t, 0.7, single.Percentile(0.99), 1e-9)

	assert.Zero(t, AggregateStat{}.Percentile(0.5))
}

func TestPercentileAfterMerge(t *testing.T) {
	left, right := NewAggregator(), NewAggregator()
	for i := 1; i <= 50; i++ {
		left.Fold("A", slowlog.EntryMetadata{QueryTime: float64(i)}, "q")
		right.Fold("A", slowlog.EntryMetadata{QueryTime: float64(i + 50)}, "q")
	}
	left.Merge(right)
	s, _ := left.Get("A")
	assert.EqualValues(t, 100, s.Count)
	assert.InDelta(t, 95, s.Percentile(0.95), 2)
}

func TestExaminedRatio(t *testing.T) {
	assert.Zero(t, AggregateStat{RowsExamined: 10}.ExaminedRatio())
	assert.InDelta(t, 2.5, AggregateStat{RowsExamined: 10, RowsSent: 4}.ExaminedRatio(), 1e-9)
}
