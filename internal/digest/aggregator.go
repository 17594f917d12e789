package digest

import "github.com/tinytelemetry/slowdigest/internal/slowlog"

// Aggregator maps fingerprints to running statistics. It is not safe for
// concurrent use; parallel callers own one Aggregator each and Merge them.
type Aggregator struct {
	stats map[string]*AggregateStat
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{stats: make(map[string]*AggregateStat)}
}

// Fold records one execution of the query shape fp.
func (a *Aggregator) Fold(fp string, meta slowlog.EntryMetadata, sql string) {
	if s, ok := a.stats[fp]; ok {
		s.observe(meta, sql)
		return
	}
	a.stats[fp] = newStat(fp, meta, sql)
}

// Merge folds every record of other into a. For fingerprints present in both,
// a keeps its sample, so merging per-source partials in source order matches
// a sequential fold over the same sources. other is not modified.
func (a *Aggregator) Merge(other *Aggregator) {
	for fp, o := range other.stats {
		if s, ok := a.stats[fp]; ok {
			s.merge(o)
			continue
		}
		a.stats[fp] = o.clone()
	}
}

// Len returns the number of distinct fingerprints.
func (a *Aggregator) Len() int { return len(a.stats) }

// Get returns a copy of the record for fp. Later folds do not change it.
func (a *Aggregator) Get(fp string) (AggregateStat, bool) {
	s, ok := a.stats[fp]
	if !ok {
		return AggregateStat{}, false
	}
	return *s.clone(), true
}

// Stats returns a deep snapshot of all records keyed by fingerprint.
func (a *Aggregator) Stats() map[string]AggregateStat {
	out := make(map[string]AggregateStat, len(a.stats))
	for fp, s := range a.stats {
		out[fp] = *s.clone()
	}
	return out
}
