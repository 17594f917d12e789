// Package ingest drives log sources through the scan, extract, normalize and
// fold stages and produces one run's aggregated digest.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/fingerprint"
	"github.com/tinytelemetry/slowdigest/internal/logsource"
	"github.com/tinytelemetry/slowdigest/internal/model"
	"github.com/tinytelemetry/slowdigest/internal/slowlog"
)

// ctxCheckInterval is how many entries are folded between cancellation checks.
const ctxCheckInterval = 1024

// Config holds tunable parameters for a Pipeline.
type Config struct {
	Format      *slowlog.Format
	MaxLineSize int
	// Parallel > 1 folds up to that many sources concurrently, one
	// Aggregator each, and merges the partials in source order.
	Parallel  int
	CacheSize int
	Logger    *zap.Logger
}

// Result is one run's digest.
type Result struct {
	Aggregator *digest.Aggregator
	Summary    model.RunSummary
}

// Pipeline folds slow-log sources into a digest.
type Pipeline struct {
	format      *slowlog.Format
	maxLineSize int
	parallel    int
	normalizer  *fingerprint.Normalizer
	log         *zap.Logger
}

// NewPipeline creates a Pipeline. Zero-valued Config fields take defaults.
func NewPipeline(cfg Config) (*Pipeline, error) {
	normalizer, err := fingerprint.NewNormalizer(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		format:      cfg.Format,
		maxLineSize: cfg.MaxLineSize,
		parallel:    cfg.Parallel,
		normalizer:  normalizer,
		log:         cfg.Logger,
	}
	if p.format == nil {
		p.format = slowlog.DefaultFormat()
	}
	if p.maxLineSize <= 0 {
		p.maxLineSize = model.DefaultMaxLineSize
	}
	if p.parallel <= 0 {
		p.parallel = model.DefaultParallel
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p, nil
}

// sourceStats counts what one source contributed besides folded entries.
type sourceStats struct {
	scan      slowlog.ScanStats
	malformed int64
}

func (s *sourceStats) add(o sourceStats) {
	s.scan.Entries += o.scan.Entries
	s.scan.SkippedEntries += o.scan.SkippedEntries
	s.scan.OrphanLines += o.scan.OrphanLines
	s.scan.AdminLines += o.scan.AdminLines
	s.malformed += o.malformed
}

// Run digests sources in order. Any unreadable source aborts the run.
func (p *Pipeline) Run(ctx context.Context, sources []logsource.Source) (*Result, error) {
	var (
		agg   *digest.Aggregator
		stats sourceStats
		err   error
	)
	if p.parallel > 1 && len(sources) > 1 {
		agg, stats, err = p.runParallel(ctx, sources)
	} else {
		agg, stats, err = p.runSequential(ctx, sources)
	}
	if err != nil {
		return nil, err
	}

	summary := summarize(agg, stats)
	summary.Sources = logsource.Names(sources)

	if summary.MalformedLines > 0 {
		p.log.Warn("malformed header values defaulted to zero",
			zap.Int64("lines", summary.MalformedLines))
	}
	p.log.Info("digest complete",
		zap.Int("sources", len(sources)),
		zap.Int64("entries", summary.Entries),
		zap.Int("fingerprints", summary.Fingerprints),
		zap.Int64("skipped_entries", summary.SkippedEntries),
		zap.Int64("orphan_lines", summary.OrphanLines))

	return &Result{Aggregator: agg, Summary: summary}, nil
}

func (p *Pipeline) runSequential(ctx context.Context, sources []logsource.Source) (*digest.Aggregator, sourceStats, error) {
	agg := digest.NewAggregator()
	var total sourceStats
	for _, src := range sources {
		st, err := p.foldSource(ctx, src, agg)
		if err != nil {
			return nil, total, err
		}
		total.add(st)
	}
	return agg, total, nil
}

func (p *Pipeline) runParallel(ctx context.Context, sources []logsource.Source) (*digest.Aggregator, sourceStats, error) {
	partials := make([]*digest.Aggregator, len(sources))
	perSource := make([]sourceStats, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, src := range sources {
		g.Go(func() error {
			agg := digest.NewAggregator()
			st, err := p.foldSource(gctx, src, agg)
			if err != nil {
				return err
			}
			partials[i], perSource[i] = agg, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, sourceStats{}, err
	}

	merged := digest.NewAggregator()
	var total sourceStats
	for i := range sources {
		merged.Merge(partials[i])
		total.add(perSource[i])
	}
	return merged, total, nil
}

func (p *Pipeline) foldSource(ctx context.Context, src logsource.Source, agg *digest.Aggregator) (st sourceStats, err error) {
	rc, err := src.Open()
	if err != nil {
		return st, err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("closing %s: %w", src.Name(), cerr))
		}
	}()

	scanner := slowlog.NewScanner(rc, p.format, slowlog.ScannerConfig{
		Source:      src.Name(),
		MaxLineSize: p.maxLineSize,
	})
	extractor := slowlog.NewExtractor(p.format)

	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}
		entry, ok := scanner.Next()
		if !ok {
			break
		}
		meta, sql := extractor.Extract(entry)
		agg.Fold(p.normalizer.Normalize(sql), meta, sql)
	}
	if err := scanner.Err(); err != nil {
		return st, err
	}

	st = sourceStats{scan: scanner.Stats(), malformed: extractor.Malformed()}
	p.log.Debug("source digested",
		zap.String("source", src.Name()),
		zap.Int64("entries", st.scan.Entries),
		zap.Int64("malformed_lines", st.malformed),
		zap.Int64("admin_lines", st.scan.AdminLines))
	return st, nil
}

func summarize(agg *digest.Aggregator, st sourceStats) model.RunSummary {
	summary := model.RunSummary{
		Entries:        st.scan.Entries,
		Fingerprints:   agg.Len(),
		MalformedLines: st.malformed,
		SkippedEntries: st.scan.SkippedEntries,
		OrphanLines:    st.scan.OrphanLines,
		AdminLines:     st.scan.AdminLines,
	}
	for _, s := range agg.Stats() {
		summary.TotalQueryTime += s.QueryTime.Sum
		if !s.HasSeen {
			continue
		}
		if summary.FirstSeen.IsZero() || s.FirstSeen.Before(summary.FirstSeen) {
			summary.FirstSeen = s.FirstSeen
		}
		if s.LastSeen.After(summary.LastSeen) {
			summary.LastSeen = s.LastSeen
		}
	}
	return summary
}
