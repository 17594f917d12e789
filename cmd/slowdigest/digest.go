package main

import (
	"context"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/ingest"
	"github.com/tinytelemetry/slowdigest/internal/logsource"
	"github.com/tinytelemetry/slowdigest/internal/report"
	"github.com/tinytelemetry/slowdigest/internal/slowlog"
)

// digestSources runs the ingest pipeline over args (stdin when empty).
func digestSources(ctx context.Context, cfg appConfig, args []string, stdin io.Reader, logger *zap.Logger) (*ingest.Result, error) {
	sources, err := logsource.Resolve(args, stdin)
	if err != nil {
		return nil, err
	}

	var format *slowlog.Format
	if cfg.LogFormatFile != "" {
		f, err := slowlog.LoadFormat(cfg.LogFormatFile)
		if err != nil {
			return nil, err
		}
		format = f
	}

	pipeline, err := ingest.NewPipeline(ingest.Config{
		Format:      format,
		MaxLineSize: cfg.MaxLineSize,
		Parallel:    cfg.Parallel,
		CacheSize:   cfg.CacheSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, sources)
}

// runDigest digests the sources and renders the top cfg.Limit shapes.
func runDigest(ctx context.Context, cfg appConfig, args []string, stdin io.Reader, stdout io.Writer, logger *zap.Logger) (err error) {
	metric, err := digest.ParseMetric(cfg.Metric)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	loc := report.LoadTimezone(cfg.Timezone, logger)

	res, err := digestSources(ctx, cfg, args, stdin, logger)
	if err != nil {
		return err
	}
	ranked, err := digest.Rank(res.Aggregator.Stats(), cfg.Limit, metric)
	if err != nil {
		return err
	}

	rep := report.Report{
		Rows:     report.Rows(ranked, res.Summary),
		Summary:  res.Summary,
		Metric:   metric.String(),
		Location: loc,
	}
	if cfg.Output == "" || cfg.Output == "-" {
		rep.QueryWidth = report.QueryWidthFor(stdout)
	}

	out, err := report.OpenOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	return report.Render(out, rep, format)
}
