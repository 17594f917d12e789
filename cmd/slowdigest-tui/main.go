package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/duckdb"
	"github.com/tinytelemetry/slowdigest/internal/ingest"
	"github.com/tinytelemetry/slowdigest/internal/logging"
	"github.com/tinytelemetry/slowdigest/internal/logsource"
	"github.com/tinytelemetry/slowdigest/internal/model"
	"github.com/tinytelemetry/slowdigest/internal/report"
	"github.com/tinytelemetry/slowdigest/internal/slowlog"
	"github.com/tinytelemetry/slowdigest/internal/socketrpc"
	"github.com/tinytelemetry/slowdigest/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

var (
	errNoInput    = errors.New("no input: pass slow log files or --socket PATH")
	errStdinInput = errors.New("the TUI cannot read stdin; pass slow log files")
)

func main() {
	fs := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Printf("slowdigest-tui - Slow Query Digest Browser\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadTUIConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runTUI(cfg, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg tuiConfig, files []string) error {
	logger, cleanup, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	defer cleanup()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(context.Background(), cfg, files, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	loc := report.LoadTimezone(cfg.Timezone, logger)
	app := tui.NewApp(
		tui.NewDigestsPage(store, cfg.Limit, cfg.Metric, loc),
		tui.NewSummaryPage(store, loc),
	)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// openStore returns the data source for the UI: a socket client when
// --socket is set, otherwise an in-memory store loaded from files.
func openStore(ctx context.Context, cfg tuiConfig, files []string, logger *zap.Logger) (model.ReadAPI, func(), error) {
	if cfg.SocketPath != "" {
		client, err := socketrpc.Dial(cfg.SocketPath)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot connect to slowdigest at %s: %w\nIs it running? Start it with: slowdigest serve <files>", cfg.SocketPath, err)
		}
		return client, func() { client.Close() }, nil
	}
	if len(files) == 0 {
		return nil, nil, errNoInput
	}
	// The terminal belongs to the UI, so stdin cannot be a source.
	if slices.Contains(files, logsource.StdinName) {
		return nil, nil, errStdinInput
	}

	store, err := loadFiles(ctx, cfg, files, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// loadFiles digests files into a fresh in-memory store.
func loadFiles(ctx context.Context, cfg tuiConfig, files []string, logger *zap.Logger) (*duckdb.Store, error) {
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
	sources, err := logsource.Resolve(files, nil)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.Run(ctx, sources)
	if err != nil {
		return nil, err
	}

	store, err := duckdb.NewStore("", cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	store.SetLogger(logger)
	rows := report.Rows(digest.RankAll(res.Aggregator.Stats(), digest.MetricTotalTime), res.Summary)
	if err := store.InsertDigests(rows, res.Summary); err != nil {
		store.Close()
		return nil, fmt.Errorf("loading digest: %w", err)
	}
	return store, nil
}
