package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/duckdb"
	"github.com/tinytelemetry/slowdigest/internal/httpserver"
	"github.com/tinytelemetry/slowdigest/internal/model"
	"github.com/tinytelemetry/slowdigest/internal/report"
	"github.com/tinytelemetry/slowdigest/internal/socketrpc"
)

// loadStore digests the sources into a fresh in-memory store. Every
// fingerprint is stored; ranking and limits apply at query time.
func loadStore(ctx context.Context, cfg appConfig, args []string, stdin io.Reader, logger *zap.Logger) (*duckdb.Store, model.RunSummary, error) {
	res, err := digestSources(ctx, cfg, args, stdin, logger)
	if err != nil {
		return nil, model.RunSummary{}, err
	}

	store, err := duckdb.NewStore("", cfg.QueryTimeout)
	if err != nil {
		return nil, model.RunSummary{}, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	store.SetLogger(logger)

	rows := report.Rows(digest.RankAll(res.Aggregator.Stats(), digest.MetricTotalTime), res.Summary)
	if err := store.InsertDigests(rows, res.Summary); err != nil {
		store.Close()
		return nil, model.RunSummary{}, fmt.Errorf("loading digest: %w", err)
	}
	return store, res.Summary, nil
}

// runServe loads the digest and serves it until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func runServe(ctx context.Context, cfg appConfig, args []string, stdin io.Reader, stdout io.Writer, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, summary, err := loadStore(ctx, cfg, args, stdin, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	apiServer := httpserver.NewServer(cfg.Addr, store, logger)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer apiServer.Stop()

	socketPath := cfg.SocketPath
	if socketPath != "" {
		sockServer := socketrpc.NewServer(socketPath, store, logger)
		if err := sockServer.Start(); err != nil {
			logger.Warn("failed to start socket server", zap.Error(err))
			socketPath = ""
		} else {
			defer sockServer.Stop()
		}
	}

	printStartupBanner(stdout, apiServer.Addr(), socketPath, summary)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func printStartupBanner(w io.Writer, apiAddr, socketPath string, summary model.RunSummary) {
	r := lipgloss.NewRenderer(w)
	dim := r.NewStyle().Foreground(lipgloss.Color("240"))
	green := r.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := r.NewStyle().Foreground(lipgloss.Color("39"))
	bold := r.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("slowdigest")+" "+dim.Render("v"+version))
	lines = append(lines, dim.Render("    ─────────────────────────────────"))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render("http://"+apiAddr)))
	if socketPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(socketPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Digest"))
	lines = append(lines, fmt.Sprintf("    %s  Sources        %s", check, dim.Render(strings.Join(summary.Sources, ", "))))
	lines = append(lines, fmt.Sprintf("    %s  Entries        %s", check, report.Count(summary.Entries)))
	lines = append(lines, fmt.Sprintf("    %s  Query shapes   %s", check, report.Count(int64(summary.Fingerprints))))
	lines = append(lines, "")
	lines = append(lines, dim.Render("    Press Ctrl+C to stop"))
	lines = append(lines, "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// shortenPath replaces the home directory prefix with ~.
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if rel, err := filepath.Rel(home, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join("~", rel)
	}
	return path
}
