package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/logging"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newRootCmd wires the command tree to the given streams.
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "slowdigest",
		Short: "Digest MySQL/MariaDB slow query logs",
		Long: `slowdigest groups slow-query-log entries by normalized query shape,
aggregates their execution statistics and reports the most expensive shapes.`,
		SilenceUsage: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().String("config", "", "config file (default is $HOME/.config/slowdigest/config.yml)")
	root.PersistentFlags().String("log-level", defaultLogLevel, "log level: debug, info, warn, error")

	root.AddCommand(newDigestCmd(), newServeCmd(), newVersionCmd())
	return root
}

// addDigestFlags registers the flags shared by digest and serve.
func addDigestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("limit", "n", defaultLimit, "number of queries to report")
	f.StringP("metric", "m", defaultMetric, fmt.Sprintf("ranking metric: %v", digest.Metrics()))
	f.String("timezone", defaultTimezone, "report timezone: +HH:MM offset, UTC or IANA name")
	f.IntP("parallel", "p", defaultParallel, "number of sources digested concurrently")
	f.String("log-format-file", "", "YAML header format definition (default: built-in MySQL/MariaDB)")
	f.Int("max-line-size", defaultMaxLineSize, "longest accepted input line in bytes")
	f.Int("cache-size", defaultCacheSize, "normalization cache entries")
}

// setup loads configuration and builds the console logger for cmd.
func setup(cmd *cobra.Command) (appConfig, *zap.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, func() {}, err
	}
	logger, cleanup, err := logging.New(logging.Config{Level: cfg.LogLevel, Console: true})
	if err != nil {
		return cfg, nil, cleanup, err
	}
	return cfg, logger, cleanup, nil
}

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest [files...]",
		Short: "Print a ranked report of the most expensive query shapes",
		Long: `Reads slow query logs (plain, gzip or zstd; "-" or no files reads stdin)
and writes a report of the top query shapes as a table, HTML or JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, cleanup, err := setup(cmd)
			defer cleanup()
			if err != nil {
				return err
			}
			return runDigest(cmd.Context(), cfg, args, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}
	addDigestFlags(cmd)
	cmd.Flags().StringP("format", "f", defaultFormat, "report format: table, html, json")
	cmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [files...]",
		Short: "Digest once and serve the result over HTTP and a Unix socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, cleanup, err := setup(cmd)
			defer cleanup()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, args, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}
	addDigestFlags(cmd)
	cmd.Flags().String("addr", defaultAddr, "HTTP API listen address")
	cmd.Flags().String("socket", defaultSocketPath(), `Unix socket for the TUI ("" disables)`)
	cmd.Flags().Duration("query-timeout", defaultQueryTimeout, "timeout for store queries")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "slowdigest - Slow Query Log Digester\n")
			fmt.Fprintf(w, "  Version:    %s\n", version)
			fmt.Fprintf(w, "  Commit:     %s\n", commit)
			fmt.Fprintf(w, "  Built:      %s\n", buildTime)
			fmt.Fprintf(w, "  Go version: %s\n", goVersion)
		},
	}
}
