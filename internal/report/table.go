package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

const sectionRule = "--------------------------------------------------------------------------------"

func renderTable(w io.Writer, rep Report) error {
	styles := lipgloss.NewRenderer(w)
	title := styles.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	label := styles.NewStyle().Bold(true)
	loc := rep.location()

	width := rep.QueryWidth
	if width <= 0 {
		width = tableQueryWidth
	}

	var b strings.Builder
	b.WriteString(title.Render("Slow Query Digest") + "\n")
	writeSummary(&b, rep.Summary, rep.Metric, loc, label)
	if _, err := io.WriteString(w, b.String()+"\n"); err != nil {
		return err
	}

	if len(rep.Rows) == 0 {
		_, err := io.WriteString(w, "No queries found.\n")
		return err
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.Off}},
		})))
	table.Header([]string{"Rank", "Count", "Total Time", "Mean Time", "P95", "Share", "Query ID", "Query"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.PerColumn = []tw.Align{
			tw.AlignRight, tw.AlignRight, tw.AlignRight, tw.AlignRight,
			tw.AlignRight, tw.AlignRight, tw.AlignLeft, tw.AlignLeft,
		}
	})

	var count int64
	var total, share float64
	for _, row := range rep.Rows {
		err := table.Append([]string{
			fmt.Sprint(row.Rank),
			Count(row.Count),
			Seconds(row.TotalQueryTime),
			Seconds(row.MeanQueryTime),
			Seconds(row.P95QueryTime),
			Percent(row.Share),
			row.ID,
			Truncate(OneLine(row.SampleSQL), width),
		})
		if err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
		count += row.Count
		total += row.TotalQueryTime
		share += row.Share
	}
	table.Footer([]string{"Shown", Count(count), Seconds(total), "", "", Percent(share), "", ""})
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	b.Reset()
	b.WriteString("\n" + title.Render("Detailed Report") + "\n===============\n")
	for _, row := range rep.Rows {
		writeDetail(&b, row, loc, label)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummary(b *strings.Builder, s model.RunSummary, metric string, loc *time.Location, label lipgloss.Style) {
	line := func(name, value string) {
		fmt.Fprintf(b, "  %s %s\n", label.Render(name+":"), value)
	}
	sources := "stdin"
	if len(s.Sources) > 0 {
		sources = strings.Join(s.Sources, ", ")
	}
	line("Sources", sources)
	line("Entries", Count(s.Entries))
	line("Fingerprints", Count(int64(s.Fingerprints)))
	line("Total Time", Seconds(s.TotalQueryTime))
	line("Time Range", TimeRange(s.FirstSeen, s.LastSeen, loc))
	if metric != "" {
		line("Ranked By", metric)
	}
	if s.MalformedLines > 0 {
		line("Malformed Lines", Count(s.MalformedLines))
	}
	if s.SkippedEntries > 0 {
		line("Skipped Entries", Count(s.SkippedEntries))
	}
}

func writeDetail(b *strings.Builder, row model.DigestRow, loc *time.Location, label lipgloss.Style) {
	fmt.Fprintf(b, "\n%s %s\n", label.Render("Query ID:"), row.ID)
	fmt.Fprintf(b, "Rank: %d\n", row.Rank)
	fmt.Fprintf(b, "  Time Range: %s\n", TimeRange(row.FirstSeen, row.LastSeen, loc))
	b.WriteString("  Execution Stats:\n")
	fmt.Fprintf(b, "    Count: %s\n", Count(row.Count))
	fmt.Fprintf(b, "    Total Time: %s\n", Seconds(row.TotalQueryTime))
	fmt.Fprintf(b, "    Mean Time:  %s\n", Seconds(row.MeanQueryTime))
	fmt.Fprintf(b, "    Min/Max:    %s / %s\n", Seconds(row.MinQueryTime), Seconds(row.MaxQueryTime))
	fmt.Fprintf(b, "    P95:        %s\n", Seconds(row.P95QueryTime))
	fmt.Fprintf(b, "    P99:        %s\n", Seconds(row.P99QueryTime))
	fmt.Fprintf(b, "    Total Lock Time: %s\n", Seconds(row.TotalLockTime))
	fmt.Fprintf(b, "    Mean Lock Time:  %s\n", Seconds(row.MeanLockTime))
	b.WriteString("  Row Stats:\n")
	fmt.Fprintf(b, "    Sent:       %s\n", Count(row.RowsSent))
	fmt.Fprintf(b, "    Examined:   %s\n", Count(row.RowsExamined))
	if row.RowsAffected > 0 {
		fmt.Fprintf(b, "    Affected:   %s\n", Count(row.RowsAffected))
	}
	if row.BytesSent > 0 {
		fmt.Fprintf(b, "    Bytes Sent: %s\n", humanize.Bytes(uint64(row.BytesSent)))
	}
	fmt.Fprintf(b, "    Examined/Sent Ratio: %.2f\n", row.ExaminedRatio)
	b.WriteString("  Seen From:\n")
	fmt.Fprintf(b, "    Databases: %s\n", Breakdown(row.Databases))
	fmt.Fprintf(b, "    Users:     %s\n", Breakdown(row.Users))
	fmt.Fprintf(b, "    Hosts:     %s\n", Breakdown(row.Hosts))
	b.WriteString("  Normalized Query:\n")
	fmt.Fprintf(b, "    %s\n", strings.TrimSpace(row.Fingerprint))
	fmt.Fprintf(b, "  Slowest Execution (%s):\n", Seconds(row.WorstTime))
	fmt.Fprintf(b, "    %s\n", strings.TrimSpace(row.WorstSQL))
	b.WriteString(sectionRule + "\n")
}

// Detail renders the plain-text detail block for one row.
func Detail(row model.DigestRow, loc *time.Location) string {
	var b strings.Builder
	writeDetail(&b, row, loc, lipgloss.NewStyle())
	return b.String()
}
