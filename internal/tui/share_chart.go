package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/slowdigest/internal/model"
	"github.com/tinytelemetry/slowdigest/internal/report"
)

const (
	shareChartBars   = 10
	shareChartHeight = 8
	shareLegendWidth = 48
)

var shareBarColors = []lipgloss.Color{ColorRed, ColorOrange, ColorBlue, ColorGreen, ColorGray}

// renderShareChart draws one bar per query (in rank order) sized by its share
// of total query time, with a legend of ranks, shares and fingerprints.
func renderShareChart(rows []model.DigestRow, width int) string {
	if len(rows) == 0 {
		return lipgloss.NewStyle().Foreground(ColorGray).Render("No queries to chart.")
	}
	rows = rows[:min(len(rows), shareChartBars)]

	chartWidth := max(width-shareLegendWidth-2, len(rows)*3)
	bc := barchart.New(chartWidth, shareChartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(2),
		barchart.WithNoAxis(),
	)

	legend := make([]string, 0, len(rows))
	for i, r := range rows {
		color := shareBarColors[min(i, len(shareBarColors)-1)]
		bc.Push(barchart.BarData{
			Label: fmt.Sprint(r.Rank),
			Values: []barchart.BarValue{{
				Name:  r.ID,
				Value: r.Share,
				Style: lipgloss.NewStyle().Foreground(color).Background(color),
			}},
		})
		entry := fmt.Sprintf("#%-2d %6s  %s", r.Rank, report.Percent(r.Share),
			report.Truncate(report.OneLine(r.Fingerprint), shareLegendWidth-12))
		legend = append(legend, lipgloss.NewStyle().Foreground(color).Render(entry))
	}
	bc.Draw()

	return lipgloss.JoinHorizontal(lipgloss.Top, bc.View(), "  ", strings.Join(legend, "\n"))
}
